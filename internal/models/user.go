package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Photographer struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	DisplayName  string          `json:"display_name" db:"display_name"`
	Balance      decimal.Decimal `json:"balance" db:"balance"`
	TotalEarned  decimal.Decimal `json:"total_earned" db:"total_earned"`
	DefaultPrice decimal.Decimal `json:"default_price" db:"default_price"`
	BankCard     string          `json:"bank_card" db:"bank_card"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

type FaceStatus string

const (
	FaceStatusUnprocessed FaceStatus = "unprocessed"
	FaceStatusProcessed   FaceStatus = "processed"
	FaceStatusError       FaceStatus = "error"
)

type Client struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	DisplayName    string          `json:"display_name" db:"display_name"`
	SelfieKey      string          `json:"selfie_key" db:"selfie_key"`
	Embedding      []float32       `json:"-" db:"face_embedding"`
	FaceStatus     FaceStatus      `json:"face_status" db:"face_status"`
	FaceError      string          `json:"face_error" db:"face_error"`
	TotalPurchases int             `json:"total_purchases" db:"total_purchases"`
	TotalSpent     decimal.Decimal `json:"total_spent" db:"total_spent"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// Matchable reports whether the client's encoding may be compared against photo faces.
func (c *Client) Matchable() bool {
	return c.FaceStatus == FaceStatusProcessed && len(c.Embedding) > 0
}
