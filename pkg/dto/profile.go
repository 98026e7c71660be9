package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreatePhotographerRequest struct {
	DisplayName  string           `json:"display_name" binding:"required"`
	DefaultPrice *decimal.Decimal `json:"default_price,omitempty"`
	BankCard     string           `json:"bank_card"`
}

type PhotographerResponse struct {
	ID           uuid.UUID       `json:"id"`
	DisplayName  string          `json:"display_name"`
	Balance      decimal.Decimal `json:"balance"`
	TotalEarned  decimal.Decimal `json:"total_earned"`
	DefaultPrice decimal.Decimal `json:"default_price"`
	CreatedAt    string          `json:"created_at"`
}

type CreateClientRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}

type ClientResponse struct {
	ID             uuid.UUID       `json:"id"`
	DisplayName    string          `json:"display_name"`
	FaceStatus     string          `json:"face_status"`
	TotalPurchases int             `json:"total_purchases"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	CreatedAt      string          `json:"created_at"`
}

type SelfieResponse struct {
	HasSelfie  bool   `json:"has_selfie"`
	FaceStatus string `json:"face_status"`
	FaceError  string `json:"face_error,omitempty"`
	Matched    int    `json:"matched"`
	Queued     bool   `json:"queued,omitempty"`
}

type RescanResponse struct {
	Matched int `json:"matched"`
}
