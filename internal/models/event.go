package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event groups photos from one shoot (a wedding, a race, a concert).
type Event struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	PhotographerID uuid.UUID       `json:"photographer_id" db:"photographer_id"`
	Name           string          `json:"name" db:"name"`
	EventType      string          `json:"event_type" db:"event_type"`
	City           string          `json:"city" db:"city"`
	Date           time.Time       `json:"date" db:"date"`
	DefaultPrice   decimal.Decimal `json:"default_price" db:"default_price"`
	IsPublic       bool            `json:"is_public" db:"is_public"`
	PhotosCount    int             `json:"photos_count" db:"photos_count"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// MatchEvent is published whenever a face gets attached to a client.
type MatchEvent struct {
	ClientID   uuid.UUID `json:"client_id"`
	PhotoID    uuid.UUID `json:"photo_id"`
	FaceID     uuid.UUID `json:"face_id"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`
}
