package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateEventRequest struct {
	Name         string           `json:"name" binding:"required"`
	EventType    string           `json:"event_type"`
	City         string           `json:"city"`
	Date         string           `json:"date" binding:"required"` // 2006-01-02
	DefaultPrice *decimal.Decimal `json:"default_price,omitempty"`
	IsPublic     bool             `json:"is_public"`
}

type EventResponse struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	EventType    string          `json:"event_type"`
	City         string          `json:"city"`
	Date         string          `json:"date"`
	DefaultPrice decimal.Decimal `json:"default_price"`
	IsPublic     bool            `json:"is_public"`
	PhotosCount  int             `json:"photos_count"`
	CreatedAt    string          `json:"created_at"`
}

// WSEvent is a WebSocket message telling a client a new photo of them was found.
type WSEvent struct {
	Type       string    `json:"type"` // photo_matched
	PhotoID    uuid.UUID `json:"photo_id"`
	Confidence float64   `json:"confidence"`
	Timestamp  string    `json:"timestamp"`
}
