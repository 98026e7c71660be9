package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/your-org/photomarket/internal/models"
)

type PhotoResponse struct {
	ID              uuid.UUID       `json:"id"`
	PhotographerID  uuid.UUID       `json:"photographer_id"`
	EventID         *uuid.UUID      `json:"event_id,omitempty"`
	OriginalName    string          `json:"original_name"`
	Price           decimal.Decimal `json:"price"`
	Status          string          `json:"status"`
	FacesCount      int             `json:"faces_count"`
	FacesProcessed  bool            `json:"faces_processed"`
	ProcessingError string          `json:"processing_error,omitempty"`
	ThumbnailURL    string          `json:"thumbnail_url,omitempty"`
	WatermarkedURL  string          `json:"watermarked_url,omitempty"`
	CreatedAt       string          `json:"created_at"`
}

type UploadFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

type UploadResponse struct {
	Photos []PhotoResponse `json:"photos"`
	Failed []UploadFailure `json:"failed,omitempty"`
	Queued bool            `json:"queued"`
}

type VisibilityRequest struct {
	Hidden *bool `json:"hidden" binding:"required"`
}

type FaceResponse struct {
	ID              uuid.UUID          `json:"id"`
	Box             models.BoundingBox `json:"bounding_box"`
	MatchedClientID *uuid.UUID         `json:"matched_client_id,omitempty"`
	Confidence      float64            `json:"match_confidence"`
}

// PhotoQuery filters GET /v1/me/photos.
type PhotoQuery struct {
	EventType string `form:"event_type"`
	City      string `form:"city"`
	DateFrom  string `form:"date_from"`
	DateTo    string `form:"date_to"`
	PriceMin  string `form:"price_min"`
	PriceMax  string `form:"price_max"`
}
