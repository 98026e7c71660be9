package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PhotoStatus string

const (
	PhotoStatusProcessing PhotoStatus = "processing"
	PhotoStatusActive     PhotoStatus = "active"
	PhotoStatusSold       PhotoStatus = "sold"
	PhotoStatusHidden     PhotoStatus = "hidden"
	PhotoStatusDeleted    PhotoStatus = "deleted"
	PhotoStatusError      PhotoStatus = "error"
)

type Photo struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	PhotographerID  uuid.UUID       `json:"photographer_id" db:"photographer_id"`
	EventID         *uuid.UUID      `json:"event_id,omitempty" db:"event_id"`
	OriginalKey     string          `json:"original_key" db:"original_key"`
	WatermarkedKey  string          `json:"watermarked_key" db:"watermarked_key"`
	ThumbnailKey    string          `json:"thumbnail_key" db:"thumbnail_key"`
	OriginalName    string          `json:"original_name" db:"original_name"`
	Price           decimal.Decimal `json:"price" db:"price"`
	Status          PhotoStatus     `json:"status" db:"status"`
	FacesCount      int             `json:"faces_count" db:"faces_count"`
	FacesProcessed  bool            `json:"faces_processed" db:"faces_processed"`
	ProcessingError string          `json:"processing_error" db:"processing_error"`
	Width           int             `json:"width" db:"width"`
	Height          int             `json:"height" db:"height"`
	FileSize        int64           `json:"file_size" db:"file_size"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// BoundingBox uses pixel coordinates of the original image.
type BoundingBox struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

type PhotoFace struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	PhotoID         uuid.UUID   `json:"photo_id" db:"photo_id"`
	Box             BoundingBox `json:"bounding_box" db:"bounding_box"`
	Embedding       []float32   `json:"-" db:"embedding"`
	MatchedClientID *uuid.UUID  `json:"matched_client_id,omitempty" db:"matched_client_id"`
	Confidence      float64     `json:"match_confidence" db:"match_confidence"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
}

// DetectedFace is one face returned by the face encoder.
type DetectedFace struct {
	Box        BoundingBox
	Embedding  []float32
	Confidence float32
}

// ProcessingResult is everything a pipeline run commits for a photo in one transaction.
// FacesProcessed is false when the encoder was unavailable, so a later sweep retries.
type ProcessingResult struct {
	PhotoID        uuid.UUID
	WatermarkedKey string
	ThumbnailKey   string
	Width          int
	Height         int
	FacesProcessed bool
	Faces          []PhotoFace
}

// PhotoFilter narrows a client's matched photo listing.
type PhotoFilter struct {
	EventType string
	City      string
	DateFrom  *time.Time
	DateTo    *time.Time
	PriceMin  *decimal.Decimal
	PriceMax  *decimal.Decimal
}
