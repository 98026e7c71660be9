package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photomarket/internal/models"
)

var (
	// ErrNotFound is returned by mutations that target a missing row.
	// Lookups return (nil, nil) instead.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate")
)

// PhotoQuery selects photo ids for batch reprocessing.
type PhotoQuery struct {
	Status          *models.PhotoStatus
	UnprocessedOnly bool
	CreatedBefore   time.Time
}

type UserStore interface {
	CreatePhotographer(ctx context.Context, p *models.Photographer) error
	GetPhotographer(ctx context.Context, id uuid.UUID) (*models.Photographer, error)
	CreateClient(ctx context.Context, c *models.Client) error
	GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	// SetClientSelfie stores a new selfie key and resets the encoding to unprocessed.
	SetClientSelfie(ctx context.Context, id uuid.UUID, key string) error
	UpdateClientFace(ctx context.Context, id uuid.UUID, status models.FaceStatus, embedding []float32, faceErr string) error
	// ListMatchableClients returns processed clients ordered by (created_at, id).
	ListMatchableClients(ctx context.Context) ([]models.Client, error)
}

type EventStore interface {
	CreateEvent(ctx context.Context, e *models.Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	RecountEventPhotos(ctx context.Context, id uuid.UUID) error
}

type PhotoStore interface {
	CreatePhoto(ctx context.Context, p *models.Photo) error
	GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error)
	ListPhotoIDs(ctx context.Context, q PhotoQuery) ([]uuid.UUID, error)
	SetPhotoStatus(ctx context.Context, id uuid.UUID, status models.PhotoStatus, processingErr string) error
	// FailPhotoProcessing moves processing, active or error photos to error.
	// Hidden, sold and deleted photos only get the error text.
	FailPhotoProcessing(ctx context.Context, id uuid.UUID, reason string) error
	// CompletePhotoProcessing replaces the photo's faces and marks it active.
	CompletePhotoProcessing(ctx context.Context, res *models.ProcessingResult) error
	// ListClientPhotos returns active photos with a face matched to the client,
	// excluding photos under a pending deletion request.
	ListClientPhotos(ctx context.Context, clientID uuid.UUID, f models.PhotoFilter) ([]models.Photo, error)
}

type FaceStore interface {
	ListPhotoFaces(ctx context.Context, photoID uuid.UUID) ([]models.PhotoFace, error)
	// ListFacesForMatching returns faces on active photos ordered by (created_at, id).
	ListFacesForMatching(ctx context.Context, unmatchedOnly bool) ([]models.PhotoFace, error)
	// ClaimFace records a match only when the face has none; it reports whether it did.
	ClaimFace(ctx context.Context, faceID, clientID uuid.UUID, confidence float64) (bool, error)
	// AssignFace overwrites the match. A nil client clears it.
	AssignFace(ctx context.Context, faceID uuid.UUID, clientID *uuid.UUID, confidence float64) error
}

type LedgerStore interface {
	CreatePurchase(ctx context.Context, p *models.Purchase) error
	GetPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	GetPurchaseByPaymentID(ctx context.Context, paymentID string) (*models.Purchase, error)
	HasPaidPurchase(ctx context.Context, buyerID, photoID uuid.UUID) (bool, error)
	SetPurchasePayment(ctx context.Context, id uuid.UUID, paymentID, paymentURL string) error
	CreateDeletionRequest(ctx context.Context, r *models.DeletionRequest) error
	GetDeletionRequest(ctx context.Context, id uuid.UUID) (*models.DeletionRequest, error)
	HasPendingDeletionRequest(ctx context.Context, photoID, requesterID uuid.UUID) (bool, error)
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error)
	// WithTx runs fn inside one transaction. Any error rolls everything back.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of row-locking operations the ledger needs. Callers lock
// purchase, then photographer, then client to keep a single lock order.
type Tx interface {
	LockPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	LockPhotographer(ctx context.Context, id uuid.UUID) (*models.Photographer, error)
	LockClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	LockPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error)
	LockWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	LockDeletionRequest(ctx context.Context, id uuid.UUID) (*models.DeletionRequest, error)
	HasOtherPaidPurchase(ctx context.Context, buyerID, photoID, exclude uuid.UUID) (bool, error)
	UpdatePurchase(ctx context.Context, p *models.Purchase) error
	UpdatePhotographerFunds(ctx context.Context, p *models.Photographer) error
	UpdateClientTotals(ctx context.Context, c *models.Client) error
	InsertTransaction(ctx context.Context, t *models.Transaction) error
	InsertWithdrawal(ctx context.Context, w *models.Withdrawal) error
	UpdateWithdrawal(ctx context.Context, w *models.Withdrawal) error
	UpdateDeletionRequest(ctx context.Context, r *models.DeletionRequest) error
	SetPhotoStatus(ctx context.Context, id uuid.UUID, status models.PhotoStatus) error
	RecountEventPhotos(ctx context.Context, eventID uuid.UUID) error
}

// Store is the full persistence surface used by the binaries.
type Store interface {
	UserStore
	EventStore
	PhotoStore
	FaceStore
	LedgerStore
	Ping(ctx context.Context) error
}

// ObjectStore holds originals, derivatives and selfies.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	DeleteObject(ctx context.Context, key string) error
	DeleteObjects(ctx context.Context, keys []string) error
}
