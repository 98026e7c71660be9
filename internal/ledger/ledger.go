// Package ledger sells photos and keeps balances, download quotas,
// withdrawals and deletion requests consistent under concurrent access.
package ledger

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/your-org/photomarket/internal/config"
	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/payments"
	"github.com/your-org/photomarket/internal/storage"
)

var (
	ErrAlreadyPurchased    = errors.New("photo already purchased")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicateRequest    = errors.New("deletion request already pending")
	ErrQuotaExceeded       = errors.New("download limit reached")
	ErrForbidden           = errors.New("forbidden")
	ErrAlreadyResolved     = errors.New("deletion request already resolved")
	ErrPhotoUnavailable    = errors.New("photo is not available")
	ErrPurchaseNotFound    = errors.New("purchase not found")
	ErrNotPending          = errors.New("purchase is not pending")
	ErrWithdrawalNotFound  = errors.New("withdrawal not found")
	ErrRequestNotFound     = errors.New("deletion request not found")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrBankCardRequired    = errors.New("bank card required")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

const tokenBytes = 32

// Store is the persistence the ledger needs.
type Store interface {
	storage.LedgerStore
	GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error)
	GetPhotographer(ctx context.Context, id uuid.UUID) (*models.Photographer, error)
	GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
}

type Options struct {
	CommissionRate decimal.Decimal
	MaxDownloads   int
}

func OptionsFromConfig(cfg config.LedgerConfig) Options {
	return Options{CommissionRate: cfg.Commission(), MaxDownloads: cfg.MaxDownloads}
}

type Service struct {
	store    Store
	provider payments.Provider
	opts     Options
}

// NewService builds the ledger. A nil provider settles purchases immediately.
func NewService(store Store, provider payments.Provider, opts Options) *Service {
	if opts.MaxDownloads <= 0 {
		opts.MaxDownloads = 5
	}
	return &Service{store: store, provider: provider, opts: opts}
}

// Split returns the platform commission, rounded to cents, and the
// photographer's share of amount.
func Split(amount, rate decimal.Decimal) (commission, photographer decimal.Decimal) {
	commission = amount.Mul(rate).Round(2)
	return commission, amount.Sub(commission)
}

func newDownloadToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate download token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
