// Package payments talks to the external payment provider.
package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Webhook event names sent by the provider.
const (
	EventSucceeded = "payment.succeeded"
	EventCanceled  = "payment.canceled"
)

type CreateRequest struct {
	PurchaseID  uuid.UUID
	Amount      decimal.Decimal
	Description string
}

// Payment is the provider side of a purchase.
type Payment struct {
	ID              string
	Status          string
	ConfirmationURL string
}

// Payment statuses reported by the provider.
const (
	StatusSucceeded = "succeeded"
	StatusCanceled  = "canceled"
)

// Provider creates payments the buyer confirms out of band. Completion is
// reported later through the webhook and confirmed with GetPayment.
type Provider interface {
	CreatePayment(ctx context.Context, req CreateRequest) (*Payment, error)
	GetPayment(ctx context.Context, id string) (*Payment, error)
}
