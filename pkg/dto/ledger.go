package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PurchaseResponse struct {
	ID            uuid.UUID       `json:"id"`
	PhotoID       uuid.UUID       `json:"photo_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	PaymentURL    string          `json:"payment_url,omitempty"`
	DownloadURL   string          `json:"download_url,omitempty"`
	DownloadCount int             `json:"download_count"`
	MaxDownloads  int             `json:"max_downloads"`
	CreatedAt     string          `json:"created_at"`
}

type DeletionRequestBody struct {
	Reason string `json:"reason" binding:"required"`
}

type ResolveDeletionRequest struct {
	Action   string `json:"action" binding:"required,oneof=approve reject"`
	Response string `json:"response"`
}

type DeletionRequestResponse struct {
	ID       uuid.UUID `json:"id"`
	PhotoID  uuid.UUID `json:"photo_id"`
	Status   string    `json:"status"`
	Reason   string    `json:"reason"`
	Response string    `json:"response,omitempty"`
}

type WithdrawalRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	BankCard string          `json:"bank_card"`
}

type WithdrawalStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=processing completed rejected"`
	Reason string `json:"reason"`
}

type WithdrawalResponse struct {
	ID              uuid.UUID       `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	BankCard        string          `json:"bank_card"`
	Status          string          `json:"status"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       string          `json:"created_at"`
}

type TransactionResponse struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CreatedAt   string          `json:"created_at"`
}

// PaymentWebhook is the provider's notification body.
type PaymentWebhook struct {
	Event  string `json:"event" binding:"required"`
	Object struct {
		ID string `json:"id"`
	} `json:"object"`
}

type RematchRequest struct {
	Reassign bool `json:"reassign"`
}
