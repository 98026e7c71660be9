package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PurchaseStatus string

const (
	PurchaseStatusPending  PurchaseStatus = "pending"
	PurchaseStatusPaid     PurchaseStatus = "paid"
	PurchaseStatusFailed   PurchaseStatus = "failed"
	PurchaseStatusRefunded PurchaseStatus = "refunded"
)

type Purchase struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	BuyerID            uuid.UUID       `json:"buyer_id" db:"buyer_id"`
	PhotoID            uuid.UUID       `json:"photo_id" db:"photo_id"`
	PhotographerID     uuid.UUID       `json:"photographer_id" db:"photographer_id"`
	Amount             decimal.Decimal `json:"amount" db:"amount"`
	Commission         decimal.Decimal `json:"commission" db:"commission"`
	PhotographerAmount decimal.Decimal `json:"photographer_amount" db:"photographer_amount"`
	Status             PurchaseStatus  `json:"status" db:"status"`
	PaymentID          string          `json:"payment_id" db:"payment_id"`
	PaymentURL         string          `json:"payment_url" db:"payment_url"`
	DownloadToken      string          `json:"-" db:"download_token"`
	DownloadCount      int             `json:"download_count" db:"download_count"`
	MaxDownloads       int             `json:"max_downloads" db:"max_downloads"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	PaidAt             *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
}

type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusRejected   WithdrawalStatus = "rejected"
)

type Withdrawal struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	PhotographerID  uuid.UUID        `json:"photographer_id" db:"photographer_id"`
	Amount          decimal.Decimal  `json:"amount" db:"amount"`
	BankCard        string           `json:"bank_card" db:"bank_card"`
	Status          WithdrawalStatus `json:"status" db:"status"`
	ProcessedBy     string           `json:"processed_by" db:"processed_by"`
	RejectionReason string           `json:"rejection_reason" db:"rejection_reason"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	ProcessedAt     *time.Time       `json:"processed_at,omitempty" db:"processed_at"`
}

type DeletionStatus string

const (
	DeletionStatusPending  DeletionStatus = "pending"
	DeletionStatusApproved DeletionStatus = "approved"
	DeletionStatusRejected DeletionStatus = "rejected"
)

type DeletionRequest struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	PhotoID     uuid.UUID      `json:"photo_id" db:"photo_id"`
	RequesterID uuid.UUID      `json:"requester_id" db:"requester_id"`
	Reason      string         `json:"reason" db:"reason"`
	Status      DeletionStatus `json:"status" db:"status"`
	Response    string         `json:"response" db:"response"`
	ProcessedBy *uuid.UUID     `json:"processed_by,omitempty" db:"processed_by"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty" db:"processed_at"`
}

type TransactionType string

const (
	TransactionPurchase   TransactionType = "purchase"
	TransactionSale       TransactionType = "sale"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionRefund     TransactionType = "refund"
	TransactionCommission TransactionType = "commission"
)

// Transaction is an append-only ledger entry.
type Transaction struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	UserID       uuid.UUID       `json:"user_id" db:"user_id"`
	Type         TransactionType `json:"type" db:"type"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	PurchaseID   *uuid.UUID      `json:"purchase_id,omitempty" db:"purchase_id"`
	WithdrawalID *uuid.UUID      `json:"withdrawal_id,omitempty" db:"withdrawal_id"`
	Description  string          `json:"description" db:"description"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
