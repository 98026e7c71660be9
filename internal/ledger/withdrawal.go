package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/storage"
)

// RequestWithdrawal reserves amount from the photographer's balance. An empty
// card falls back to the card on the profile.
func (s *Service) RequestWithdrawal(ctx context.Context, photographerID uuid.UUID, amount decimal.Decimal, bankCard string) (*models.Withdrawal, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var w *models.Withdrawal
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		p, err := tx.LockPhotographer(ctx, photographerID)
		if err != nil {
			return fmt.Errorf("lock photographer: %w", err)
		}
		if p == nil {
			return ErrForbidden
		}
		if bankCard == "" {
			bankCard = p.BankCard
		}
		if bankCard == "" {
			return ErrBankCardRequired
		}
		if amount.GreaterThan(p.Balance) {
			return ErrInsufficientBalance
		}

		p.Balance = p.Balance.Sub(amount)
		if err := tx.UpdatePhotographerFunds(ctx, p); err != nil {
			return fmt.Errorf("debit photographer: %w", err)
		}

		w = &models.Withdrawal{
			ID:             uuid.New(),
			PhotographerID: photographerID,
			Amount:         amount,
			BankCard:       bankCard,
			Status:         models.WithdrawalStatusPending,
		}
		if err := tx.InsertWithdrawal(ctx, w); err != nil {
			return fmt.Errorf("insert withdrawal: %w", err)
		}
		if err := tx.InsertTransaction(ctx, &models.Transaction{
			UserID:       photographerID,
			Type:         models.TransactionWithdrawal,
			Amount:       amount,
			WithdrawalID: &w.ID,
			Description:  "Withdrawal request",
		}); err != nil {
			return fmt.Errorf("record withdrawal transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("withdrawal requested", "withdrawal_id", w.ID, "photographer_id", photographerID, "amount", amount.String())
	return w, nil
}

var withdrawalTransitions = map[models.WithdrawalStatus][]models.WithdrawalStatus{
	models.WithdrawalStatusPending:    {models.WithdrawalStatusProcessing, models.WithdrawalStatusRejected},
	models.WithdrawalStatusProcessing: {models.WithdrawalStatusCompleted, models.WithdrawalStatusRejected},
}

func canTransition(from, to models.WithdrawalStatus) bool {
	for _, next := range withdrawalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpdateWithdrawalStatus moves a withdrawal forward. Rejecting it returns
// the reserved amount to the photographer.
func (s *Service) UpdateWithdrawalStatus(ctx context.Context, id uuid.UUID, status models.WithdrawalStatus, processedBy, reason string) (*models.Withdrawal, error) {
	var w *models.Withdrawal
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		w, err = tx.LockWithdrawal(ctx, id)
		if err != nil {
			return fmt.Errorf("lock withdrawal: %w", err)
		}
		if w == nil {
			return ErrWithdrawalNotFound
		}
		if !canTransition(w.Status, status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, w.Status, status)
		}

		if status == models.WithdrawalStatusRejected {
			p, err := tx.LockPhotographer(ctx, w.PhotographerID)
			if err != nil {
				return fmt.Errorf("lock photographer: %w", err)
			}
			if p == nil {
				return fmt.Errorf("photographer %s: %w", w.PhotographerID, storage.ErrNotFound)
			}
			p.Balance = p.Balance.Add(w.Amount)
			if err := tx.UpdatePhotographerFunds(ctx, p); err != nil {
				return fmt.Errorf("refund photographer: %w", err)
			}
			if err := tx.InsertTransaction(ctx, &models.Transaction{
				UserID:       w.PhotographerID,
				Type:         models.TransactionRefund,
				Amount:       w.Amount,
				WithdrawalID: &w.ID,
				Description:  "Withdrawal rejected",
			}); err != nil {
				return fmt.Errorf("record refund transaction: %w", err)
			}
			w.RejectionReason = reason
		}

		w.Status = status
		w.ProcessedBy = processedBy
		if status != models.WithdrawalStatusProcessing {
			now := time.Now().UTC()
			w.ProcessedAt = &now
		}
		if err := tx.UpdateWithdrawal(ctx, w); err != nil {
			return fmt.Errorf("update withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("withdrawal status changed", "withdrawal_id", id, "status", status, "by", processedBy)
	return w, nil
}

// GetWithdrawal returns a withdrawal to the photographer who requested it.
func (s *Service) GetWithdrawal(ctx context.Context, id, photographerID uuid.UUID) (*models.Withdrawal, error) {
	w, err := s.store.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}
	if w == nil || w.PhotographerID != photographerID {
		return nil, ErrWithdrawalNotFound
	}
	return w, nil
}
