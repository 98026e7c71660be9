package ledger

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/observability"
	"github.com/your-org/photomarket/internal/payments"
	"github.com/your-org/photomarket/internal/storage"
)

// Purchase starts buying an active photo. Without a payment provider the
// purchase is settled before returning; otherwise it stays pending with the
// provider's payment id and confirmation URL recorded.
func (s *Service) Purchase(ctx context.Context, buyerID, photoID uuid.UUID) (*models.Purchase, error) {
	buyer, err := s.store.GetClient(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	if buyer == nil {
		return nil, ErrForbidden
	}

	photo, err := s.store.GetPhoto(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	if photo == nil || photo.Status != models.PhotoStatusActive {
		return nil, ErrPhotoUnavailable
	}

	paid, err := s.store.HasPaidPurchase(ctx, buyerID, photoID)
	if err != nil {
		return nil, fmt.Errorf("check paid purchase: %w", err)
	}
	if paid {
		return nil, ErrAlreadyPurchased
	}

	token, err := newDownloadToken()
	if err != nil {
		return nil, err
	}
	commission, share := Split(photo.Price, s.opts.CommissionRate)
	p := &models.Purchase{
		ID:                 uuid.New(),
		BuyerID:            buyerID,
		PhotoID:            photoID,
		PhotographerID:     photo.PhotographerID,
		Amount:             photo.Price,
		Commission:         commission,
		PhotographerAmount: share,
		Status:             models.PurchaseStatusPending,
		DownloadToken:      token,
		MaxDownloads:       s.opts.MaxDownloads,
	}
	if err := s.store.CreatePurchase(ctx, p); err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}

	if s.provider == nil {
		return s.Settle(ctx, p.ID)
	}

	payment, err := s.provider.CreatePayment(ctx, payments.CreateRequest{
		PurchaseID:  p.ID,
		Amount:      p.Amount,
		Description: fmt.Sprintf("Photo %s", photoID),
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	if err := s.store.SetPurchasePayment(ctx, p.ID, payment.ID, payment.ConfirmationURL); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	p.PaymentID = payment.ID
	p.PaymentURL = payment.ConfirmationURL

	slog.Info("purchase awaiting payment", "purchase_id", p.ID, "payment_id", payment.ID)
	return p, nil
}

// Settle marks a pending purchase paid and moves the money in one
// transaction. If the buyer already owns the photo through another purchase,
// this one is marked failed and ErrAlreadyPurchased is returned.
func (s *Service) Settle(ctx context.Context, purchaseID uuid.UUID) (*models.Purchase, error) {
	var (
		settled   *models.Purchase
		duplicate bool
	)
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		p, err := tx.LockPurchase(ctx, purchaseID)
		if err != nil {
			return fmt.Errorf("lock purchase: %w", err)
		}
		if p == nil {
			return ErrPurchaseNotFound
		}
		if p.Status != models.PurchaseStatusPending {
			return ErrNotPending
		}

		other, err := tx.HasOtherPaidPurchase(ctx, p.BuyerID, p.PhotoID, p.ID)
		if err != nil {
			return fmt.Errorf("check paid purchase: %w", err)
		}
		if other {
			duplicate = true
			p.Status = models.PurchaseStatusFailed
			return tx.UpdatePurchase(ctx, p)
		}

		photographer, err := tx.LockPhotographer(ctx, p.PhotographerID)
		if err != nil {
			return fmt.Errorf("lock photographer: %w", err)
		}
		if photographer == nil {
			return fmt.Errorf("photographer %s: %w", p.PhotographerID, storage.ErrNotFound)
		}
		client, err := tx.LockClient(ctx, p.BuyerID)
		if err != nil {
			return fmt.Errorf("lock client: %w", err)
		}
		if client == nil {
			return fmt.Errorf("client %s: %w", p.BuyerID, storage.ErrNotFound)
		}

		now := time.Now().UTC()
		p.Status = models.PurchaseStatusPaid
		p.PaidAt = &now
		if err := tx.UpdatePurchase(ctx, p); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return ErrAlreadyPurchased
			}
			return fmt.Errorf("update purchase: %w", err)
		}

		photographer.Balance = photographer.Balance.Add(p.PhotographerAmount)
		photographer.TotalEarned = photographer.TotalEarned.Add(p.PhotographerAmount)
		if err := tx.UpdatePhotographerFunds(ctx, photographer); err != nil {
			return fmt.Errorf("credit photographer: %w", err)
		}

		client.TotalPurchases++
		client.TotalSpent = client.TotalSpent.Add(p.Amount)
		if err := tx.UpdateClientTotals(ctx, client); err != nil {
			return fmt.Errorf("update client totals: %w", err)
		}

		if err := tx.InsertTransaction(ctx, &models.Transaction{
			UserID:      p.BuyerID,
			Type:        models.TransactionPurchase,
			Amount:      p.Amount,
			PurchaseID:  &p.ID,
			Description: fmt.Sprintf("Purchase of photo %s", p.PhotoID),
		}); err != nil {
			return fmt.Errorf("record purchase transaction: %w", err)
		}
		if err := tx.InsertTransaction(ctx, &models.Transaction{
			UserID:      p.PhotographerID,
			Type:        models.TransactionSale,
			Amount:      p.PhotographerAmount,
			PurchaseID:  &p.ID,
			Description: fmt.Sprintf("Sale of photo %s", p.PhotoID),
		}); err != nil {
			return fmt.Errorf("record sale transaction: %w", err)
		}

		settled = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if duplicate {
		slog.Warn("purchase duplicates a paid one, marked failed", "purchase_id", purchaseID)
		return nil, ErrAlreadyPurchased
	}

	observability.PurchasesSettled.Inc()
	slog.Info("purchase settled",
		"purchase_id", settled.ID,
		"amount", settled.Amount.String(),
		"commission", settled.Commission.String())
	return settled, nil
}

// HandlePaymentEvent applies a provider webhook. Unknown payment ids,
// purchases that are no longer pending and unknown events are ignored. With a
// provider configured the payment status is fetched from it first, and events
// the provider does not confirm are ignored.
func (s *Service) HandlePaymentEvent(ctx context.Context, event, paymentID string) error {
	switch event {
	case payments.EventSucceeded, payments.EventCanceled:
		observability.WebhookEvents.WithLabelValues(event).Inc()
	default:
		observability.WebhookEvents.WithLabelValues("ignored").Inc()
		return nil
	}

	p, err := s.store.GetPurchaseByPaymentID(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("get purchase by payment: %w", err)
	}
	if p == nil {
		slog.Warn("payment event for unknown payment", "event", event, "payment_id", paymentID)
		return nil
	}
	if s.provider != nil {
		ok, err := s.confirmPayment(ctx, event, paymentID)
		if err != nil || !ok {
			return err
		}
	}

	if event == payments.EventSucceeded {
		_, err := s.Settle(ctx, p.ID)
		if errors.Is(err, ErrNotPending) || errors.Is(err, ErrAlreadyPurchased) {
			return nil
		}
		return err
	}

	return s.store.WithTx(ctx, func(tx storage.Tx) error {
		locked, err := tx.LockPurchase(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("lock purchase: %w", err)
		}
		if locked == nil || locked.Status != models.PurchaseStatusPending {
			return nil
		}
		locked.Status = models.PurchaseStatusFailed
		if err := tx.UpdatePurchase(ctx, locked); err != nil {
			return fmt.Errorf("update purchase: %w", err)
		}
		slog.Info("purchase canceled by provider", "purchase_id", locked.ID)
		return nil
	})
}

func (s *Service) confirmPayment(ctx context.Context, event, paymentID string) (bool, error) {
	payment, err := s.provider.GetPayment(ctx, paymentID)
	if err != nil {
		return false, fmt.Errorf("verify payment: %w", err)
	}
	want := payments.StatusSucceeded
	if event == payments.EventCanceled {
		want = payments.StatusCanceled
	}
	if payment.Status != want {
		observability.WebhookEvents.WithLabelValues("unconfirmed").Inc()
		slog.Warn("payment event not confirmed by provider",
			"event", event, "payment_id", paymentID, "status", payment.Status)
		return false, nil
	}
	return true, nil
}

// Download spends one download of a paid purchase and returns the purchase
// with the counter already incremented. A wrong token is indistinguishable
// from a missing purchase.
func (s *Service) Download(ctx context.Context, purchaseID uuid.UUID, token string, requesterID uuid.UUID) (*models.Purchase, *models.Photo, error) {
	var (
		purchase *models.Purchase
		photo    *models.Photo
	)
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		p, err := tx.LockPurchase(ctx, purchaseID)
		if err != nil {
			return fmt.Errorf("lock purchase: %w", err)
		}
		if p == nil || p.Status != models.PurchaseStatusPaid ||
			subtle.ConstantTimeCompare([]byte(p.DownloadToken), []byte(token)) != 1 {
			return ErrPurchaseNotFound
		}
		if p.BuyerID != requesterID {
			return ErrForbidden
		}
		if p.DownloadCount >= p.MaxDownloads {
			return ErrQuotaExceeded
		}

		p.DownloadCount++
		if err := tx.UpdatePurchase(ctx, p); err != nil {
			return fmt.Errorf("update purchase: %w", err)
		}
		ph, err := tx.LockPhoto(ctx, p.PhotoID)
		if err != nil {
			return fmt.Errorf("lock photo: %w", err)
		}
		if ph == nil {
			return ErrPurchaseNotFound
		}
		purchase, photo = p, ph
		return nil
	})

	switch {
	case err == nil:
		observability.Downloads.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrQuotaExceeded):
		observability.Downloads.WithLabelValues("quota_exceeded").Inc()
	case errors.Is(err, ErrForbidden):
		observability.Downloads.WithLabelValues("forbidden").Inc()
	default:
		observability.Downloads.WithLabelValues("not_found").Inc()
	}
	if err != nil {
		return nil, nil, err
	}
	return purchase, photo, nil
}

// GetPurchase returns a purchase to its buyer. Other users get
// ErrPurchaseNotFound.
func (s *Service) GetPurchase(ctx context.Context, id, requesterID uuid.UUID) (*models.Purchase, error) {
	p, err := s.store.GetPurchase(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	if p == nil || p.BuyerID != requesterID {
		return nil, ErrPurchaseNotFound
	}
	return p, nil
}
