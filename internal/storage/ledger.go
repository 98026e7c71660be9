package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/photomarket/internal/models"
)

// --- Purchases ---

const purchaseColumns = `id, buyer_id, photo_id, photographer_id, amount, commission, photographer_amount, status,
	payment_id, payment_url, download_token, download_count, max_downloads, created_at, paid_at`

func scanPurchase(row scanner) (*models.Purchase, error) {
	p := &models.Purchase{}
	err := row.Scan(&p.ID, &p.BuyerID, &p.PhotoID, &p.PhotographerID, &p.Amount, &p.Commission,
		&p.PhotographerAmount, &p.Status, &p.PaymentID, &p.PaymentURL, &p.DownloadToken,
		&p.DownloadCount, &p.MaxDownloads, &p.CreatedAt, &p.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) CreatePurchase(ctx context.Context, p *models.Purchase) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO purchases (id, buyer_id, photo_id, photographer_id, amount, commission, photographer_amount,
			status, payment_id, payment_url, download_token, max_downloads)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING created_at`,
		p.ID, p.BuyerID, p.PhotoID, p.PhotographerID, p.Amount, p.Commission, p.PhotographerAmount,
		p.Status, p.PaymentID, p.PaymentURL, p.DownloadToken, p.MaxDownloads,
	).Scan(&p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create purchase: %w", ErrDuplicate)
		}
		return fmt.Errorf("create purchase: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	p, err := scanPurchase(s.pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetPurchaseByPaymentID(ctx context.Context, paymentID string) (*models.Purchase, error) {
	if paymentID == "" {
		return nil, nil
	}
	p, err := scanPurchase(s.pool.QueryRow(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE payment_id = $1`, paymentID))
	if err != nil {
		return nil, fmt.Errorf("get purchase by payment id: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) HasPaidPurchase(ctx context.Context, buyerID, photoID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM purchases WHERE buyer_id = $1 AND photo_id = $2 AND status = 'paid')`,
		buyerID, photoID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check paid purchase: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) SetPurchasePayment(ctx context.Context, id uuid.UUID, paymentID, paymentURL string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE purchases SET payment_id = $1, payment_url = $2 WHERE id = $3`, paymentID, paymentURL, id)
	if err != nil {
		return fmt.Errorf("set purchase payment: %w", err)
	}
	return requireRow(tag, "set purchase payment")
}

// --- Deletion requests ---

const deletionColumns = `id, photo_id, requester_id, reason, status, response, processed_by, created_at, processed_at`

func scanDeletionRequest(row scanner) (*models.DeletionRequest, error) {
	r := &models.DeletionRequest{}
	err := row.Scan(&r.ID, &r.PhotoID, &r.RequesterID, &r.Reason, &r.Status, &r.Response,
		&r.ProcessedBy, &r.CreatedAt, &r.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) CreateDeletionRequest(ctx context.Context, r *models.DeletionRequest) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.Status = models.DeletionStatusPending
	err := s.pool.QueryRow(ctx,
		`INSERT INTO deletion_requests (id, photo_id, requester_id, reason, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		r.ID, r.PhotoID, r.RequesterID, r.Reason, r.Status,
	).Scan(&r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create deletion request: %w", ErrDuplicate)
		}
		return fmt.Errorf("create deletion request: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDeletionRequest(ctx context.Context, id uuid.UUID) (*models.DeletionRequest, error) {
	r, err := scanDeletionRequest(s.pool.QueryRow(ctx,
		`SELECT `+deletionColumns+` FROM deletion_requests WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get deletion request: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) HasPendingDeletionRequest(ctx context.Context, photoID, requesterID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM deletion_requests
		 WHERE photo_id = $1 AND requester_id = $2 AND status = 'pending')`,
		photoID, requesterID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending deletion request: %w", err)
	}
	return exists, nil
}

// --- Withdrawals and transactions ---

const withdrawalColumns = `id, photographer_id, amount, bank_card, status, processed_by, rejection_reason, created_at, processed_at`

func scanWithdrawal(row scanner) (*models.Withdrawal, error) {
	w := &models.Withdrawal{}
	err := row.Scan(&w.ID, &w.PhotographerID, &w.Amount, &w.BankCard, &w.Status, &w.ProcessedBy,
		&w.RejectionReason, &w.CreatedAt, &w.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}

func (s *PostgresStore) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	w, err := scanWithdrawal(s.pool.QueryRow(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}
	return w, nil
}

func (s *PostgresStore) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, type, amount, purchase_id, withdrawal_id, description, created_at
		 FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.PurchaseID, &t.WithdrawalID,
			&t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// --- Transactional operations ---

type pgTx struct {
	q querier
}

func (t *pgTx) LockPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	p, err := scanPurchase(t.q.QueryRow(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("lock purchase: %w", err)
	}
	return p, nil
}

func (t *pgTx) LockPhotographer(ctx context.Context, id uuid.UUID) (*models.Photographer, error) {
	p, err := scanPhotographer(t.q.QueryRow(ctx,
		`SELECT `+photographerColumns+` FROM photographers WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("lock photographer: %w", err)
	}
	return p, nil
}

func (t *pgTx) LockClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	c, err := scanClient(t.q.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("lock client: %w", err)
	}
	return c, nil
}

func (t *pgTx) LockPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	p, err := scanPhoto(t.q.QueryRow(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("lock photo: %w", err)
	}
	return p, nil
}

func (t *pgTx) LockWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	w, err := scanWithdrawal(t.q.QueryRow(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("lock withdrawal: %w", err)
	}
	return w, nil
}

func (t *pgTx) LockDeletionRequest(ctx context.Context, id uuid.UUID) (*models.DeletionRequest, error) {
	r, err := scanDeletionRequest(t.q.QueryRow(ctx,
		`SELECT `+deletionColumns+` FROM deletion_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("lock deletion request: %w", err)
	}
	return r, nil
}

func (t *pgTx) HasOtherPaidPurchase(ctx context.Context, buyerID, photoID, exclude uuid.UUID) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM purchases
		 WHERE buyer_id = $1 AND photo_id = $2 AND status = 'paid' AND id <> $3)`,
		buyerID, photoID, exclude).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check other paid purchase: %w", err)
	}
	return exists, nil
}

func (t *pgTx) UpdatePurchase(ctx context.Context, p *models.Purchase) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE purchases SET status = $1, paid_at = $2, download_count = $3 WHERE id = $4`,
		p.Status, p.PaidAt, p.DownloadCount, p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update purchase: %w", ErrDuplicate)
		}
		return fmt.Errorf("update purchase: %w", err)
	}
	return requireRow(tag, "update purchase")
}

func (t *pgTx) UpdatePhotographerFunds(ctx context.Context, p *models.Photographer) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE photographers SET balance = $1, total_earned = $2 WHERE id = $3`,
		p.Balance, p.TotalEarned, p.ID)
	if err != nil {
		return fmt.Errorf("update photographer funds: %w", err)
	}
	return requireRow(tag, "update photographer funds")
}

func (t *pgTx) UpdateClientTotals(ctx context.Context, c *models.Client) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE clients SET total_purchases = $1, total_spent = $2 WHERE id = $3`,
		c.TotalPurchases, c.TotalSpent, c.ID)
	if err != nil {
		return fmt.Errorf("update client totals: %w", err)
	}
	return requireRow(tag, "update client totals")
}

func (t *pgTx) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	err := t.q.QueryRow(ctx,
		`INSERT INTO transactions (id, user_id, type, amount, purchase_id, withdrawal_id, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		txn.ID, txn.UserID, txn.Type, txn.Amount, txn.PurchaseID, txn.WithdrawalID, txn.Description,
	).Scan(&txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (t *pgTx) InsertWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	err := t.q.QueryRow(ctx,
		`INSERT INTO withdrawals (id, photographer_id, amount, bank_card, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		w.ID, w.PhotographerID, w.Amount, w.BankCard, w.Status,
	).Scan(&w.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE withdrawals SET status = $1, processed_by = $2, rejection_reason = $3, processed_at = $4
		 WHERE id = $5`,
		w.Status, w.ProcessedBy, w.RejectionReason, w.ProcessedAt, w.ID)
	if err != nil {
		return fmt.Errorf("update withdrawal: %w", err)
	}
	return requireRow(tag, "update withdrawal")
}

func (t *pgTx) UpdateDeletionRequest(ctx context.Context, r *models.DeletionRequest) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE deletion_requests SET status = $1, response = $2, processed_by = $3, processed_at = $4
		 WHERE id = $5`,
		r.Status, r.Response, r.ProcessedBy, r.ProcessedAt, r.ID)
	if err != nil {
		return fmt.Errorf("update deletion request: %w", err)
	}
	return requireRow(tag, "update deletion request")
}

func (t *pgTx) SetPhotoStatus(ctx context.Context, id uuid.UUID, status models.PhotoStatus) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE photos SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("set photo status: %w", err)
	}
	return requireRow(tag, "set photo status")
}

func (t *pgTx) RecountEventPhotos(ctx context.Context, eventID uuid.UUID) error {
	return recountEventPhotos(ctx, t.q, eventID)
}
