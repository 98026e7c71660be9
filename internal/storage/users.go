package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/photomarket/internal/models"
)

type scanner interface {
	Scan(dest ...any) error
}

func vectorOrNil(embedding []float32) *pgvector.Vector {
	if len(embedding) == 0 {
		return nil
	}
	v := pgvector.NewVector(embedding)
	return &v
}

// --- Photographers ---

const photographerColumns = `id, display_name, balance, total_earned, default_price, bank_card, created_at`

func scanPhotographer(row scanner) (*models.Photographer, error) {
	p := &models.Photographer{}
	err := row.Scan(&p.ID, &p.DisplayName, &p.Balance, &p.TotalEarned, &p.DefaultPrice, &p.BankCard, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) CreatePhotographer(ctx context.Context, p *models.Photographer) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO photographers (id, display_name, default_price, bank_card)
		 VALUES ($1, $2, $3, $4) RETURNING balance, total_earned, created_at`,
		p.ID, p.DisplayName, p.DefaultPrice, p.BankCard,
	).Scan(&p.Balance, &p.TotalEarned, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create photographer: %w", ErrDuplicate)
		}
		return fmt.Errorf("create photographer: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPhotographer(ctx context.Context, id uuid.UUID) (*models.Photographer, error) {
	p, err := scanPhotographer(s.pool.QueryRow(ctx,
		`SELECT `+photographerColumns+` FROM photographers WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get photographer: %w", err)
	}
	return p, nil
}

// --- Clients ---

const clientColumns = `id, display_name, selfie_key, face_embedding, face_status, face_error,
	total_purchases, total_spent, created_at`

func scanClient(row scanner) (*models.Client, error) {
	c := &models.Client{}
	var vec *pgvector.Vector
	err := row.Scan(&c.ID, &c.DisplayName, &c.SelfieKey, &vec, &c.FaceStatus, &c.FaceError,
		&c.TotalPurchases, &c.TotalSpent, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if vec != nil {
		c.Embedding = vec.Slice()
	}
	return c, nil
}

func (s *PostgresStore) CreateClient(ctx context.Context, c *models.Client) error {
	if c.FaceStatus == "" {
		c.FaceStatus = models.FaceStatusUnprocessed
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO clients (id, display_name, face_status) VALUES ($1, $2, $3)
		 RETURNING total_purchases, total_spent, created_at`,
		c.ID, c.DisplayName, c.FaceStatus,
	).Scan(&c.TotalPurchases, &c.TotalSpent, &c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create client: %w", ErrDuplicate)
		}
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	c, err := scanClient(s.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) SetClientSelfie(ctx context.Context, id uuid.UUID, key string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE clients SET selfie_key = $1, face_embedding = NULL, face_status = 'unprocessed', face_error = ''
		 WHERE id = $2`, key, id)
	if err != nil {
		return fmt.Errorf("set client selfie: %w", err)
	}
	return requireRow(tag, "set client selfie")
}

func (s *PostgresStore) UpdateClientFace(ctx context.Context, id uuid.UUID, status models.FaceStatus, embedding []float32, faceErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE clients SET face_status = $1, face_embedding = $2, face_error = $3 WHERE id = $4`,
		status, vectorOrNil(embedding), faceErr, id)
	if err != nil {
		return fmt.Errorf("update client face: %w", err)
	}
	return requireRow(tag, "update client face")
}

func (s *PostgresStore) ListMatchableClients(ctx context.Context) ([]models.Client, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+clientColumns+` FROM clients
		 WHERE face_status = 'processed' AND face_embedding IS NOT NULL
		 ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list matchable clients: %w", err)
	}
	defer rows.Close()

	var clients []models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

// --- Events ---

const eventColumns = `id, photographer_id, name, event_type, city, date, default_price, is_public, photos_count, created_at`

func scanEvent(row scanner) (*models.Event, error) {
	e := &models.Event{}
	err := row.Scan(&e.ID, &e.PhotographerID, &e.Name, &e.EventType, &e.City, &e.Date,
		&e.DefaultPrice, &e.IsPublic, &e.PhotosCount, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func (s *PostgresStore) CreateEvent(ctx context.Context, e *models.Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO events (id, photographer_id, name, event_type, city, date, default_price, is_public)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`,
		e.ID, e.PhotographerID, e.Name, e.EventType, e.City, e.Date, e.DefaultPrice, e.IsPublic,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) RecountEventPhotos(ctx context.Context, id uuid.UUID) error {
	return recountEventPhotos(ctx, s.pool, id)
}

func recountEventPhotos(ctx context.Context, q querier, id uuid.UUID) error {
	_, err := q.Exec(ctx,
		`UPDATE events SET photos_count =
			(SELECT COUNT(*) FROM photos WHERE event_id = $1 AND status = 'active')
		 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("recount event photos: %w", err)
	}
	return nil
}
