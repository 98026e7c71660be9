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

const photoColumns = `id, photographer_id, event_id, original_key, watermarked_key, thumbnail_key, original_name,
	price, status, faces_count, faces_processed, processing_error, width, height, file_size, created_at, updated_at`

func scanPhoto(row scanner) (*models.Photo, error) {
	p := &models.Photo{}
	err := row.Scan(&p.ID, &p.PhotographerID, &p.EventID, &p.OriginalKey, &p.WatermarkedKey, &p.ThumbnailKey,
		&p.OriginalName, &p.Price, &p.Status, &p.FacesCount, &p.FacesProcessed, &p.ProcessingError,
		&p.Width, &p.Height, &p.FileSize, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) CreatePhoto(ctx context.Context, p *models.Photo) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = models.PhotoStatusProcessing
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO photos (id, photographer_id, event_id, original_key, original_name, price, status, file_size)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at, updated_at`,
		p.ID, p.PhotographerID, p.EventID, p.OriginalKey, p.OriginalName, p.Price, p.Status, p.FileSize,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create photo: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	p, err := scanPhoto(s.pool.QueryRow(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPhotoIDs(ctx context.Context, q PhotoQuery) ([]uuid.UUID, error) {
	where := "WHERE TRUE"
	var args []any
	if q.Status != nil {
		args = append(args, *q.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if q.UnprocessedOnly {
		where += " AND faces_processed = FALSE"
	}
	if !q.CreatedBefore.IsZero() {
		args = append(args, q.CreatedBefore)
		where += fmt.Sprintf(" AND created_at < $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, `SELECT id FROM photos `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list photo ids: %w", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan photo ids: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) SetPhotoStatus(ctx context.Context, id uuid.UUID, status models.PhotoStatus, processingErr string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var eventID *uuid.UUID
		err := tx.QueryRow(ctx,
			`UPDATE photos SET status = $1, processing_error = $2, updated_at = NOW()
			 WHERE id = $3 RETURNING event_id`,
			status, processingErr, id).Scan(&eventID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("set photo status: %w", ErrNotFound)
			}
			return fmt.Errorf("set photo status: %w", err)
		}
		if eventID != nil {
			return recountEventPhotos(ctx, tx, *eventID)
		}
		return nil
	})
}

// FailPhotoProcessing records a processing error. Only photos in processing,
// active or error move to error; manual states keep their status.
func (s *PostgresStore) FailPhotoProcessing(ctx context.Context, id uuid.UUID, reason string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var eventID *uuid.UUID
		err := tx.QueryRow(ctx,
			`UPDATE photos SET processing_error = $1,
				status = CASE WHEN status IN ('processing', 'active', 'error') THEN 'error' ELSE status END,
				updated_at = NOW()
			 WHERE id = $2 RETURNING event_id`,
			reason, id).Scan(&eventID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("fail photo processing: %w", ErrNotFound)
			}
			return fmt.Errorf("fail photo processing: %w", err)
		}
		if eventID != nil {
			return recountEventPhotos(ctx, tx, *eventID)
		}
		return nil
	})
}

// CompletePhotoProcessing swaps in the new face rows and derivative keys atomically.
// Photos in processing or error become active; manual states (hidden, sold, deleted) are kept.
func (s *PostgresStore) CompletePhotoProcessing(ctx context.Context, res *models.ProcessingResult) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM photo_faces WHERE photo_id = $1`, res.PhotoID); err != nil {
			return fmt.Errorf("delete old faces: %w", err)
		}

		batch := &pgx.Batch{}
		for i := range res.Faces {
			f := &res.Faces[i]
			if f.ID == uuid.Nil {
				f.ID = uuid.New()
			}
			f.PhotoID = res.PhotoID
			batch.Queue(
				`INSERT INTO photo_faces (id, photo_id, bounding_box, embedding, matched_client_id, match_confidence)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				f.ID, f.PhotoID, f.Box, pgvector.NewVector(f.Embedding), f.MatchedClientID, f.Confidence)
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("insert faces: %w", err)
			}
		}

		var eventID *uuid.UUID
		err := tx.QueryRow(ctx,
			`UPDATE photos SET
				watermarked_key = $1, thumbnail_key = $2, width = $3, height = $4,
				faces_count = $5, faces_processed = $7, processing_error = '',
				status = CASE WHEN status IN ('processing', 'error') THEN 'active' ELSE status END,
				updated_at = NOW()
			 WHERE id = $6 RETURNING event_id`,
			res.WatermarkedKey, res.ThumbnailKey, res.Width, res.Height, len(res.Faces), res.PhotoID, res.FacesProcessed,
		).Scan(&eventID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("complete photo processing: %w", ErrNotFound)
			}
			return fmt.Errorf("complete photo processing: %w", err)
		}
		if eventID != nil {
			return recountEventPhotos(ctx, tx, *eventID)
		}
		return nil
	})
}

func (s *PostgresStore) ListClientPhotos(ctx context.Context, clientID uuid.UUID, f models.PhotoFilter) ([]models.Photo, error) {
	args := []any{clientID}
	where := `WHERE p.status = 'active'
		AND EXISTS (SELECT 1 FROM photo_faces pf WHERE pf.photo_id = p.id AND pf.matched_client_id = $1)
		AND NOT EXISTS (SELECT 1 FROM deletion_requests dr WHERE dr.photo_id = p.id AND dr.status = 'pending')`

	if f.EventType != "" {
		args = append(args, f.EventType)
		where += fmt.Sprintf(" AND e.event_type = $%d", len(args))
	}
	if f.City != "" {
		args = append(args, "%"+f.City+"%")
		where += fmt.Sprintf(" AND e.city ILIKE $%d", len(args))
	}
	if f.DateFrom != nil {
		args = append(args, *f.DateFrom)
		where += fmt.Sprintf(" AND e.date >= $%d", len(args))
	}
	if f.DateTo != nil {
		args = append(args, *f.DateTo)
		where += fmt.Sprintf(" AND e.date <= $%d", len(args))
	}
	if f.PriceMin != nil {
		args = append(args, *f.PriceMin)
		where += fmt.Sprintf(" AND p.price >= $%d", len(args))
	}
	if f.PriceMax != nil {
		args = append(args, *f.PriceMax)
		where += fmt.Sprintf(" AND p.price <= $%d", len(args))
	}

	query := `SELECT p.id, p.photographer_id, p.event_id, p.original_key, p.watermarked_key, p.thumbnail_key,
			p.original_name, p.price, p.status, p.faces_count, p.faces_processed, p.processing_error,
			p.width, p.height, p.file_size, p.created_at, p.updated_at
		FROM photos p LEFT JOIN events e ON e.id = p.event_id ` + where + `
		ORDER BY p.created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list client photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, *p)
	}
	return photos, rows.Err()
}
