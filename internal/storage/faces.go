package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/photomarket/internal/models"
)

func scanFace(row scanner) (*models.PhotoFace, error) {
	f := &models.PhotoFace{}
	var vec pgvector.Vector
	if err := row.Scan(&f.ID, &f.PhotoID, &f.Box, &vec, &f.MatchedClientID, &f.Confidence, &f.CreatedAt); err != nil {
		return nil, err
	}
	f.Embedding = vec.Slice()
	return f, nil
}

func (s *PostgresStore) queryFaces(ctx context.Context, query string, args ...any) ([]models.PhotoFace, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var faces []models.PhotoFace
	for rows.Next() {
		f, err := scanFace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		faces = append(faces, *f)
	}
	return faces, rows.Err()
}

func (s *PostgresStore) ListPhotoFaces(ctx context.Context, photoID uuid.UUID) ([]models.PhotoFace, error) {
	faces, err := s.queryFaces(ctx,
		`SELECT id, photo_id, bounding_box, embedding, matched_client_id, match_confidence, created_at
		 FROM photo_faces WHERE photo_id = $1 ORDER BY created_at, id`, photoID)
	if err != nil {
		return nil, fmt.Errorf("list photo faces: %w", err)
	}
	return faces, nil
}

func (s *PostgresStore) ListFacesForMatching(ctx context.Context, unmatchedOnly bool) ([]models.PhotoFace, error) {
	query := `SELECT f.id, f.photo_id, f.bounding_box, f.embedding, f.matched_client_id, f.match_confidence, f.created_at
		FROM photo_faces f JOIN photos p ON p.id = f.photo_id
		WHERE p.status = 'active'`
	if unmatchedOnly {
		query += ` AND f.matched_client_id IS NULL`
	}
	query += ` ORDER BY f.created_at, f.id`

	faces, err := s.queryFaces(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list faces for matching: %w", err)
	}
	return faces, nil
}

func (s *PostgresStore) ClaimFace(ctx context.Context, faceID, clientID uuid.UUID, confidence float64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE photo_faces SET matched_client_id = $1, match_confidence = $2
		 WHERE id = $3 AND matched_client_id IS NULL`,
		clientID, confidence, faceID)
	if err != nil {
		return false, fmt.Errorf("claim face: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) AssignFace(ctx context.Context, faceID uuid.UUID, clientID *uuid.UUID, confidence float64) error {
	if clientID == nil {
		confidence = 0
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE photo_faces SET matched_client_id = $1, match_confidence = $2 WHERE id = $3`,
		clientID, confidence, faceID)
	if err != nil {
		return fmt.Errorf("assign face: %w", err)
	}
	return requireRow(tag, "assign face")
}
