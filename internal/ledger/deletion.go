package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/storage"
)

// RequestDeletion files a client's request to take down an active photo.
// While it is pending the photo disappears from the client's listing.
func (s *Service) RequestDeletion(ctx context.Context, photoID, requesterID uuid.UUID, reason string) (*models.DeletionRequest, error) {
	client, err := s.store.GetClient(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	if client == nil {
		return nil, ErrForbidden
	}

	photo, err := s.store.GetPhoto(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	if photo == nil || photo.Status != models.PhotoStatusActive {
		return nil, ErrPhotoUnavailable
	}

	pending, err := s.store.HasPendingDeletionRequest(ctx, photoID, requesterID)
	if err != nil {
		return nil, fmt.Errorf("check pending request: %w", err)
	}
	if pending {
		return nil, ErrDuplicateRequest
	}

	r := &models.DeletionRequest{
		ID:          uuid.New(),
		PhotoID:     photoID,
		RequesterID: requesterID,
		Reason:      reason,
		Status:      models.DeletionStatusPending,
	}
	if err := s.store.CreateDeletionRequest(ctx, r); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrDuplicateRequest
		}
		return nil, fmt.Errorf("create deletion request: %w", err)
	}

	slog.Info("deletion requested", "request_id", r.ID, "photo_id", photoID, "requester_id", requesterID)
	return r, nil
}

// ResolveDeletion lets the owning photographer approve or reject a pending
// request exactly once. Approval deletes the photo.
func (s *Service) ResolveDeletion(ctx context.Context, requestID, photographerID uuid.UUID, approve bool, response string) (*models.DeletionRequest, error) {
	var r *models.DeletionRequest
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		r, err = tx.LockDeletionRequest(ctx, requestID)
		if err != nil {
			return fmt.Errorf("lock deletion request: %w", err)
		}
		if r == nil {
			return ErrRequestNotFound
		}
		photo, err := tx.LockPhoto(ctx, r.PhotoID)
		if err != nil {
			return fmt.Errorf("lock photo: %w", err)
		}
		if photo == nil || photo.PhotographerID != photographerID {
			return ErrForbidden
		}
		if r.Status != models.DeletionStatusPending {
			return ErrAlreadyResolved
		}

		if approve {
			if err := tx.SetPhotoStatus(ctx, photo.ID, models.PhotoStatusDeleted); err != nil {
				return fmt.Errorf("delete photo: %w", err)
			}
			if photo.EventID != nil {
				if err := tx.RecountEventPhotos(ctx, *photo.EventID); err != nil {
					return fmt.Errorf("recount event photos: %w", err)
				}
			}
			r.Status = models.DeletionStatusApproved
		} else {
			r.Status = models.DeletionStatusRejected
		}

		now := time.Now().UTC()
		r.Response = response
		r.ProcessedBy = &photographerID
		r.ProcessedAt = &now
		if err := tx.UpdateDeletionRequest(ctx, r); err != nil {
			return fmt.Errorf("update deletion request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("deletion request resolved", "request_id", requestID, "status", r.Status)
	return r, nil
}

// GetDeletionRequest returns a request to its requester or to the owner of
// the photo.
func (s *Service) GetDeletionRequest(ctx context.Context, id, userID uuid.UUID) (*models.DeletionRequest, error) {
	r, err := s.store.GetDeletionRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get deletion request: %w", err)
	}
	if r == nil {
		return nil, ErrRequestNotFound
	}
	if r.RequesterID == userID {
		return r, nil
	}
	photo, err := s.store.GetPhoto(ctx, r.PhotoID)
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	if photo == nil || photo.PhotographerID != userID {
		return nil, ErrRequestNotFound
	}
	return r, nil
}
