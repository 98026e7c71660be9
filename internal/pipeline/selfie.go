package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/your-org/photomarket/internal/imaging"
	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/observability"
	"github.com/your-org/photomarket/internal/storage"
)

// ProcessSelfie encodes the client's selfie. Exactly one face makes the
// client matchable and runs Client to Photos matching; the number of new
// matches is returned. Zero or several faces leave the client unprocessed
// with ErrNoFaceFound or ErrMultipleFacesFound recorded.
func (p *Pipeline) ProcessSelfie(ctx context.Context, clientID uuid.UUID) (int, error) {
	client, err := p.store.GetClient(ctx, clientID)
	if err != nil {
		return 0, fmt.Errorf("get client: %w", err)
	}
	if client == nil {
		return 0, fmt.Errorf("client %s: %w", clientID, storage.ErrNotFound)
	}
	if client.SelfieKey == "" {
		return 0, ErrNoSelfie
	}
	if !p.encoder.Available() {
		slog.Info("face encoder unavailable, selfie left unprocessed", "client_id", clientID)
		observability.SelfiesProcessed.WithLabelValues("unavailable").Inc()
		return 0, nil
	}

	data, err := p.objects.GetObject(ctx, client.SelfieKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, p.rejectSelfie(ctx, clientID, models.FaceStatusError, fmt.Errorf("%w: selfie missing", ErrUnreadableImage))
	}
	if err != nil {
		return 0, fmt.Errorf("load selfie: %w", err)
	}

	img, _, err := imaging.Decode(data)
	if err != nil {
		return 0, p.rejectSelfie(ctx, clientID, models.FaceStatusError, fmt.Errorf("%w: %v", ErrUnreadableImage, err))
	}

	faces, err := p.encoder.Detect(ctx, imaging.ToRGB(img))
	if err != nil {
		return 0, fmt.Errorf("encode selfie: %w", err)
	}

	switch {
	case len(faces) == 0:
		return 0, p.rejectSelfie(ctx, clientID, models.FaceStatusUnprocessed, ErrNoFaceFound)
	case len(faces) > 1:
		return 0, p.rejectSelfie(ctx, clientID, models.FaceStatusUnprocessed, ErrMultipleFacesFound)
	}

	if err := p.store.UpdateClientFace(ctx, clientID, models.FaceStatusProcessed, faces[0].Embedding, ""); err != nil {
		return 0, fmt.Errorf("store client face: %w", err)
	}
	observability.SelfiesProcessed.WithLabelValues("ok").Inc()

	matched, err := p.index.MatchClient(ctx, clientID)
	if err != nil {
		return matched, fmt.Errorf("match client: %w", err)
	}
	slog.Info("selfie processed", "client_id", clientID, "matched", matched)
	return matched, nil
}

// MarkSelfieFailed records a terminal failure, e.g. after retries ran out.
func (p *Pipeline) MarkSelfieFailed(ctx context.Context, clientID uuid.UUID, reason string) error {
	observability.SelfiesProcessed.WithLabelValues("error").Inc()
	if err := p.store.UpdateClientFace(ctx, clientID, models.FaceStatusError, nil, reason); err != nil {
		return fmt.Errorf("mark selfie failed: %w", err)
	}
	return nil
}

func (p *Pipeline) rejectSelfie(ctx context.Context, clientID uuid.UUID, status models.FaceStatus, cause error) error {
	outcome := "rejected"
	if status == models.FaceStatusError {
		outcome = "error"
	}
	observability.SelfiesProcessed.WithLabelValues(outcome).Inc()
	slog.Info("selfie rejected", "client_id", clientID, "reason", cause)
	if err := p.store.UpdateClientFace(ctx, clientID, status, nil, cause.Error()); err != nil {
		return errors.Join(cause, fmt.Errorf("store client face: %w", err))
	}
	return cause
}
