// Package vision finds faces in images and turns them into embeddings.
package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/your-org/photomarket/internal/models"
)

var (
	// ErrEncoderTimeout is returned when an encode call exceeds its deadline.
	ErrEncoderTimeout = errors.New("face encoder timed out")
	// ErrUnavailable is returned by encoders whose backend failed to load.
	ErrUnavailable = errors.New("face encoder unavailable")
	// ErrEncoderBusy is returned when the caller gave up while an earlier
	// call still held the encoder. The photo was never looked at.
	ErrEncoderBusy = errors.New("face encoder busy")
)

// FaceEncoder is the face detection and embedding oracle. Implementations
// must report Available() == false instead of failing every call when the
// backend is missing, so callers can degrade to neutral results.
type FaceEncoder interface {
	Available() bool
	Detect(ctx context.Context, img image.Image) ([]models.DetectedFace, error)
}

// Unavailable is the encoder used when no backend could be loaded.
type Unavailable struct{}

func (Unavailable) Available() bool { return false }

func (Unavailable) Detect(context.Context, image.Image) ([]models.DetectedFace, error) {
	return nil, ErrUnavailable
}

type timeoutEncoder struct {
	inner   FaceEncoder
	timeout time.Duration
	slot    chan struct{}
}

// WithTimeout serializes Detect calls and bounds each one. The clock starts
// once the call owns the encoder, so queueing behind another call never counts
// as a timeout. A timed out call keeps the encoder until the backend returns.
func WithTimeout(enc FaceEncoder, timeout time.Duration) FaceEncoder {
	if timeout <= 0 {
		return enc
	}
	return &timeoutEncoder{inner: enc, timeout: timeout, slot: make(chan struct{}, 1)}
}

func (t *timeoutEncoder) Available() bool { return t.inner.Available() }

func (t *timeoutEncoder) Detect(ctx context.Context, img image.Image) ([]models.DetectedFace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case t.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrEncoderBusy, ctx.Err())
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)

	type result struct {
		faces []models.DetectedFace
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() { <-t.slot }()
		defer cancel()
		faces, err := t.inner.Detect(ctx, img)
		ch <- result{faces, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrEncoderTimeout
		}
		return r.faces, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrEncoderTimeout
		}
		return nil, ctx.Err()
	}
}
