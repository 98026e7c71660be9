// Package pipeline turns uploaded originals into sellable photos and
// uploaded selfies into client face encodings.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photomarket/internal/config"
	"github.com/your-org/photomarket/internal/imaging"
	"github.com/your-org/photomarket/internal/matching"
	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/observability"
	"github.com/your-org/photomarket/internal/storage"
	"github.com/your-org/photomarket/internal/vision"
)

var (
	// ErrUnreadableImage marks an original or selfie that cannot be decoded.
	// Retrying never helps.
	ErrUnreadableImage = errors.New("unreadable image")
	// ErrNoFaceFound is recorded when a selfie contains no face.
	ErrNoFaceFound = errors.New("no face detected")
	// ErrMultipleFacesFound is recorded when a selfie contains more than one face.
	ErrMultipleFacesFound = errors.New("multiple faces detected")
	// ErrNoSelfie is returned for clients that never uploaded a selfie.
	ErrNoSelfie = errors.New("no selfie uploaded")
)

// Store is the persistence the pipeline needs.
type Store interface {
	GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error)
	FailPhotoProcessing(ctx context.Context, id uuid.UUID, reason string) error
	CompletePhotoProcessing(ctx context.Context, res *models.ProcessingResult) error
	GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	UpdateClientFace(ctx context.Context, id uuid.UUID, status models.FaceStatus, embedding []float32, faceErr string) error
}

type Options struct {
	ThumbnailSize    int
	ThumbnailQuality int
	Watermark        imaging.WatermarkOptions
}

func OptionsFromConfig(cfg config.ProcessingConfig) Options {
	return Options{
		ThumbnailSize:    cfg.ThumbnailSize,
		ThumbnailQuality: cfg.ThumbnailQuality,
		Watermark: imaging.WatermarkOptions{
			Text:    cfg.WatermarkText,
			Opacity: cfg.WatermarkOpacity,
			Angle:   cfg.WatermarkAngle,
			Quality: cfg.WatermarkQuality,
		},
	}
}

type Pipeline struct {
	store   Store
	objects storage.ObjectStore
	encoder vision.FaceEncoder
	index   *matching.Service
	opts    Options
}

func New(store Store, objects storage.ObjectStore, encoder vision.FaceEncoder, index *matching.Service, opts Options) *Pipeline {
	return &Pipeline{store: store, objects: objects, encoder: encoder, index: index, opts: opts}
}

// ProcessPhoto builds the derivatives of one photo, encodes its faces, matches
// them against processed clients and activates the photo. Running it again
// replaces the previous result. It reports false when there was nothing to do.
func (p *Pipeline) ProcessPhoto(ctx context.Context, photoID uuid.UUID) (bool, error) {
	photo, err := p.store.GetPhoto(ctx, photoID)
	if err != nil {
		return false, fmt.Errorf("get photo: %w", err)
	}
	if photo == nil {
		return false, fmt.Errorf("photo %s: %w", photoID, storage.ErrNotFound)
	}
	if photo.Status == models.PhotoStatusDeleted {
		slog.Debug("skipping deleted photo", "photo_id", photoID)
		return false, nil
	}
	if !p.encoder.Available() && hasDerivatives(photo) {
		slog.Debug("face encoder unavailable, keeping existing derivatives", "photo_id", photoID)
		return false, nil
	}

	start := time.Now()
	data, err := p.objects.GetObject(ctx, photo.OriginalKey)
	if errors.Is(err, storage.ErrNotFound) {
		return false, p.fail(ctx, photo, fmt.Errorf("%w: original missing", ErrUnreadableImage))
	}
	if err != nil {
		return false, fmt.Errorf("load original: %w", err)
	}

	img, _, err := imaging.Decode(data)
	if err != nil {
		return false, p.fail(ctx, photo, fmt.Errorf("%w: %v", ErrUnreadableImage, err))
	}
	b := img.Bounds()

	thumb, err := imaging.Thumbnail(img, p.opts.ThumbnailSize, p.opts.ThumbnailQuality)
	if err != nil {
		return false, p.fail(ctx, photo, fmt.Errorf("%w: %v", ErrUnreadableImage, err))
	}
	marked, err := imaging.Watermark(img, p.opts.Watermark)
	if err != nil {
		return false, p.fail(ctx, photo, fmt.Errorf("%w: %v", ErrUnreadableImage, err))
	}

	res := &models.ProcessingResult{
		PhotoID:        photo.ID,
		WatermarkedKey: storage.WatermarkedKey(photo.PhotographerID, photo.ID),
		ThumbnailKey:   storage.ThumbnailKey(photo.PhotographerID, photo.ID, thumb.Ext),
		Width:          b.Dx(),
		Height:         b.Dy(),
	}
	if err := p.objects.PutObject(ctx, res.ThumbnailKey, thumb.Data, thumb.ContentType); err != nil {
		return false, fmt.Errorf("store thumbnail: %w", err)
	}
	if err := p.objects.PutObject(ctx, res.WatermarkedKey, marked, "image/jpeg"); err != nil {
		return false, fmt.Errorf("store watermarked: %w", err)
	}

	detected, encoded, err := p.detectPhotoFaces(ctx, img, photoID)
	if err != nil {
		return false, err
	}
	res.FacesProcessed = encoded

	candidates, err := p.index.Candidates(ctx)
	if err != nil {
		return false, err
	}
	for _, d := range detected {
		face := models.PhotoFace{ID: uuid.New(), PhotoID: photo.ID, Box: d.Box, Embedding: d.Embedding}
		if m, ok := p.index.Matcher().FirstMatch(d.Embedding, candidates); ok {
			face.MatchedClientID = &m.ID
			face.Confidence = m.Confidence
		}
		res.Faces = append(res.Faces, face)
	}

	if err := p.store.CompletePhotoProcessing(ctx, res); err != nil {
		return false, fmt.Errorf("complete photo processing: %w", err)
	}

	p.removeStale(ctx, photo, res)

	matched := 0
	for _, f := range res.Faces {
		if f.MatchedClientID == nil {
			continue
		}
		matched++
		p.index.Notify(ctx, models.MatchEvent{
			ClientID:   *f.MatchedClientID,
			PhotoID:    photo.ID,
			FaceID:     f.ID,
			Confidence: f.Confidence,
			Source:     matching.SourcePhoto,
			Timestamp:  time.Now().UTC(),
		})
	}

	observability.PhotosProcessed.WithLabelValues("ok").Inc()
	observability.FacesDetected.Add(float64(len(res.Faces)))
	slog.Info("photo processed",
		"photo_id", photo.ID,
		"faces", len(res.Faces),
		"matched", matched,
		"encoded", encoded,
		"duration", time.Since(start))
	return true, nil
}

// MarkPhotoFailed records a terminal failure, e.g. after retries ran out.
// Hidden, sold and deleted photos keep their status.
func (p *Pipeline) MarkPhotoFailed(ctx context.Context, photoID uuid.UUID, reason string) error {
	observability.PhotosProcessed.WithLabelValues("error").Inc()
	if err := p.store.FailPhotoProcessing(ctx, photoID, reason); err != nil {
		return fmt.Errorf("mark photo failed: %w", err)
	}
	return nil
}

// detectPhotoFaces runs the encoder on the normalized image. A timeout yields
// zero faces; an unavailable encoder yields zero faces with encoded=false.
// A busy encoder is returned as is so the task gets retried.
func (p *Pipeline) detectPhotoFaces(ctx context.Context, img image.Image, photoID uuid.UUID) ([]models.DetectedFace, bool, error) {
	if !p.encoder.Available() {
		return nil, false, nil
	}
	faces, err := p.encoder.Detect(ctx, imaging.ToRGB(img))
	switch {
	case errors.Is(err, vision.ErrEncoderTimeout):
		slog.Warn("face encoder timed out, storing photo without faces", "photo_id", photoID)
		return nil, true, nil
	case errors.Is(err, vision.ErrUnavailable):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("encode faces: %w", err)
	}
	return faces, true, nil
}

// hasDerivatives reports whether a settled photo already carries its thumbnail
// and watermark.
func hasDerivatives(photo *models.Photo) bool {
	switch photo.Status {
	case models.PhotoStatusProcessing, models.PhotoStatusError:
		return false
	}
	return photo.WatermarkedKey != "" && photo.ThumbnailKey != ""
}

func (p *Pipeline) fail(ctx context.Context, photo *models.Photo, cause error) error {
	slog.Error("photo processing failed", "photo_id", photo.ID, "error", cause)
	if err := p.MarkPhotoFailed(ctx, photo.ID, cause.Error()); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// removeStale deletes derivatives of a previous run that the new run did not overwrite.
func (p *Pipeline) removeStale(ctx context.Context, old *models.Photo, res *models.ProcessingResult) {
	var stale []string
	if old.ThumbnailKey != "" && old.ThumbnailKey != res.ThumbnailKey {
		stale = append(stale, old.ThumbnailKey)
	}
	if old.WatermarkedKey != "" && old.WatermarkedKey != res.WatermarkedKey {
		stale = append(stale, old.WatermarkedKey)
	}
	if len(stale) == 0 {
		return
	}
	if err := p.objects.DeleteObjects(ctx, stale); err != nil {
		slog.Warn("delete stale derivatives", "photo_id", old.ID, "keys", stale, "error", err)
	}
}
