package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/photomarket/internal/config"
	"github.com/your-org/photomarket/internal/matcher"
	"github.com/your-org/photomarket/internal/matching"
	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/storage"
	"github.com/your-org/photomarket/internal/storage/mock"
	"github.com/your-org/photomarket/internal/vision"
)

var (
	alice = []float32{1, 0, 0, 0}
	bob   = []float32{0, 1, 0, 0}
)

type fakeEncoder struct {
	unavailable bool
	faces       []models.DetectedFace
	err         error
	calls       int
}

func (f *fakeEncoder) Available() bool { return !f.unavailable }

func (f *fakeEncoder) Detect(ctx context.Context, img image.Image) ([]models.DetectedFace, error) {
	f.calls++
	if _, ok := img.(*image.RGBA); !ok {
		return nil, errors.New("encoder expects normalized RGB input")
	}
	return f.faces, f.err
}

func faces(embs ...[]float32) []models.DetectedFace {
	out := make([]models.DetectedFace, len(embs))
	for i, e := range embs {
		out[i] = models.DetectedFace{
			Box:        models.BoundingBox{Top: 10 * i, Right: 10*i + 50, Bottom: 10*i + 50, Left: 10 * i},
			Embedding:  e,
			Confidence: 0.9,
		}
	}
	return out
}

type recorder struct{ events []models.MatchEvent }

func (r *recorder) PublishMatch(ctx context.Context, ev models.MatchEvent) error {
	r.events = append(r.events, ev)
	return nil
}

type fixture struct {
	store   *mock.Store
	objects *mock.Objects
	enc     *fakeEncoder
	pub     *recorder
	p       *Pipeline
}

func newFixture(enc *fakeEncoder) *fixture {
	store := mock.NewStore()
	objects := mock.NewObjects()
	pub := &recorder{}
	index := matching.NewService(store, matcher.New(0.6, matcher.Euclidean, enc), pub, nil)
	opts := OptionsFromConfig(config.ProcessingConfig{
		ThumbnailSize:    400,
		ThumbnailQuality: 85,
		WatermarkText:    "PhotoMarket",
		WatermarkOpacity: 0.3,
		WatermarkAngle:   30,
		WatermarkQuality: 70,
	})
	return &fixture{
		store:   store,
		objects: objects,
		enc:     enc,
		pub:     pub,
		p:       New(store, objects, enc, index, opts),
	}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func opaqueImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x), uint8(y), 90, 255})
		}
	}
	return img
}

func (f *fixture) addPhoto(t *testing.T, data []byte, mutate func(*models.Photo)) *models.Photo {
	t.Helper()
	ctx := context.Background()
	p := &models.Photo{ID: uuid.New(), PhotographerID: uuid.New()}
	p.OriginalKey = storage.OriginalKey(p.PhotographerID, nil, p.ID, "shot.png")
	if mutate != nil {
		mutate(p)
	}
	if err := f.store.CreatePhoto(ctx, p); err != nil {
		t.Fatalf("CreatePhoto: %v", err)
	}
	if data != nil {
		if err := f.objects.PutObject(ctx, p.OriginalKey, data, "image/png"); err != nil {
			t.Fatalf("PutObject: %v", err)
		}
	}
	return p
}

func (f *fixture) addClient(t *testing.T, emb []float32) uuid.UUID {
	t.Helper()
	c := &models.Client{ID: uuid.New(), Embedding: emb, FaceStatus: models.FaceStatusProcessed}
	if err := f.store.CreateClient(context.Background(), c); err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	return c.ID
}

func (f *fixture) photo(t *testing.T, id uuid.UUID) *models.Photo {
	t.Helper()
	p, err := f.store.GetPhoto(context.Background(), id)
	if err != nil || p == nil {
		t.Fatalf("GetPhoto(%s) = %v, %v", id, p, err)
	}
	return p
}

func TestProcessPhoto(t *testing.T) {
	ctx := context.Background()
	f := newFixture(&fakeEncoder{faces: faces(alice, bob)})
	client := f.addClient(t, alice)

	event := &models.Event{PhotographerID: uuid.New(), Name: "Race"}
	if err := f.store.CreateEvent(ctx, event); err != nil {
		t.Fatal(err)
	}
	photo := f.addPhoto(t, encodePNG(t, opaqueImage(800, 600)), func(p *models.Photo) {
		p.EventID = &event.ID
	})

	ok, err := f.p.ProcessPhoto(ctx, photo.ID)
	if err != nil || !ok {
		t.Fatalf("ProcessPhoto = (%v, %v), want (true, nil)", ok, err)
	}

	got := f.photo(t, photo.ID)
	if got.Status != models.PhotoStatusActive {
		t.Errorf("status = %s, want active", got.Status)
	}
	if got.FacesCount != 2 || !got.FacesProcessed {
		t.Errorf("faces_count = %d, faces_processed = %v; want 2, true", got.FacesCount, got.FacesProcessed)
	}
	if got.Width != 800 || got.Height != 600 {
		t.Errorf("size = %dx%d, want 800x600", got.Width, got.Height)
	}
	if !strings.HasSuffix(got.ThumbnailKey, ".jpg") || f.objects.ContentType(got.ThumbnailKey) != "image/jpeg" {
		t.Errorf("thumbnail %q stored as %q, want JPEG", got.ThumbnailKey, f.objects.ContentType(got.ThumbnailKey))
	}
	if got.WatermarkedKey != storage.WatermarkedKey(photo.PhotographerID, photo.ID) || !f.objects.Has(got.WatermarkedKey) {
		t.Errorf("watermarked derivative %q missing", got.WatermarkedKey)
	}

	stored, err := f.store.ListPhotoFaces(ctx, photo.ID)
	if err != nil {
		t.Fatal(err)
	}
	var matched []uuid.UUID
	for _, face := range stored {
		if face.MatchedClientID != nil {
			matched = append(matched, *face.MatchedClientID)
		}
	}
	if len(matched) != 1 || matched[0] != client {
		t.Errorf("matched clients = %v, want [%s]", matched, client)
	}
	if len(f.pub.events) != 1 || f.pub.events[0].Source != matching.SourcePhoto {
		t.Errorf("published %+v, want one photo match event", f.pub.events)
	}

	ev, _ := f.store.GetEvent(ctx, event.ID)
	if ev.PhotosCount != 1 {
		t.Errorf("event photos_count = %d, want 1", ev.PhotosCount)
	}

	// Reprocessing replaces faces instead of adding to them.
	if _, err := f.p.ProcessPhoto(ctx, photo.ID); err != nil {
		t.Fatalf("reprocess: %v", err)
	}
	stored, _ = f.store.ListPhotoFaces(ctx, photo.ID)
	if len(stored) != 2 {
		t.Errorf("after reprocess %d faces stored, want 2", len(stored))
	}
}

func TestProcessPhotoAlphaThumbnail(t *testing.T) {
	f := newFixture(&fakeEncoder{})
	src := image.NewNRGBA(image.Rect(0, 0, 100, 50))
	for i := range src.Pix {
		src.Pix[i] = 128
	}
	photo := f.addPhoto(t, encodePNG(t, src), nil)

	if _, err := f.p.ProcessPhoto(context.Background(), photo.ID); err != nil {
		t.Fatalf("ProcessPhoto: %v", err)
	}
	got := f.photo(t, photo.ID)
	if !strings.HasSuffix(got.ThumbnailKey, ".png") || f.objects.ContentType(got.ThumbnailKey) != "image/png" {
		t.Errorf("thumbnail %q, want PNG", got.ThumbnailKey)
	}
	if f.enc.calls != 1 {
		t.Errorf("encoder called %d times, want 1", f.enc.calls)
	}
}

func TestProcessPhotoFailures(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		wantStatus models.PhotoStatus
		permanent  bool
	}{
		{"corrupt original", []byte("not an image"), models.PhotoStatusError, true},
		{"missing original", nil, models.PhotoStatusError, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(&fakeEncoder{})
			photo := f.addPhoto(t, tc.data, nil)

			ok, err := f.p.ProcessPhoto(context.Background(), photo.ID)
			if ok || err == nil {
				t.Fatalf("ProcessPhoto = (%v, %v), want failure", ok, err)
			}
			if got := errors.Is(err, ErrUnreadableImage); got != tc.permanent {
				t.Errorf("errors.Is(err, ErrUnreadableImage) = %v, want %v", got, tc.permanent)
			}
			got := f.photo(t, photo.ID)
			if got.Status != tc.wantStatus || got.ProcessingError == "" {
				t.Errorf("status = %s, error = %q; want %s with message", got.Status, got.ProcessingError, tc.wantStatus)
			}
			if f.enc.calls != 0 {
				t.Errorf("encoder called for unreadable photo")
			}
		})
	}
}

func TestProcessPhotoTransientError(t *testing.T) {
	f := newFixture(&fakeEncoder{})
	photo := f.addPhoto(t, encodePNG(t, opaqueImage(20, 20)), nil)
	f.objects.GetError = errors.New("connection reset")

	if _, err := f.p.ProcessPhoto(context.Background(), photo.ID); err == nil || errors.Is(err, ErrUnreadableImage) {
		t.Fatalf("ProcessPhoto error = %v, want transient error", err)
	}
	if got := f.photo(t, photo.ID); got.Status != models.PhotoStatusProcessing {
		t.Errorf("status = %s, want processing", got.Status)
	}

	f.objects.GetError = nil
	f.enc.err = errors.New("runtime crashed")
	if _, err := f.p.ProcessPhoto(context.Background(), photo.ID); err == nil {
		t.Fatal("encoder failure should be returned")
	}
	if got := f.photo(t, photo.ID); got.Status != models.PhotoStatusProcessing {
		t.Errorf("status after encoder failure = %s, want processing", got.Status)
	}

	f.enc.err = vision.ErrEncoderBusy
	if _, err := f.p.ProcessPhoto(context.Background(), photo.ID); !errors.Is(err, vision.ErrEncoderBusy) {
		t.Fatalf("ProcessPhoto error = %v, want ErrEncoderBusy for a retry", err)
	}
	if got := f.photo(t, photo.ID); got.FacesProcessed {
		t.Error("busy encoder must not mark faces as processed")
	}
}

func TestProcessPhotoDegradedEncoder(t *testing.T) {
	tests := []struct {
		name          string
		enc           *fakeEncoder
		wantProcessed bool
	}{
		{"timeout", &fakeEncoder{err: vision.ErrEncoderTimeout}, true},
		{"unavailable", &fakeEncoder{unavailable: true}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(tc.enc)
			photo := f.addPhoto(t, encodePNG(t, opaqueImage(40, 30)), nil)

			ok, err := f.p.ProcessPhoto(context.Background(), photo.ID)
			if err != nil || !ok {
				t.Fatalf("ProcessPhoto = (%v, %v), want (true, nil)", ok, err)
			}
			got := f.photo(t, photo.ID)
			if got.Status != models.PhotoStatusActive || got.FacesCount != 0 {
				t.Errorf("status = %s, faces = %d; want active with 0 faces", got.Status, got.FacesCount)
			}
			if got.FacesProcessed != tc.wantProcessed {
				t.Errorf("faces_processed = %v, want %v", got.FacesProcessed, tc.wantProcessed)
			}
		})
	}
}

func TestProcessPhotoKeepsManualStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(&fakeEncoder{})
	hidden := f.addPhoto(t, encodePNG(t, opaqueImage(20, 20)), func(p *models.Photo) {
		p.Status = models.PhotoStatusHidden
		p.ThumbnailKey = "thumbnails/old/legacy.png"
	})
	if err := f.objects.PutObject(ctx, hidden.ThumbnailKey, []byte("old"), "image/png"); err != nil {
		t.Fatal(err)
	}

	if _, err := f.p.ProcessPhoto(ctx, hidden.ID); err != nil {
		t.Fatalf("ProcessPhoto: %v", err)
	}
	if got := f.photo(t, hidden.ID); got.Status != models.PhotoStatusHidden {
		t.Errorf("status = %s, want hidden", got.Status)
	}
	if f.objects.Has("thumbnails/old/legacy.png") {
		t.Error("stale thumbnail was not removed")
	}

	deleted := f.addPhoto(t, encodePNG(t, opaqueImage(20, 20)), func(p *models.Photo) {
		p.Status = models.PhotoStatusDeleted
	})
	ok, err := f.p.ProcessPhoto(ctx, deleted.ID)
	if ok || err != nil {
		t.Errorf("ProcessPhoto(deleted) = (%v, %v), want (false, nil)", ok, err)
	}

	if _, err := f.p.ProcessPhoto(ctx, uuid.New()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("ProcessPhoto(missing) error = %v, want ErrNotFound", err)
	}
}

func TestProcessPhotoUnavailableEncoderSkipsRebuild(t *testing.T) {
	ctx := context.Background()
	f := newFixture(&fakeEncoder{unavailable: true})
	photo := f.addPhoto(t, encodePNG(t, opaqueImage(40, 30)), nil)

	ok, err := f.p.ProcessPhoto(ctx, photo.ID)
	if err != nil || !ok {
		t.Fatalf("first ProcessPhoto = (%v, %v), want (true, nil)", ok, err)
	}
	first := f.photo(t, photo.ID)
	if first.FacesProcessed || first.WatermarkedKey == "" {
		t.Fatalf("photo = processed %v, watermark %q; want unencoded with derivatives", first.FacesProcessed, first.WatermarkedKey)
	}

	if err := f.objects.DeleteObject(ctx, first.WatermarkedKey); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		ok, err = f.p.ProcessPhoto(ctx, photo.ID)
		if ok || err != nil {
			t.Fatalf("ProcessPhoto run %d = (%v, %v), want (false, nil)", i+2, ok, err)
		}
	}
	if f.objects.Has(first.WatermarkedKey) {
		t.Error("watermark was rebuilt while the encoder is unavailable")
	}

	f.enc.unavailable = false
	ok, err = f.p.ProcessPhoto(ctx, photo.ID)
	if err != nil || !ok {
		t.Fatalf("ProcessPhoto after recovery = (%v, %v), want (true, nil)", ok, err)
	}
	if got := f.photo(t, photo.ID); !got.FacesProcessed {
		t.Error("faces_processed = false after the encoder came back")
	}
}

func TestMarkPhotoFailedKeepsManualStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(&fakeEncoder{})

	tests := []struct {
		from models.PhotoStatus
		want models.PhotoStatus
	}{
		{models.PhotoStatusProcessing, models.PhotoStatusError},
		{models.PhotoStatusActive, models.PhotoStatusError},
		{models.PhotoStatusHidden, models.PhotoStatusHidden},
		{models.PhotoStatusSold, models.PhotoStatusSold},
		{models.PhotoStatusDeleted, models.PhotoStatusDeleted},
	}
	for _, tc := range tests {
		t.Run(string(tc.from), func(t *testing.T) {
			photo := f.addPhoto(t, nil, func(p *models.Photo) { p.Status = tc.from })
			if err := f.p.MarkPhotoFailed(ctx, photo.ID, "retries exhausted"); err != nil {
				t.Fatalf("MarkPhotoFailed: %v", err)
			}
			got := f.photo(t, photo.ID)
			if got.Status != tc.want {
				t.Errorf("status = %s, want %s", got.Status, tc.want)
			}
			if got.ProcessingError != "retries exhausted" {
				t.Errorf("processing_error = %q, want the failure reason", got.ProcessingError)
			}
		})
	}
}
