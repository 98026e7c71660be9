package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/photomarket/internal/matching"
	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/pipeline"
	"github.com/your-org/photomarket/internal/queue"
	"github.com/your-org/photomarket/internal/storage"
)

type fakeProcessor struct {
	err          error
	calls        []string
	failedPhoto  string
	failedSelfie string
}

func (f *fakeProcessor) ProcessPhoto(_ context.Context, id uuid.UUID) (bool, error) {
	f.calls = append(f.calls, "photo")
	return f.err == nil, f.err
}

func (f *fakeProcessor) ProcessSelfie(_ context.Context, id uuid.UUID) (int, error) {
	f.calls = append(f.calls, "selfie")
	return 0, f.err
}

func (f *fakeProcessor) MarkPhotoFailed(_ context.Context, id uuid.UUID, reason string) error {
	f.failedPhoto = reason
	return nil
}

func (f *fakeProcessor) MarkSelfieFailed(_ context.Context, id uuid.UUID, reason string) error {
	f.failedSelfie = reason
	return nil
}

type fakeIndex struct {
	err      error
	calls    []string
	reassign bool
}

func (f *fakeIndex) MatchPhoto(context.Context, uuid.UUID) (int, error) {
	f.calls = append(f.calls, "match_photo")
	return 0, f.err
}

func (f *fakeIndex) MatchClient(context.Context, uuid.UUID) (int, error) {
	f.calls = append(f.calls, "match_client")
	return 0, f.err
}

func (f *fakeIndex) RematchAll(_ context.Context, opts matching.RematchOptions) (matching.RematchStats, error) {
	f.calls = append(f.calls, "rematch")
	f.reassign = opts.Reassign
	return matching.RematchStats{}, f.err
}

func TestHandleRoutesTasks(t *testing.T) {
	tests := []struct {
		typ           models.TaskType
		wantProcessor string
		wantIndex     string
	}{
		{models.TaskProcessPhoto, "photo", ""},
		{models.TaskProcessSelfie, "selfie", ""},
		{models.TaskMatchPhoto, "", "match_photo"},
		{models.TaskMatchClient, "", "match_client"},
		{models.TaskRematchAll, "", "rematch"},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			p, idx := &fakeProcessor{}, &fakeIndex{}
			d := NewDispatcher(p, idx)
			if err := d.Handle(context.Background(), models.NewTask(tt.typ, uuid.New())); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if got := fmt.Sprint(p.calls); got != fmt.Sprint(nonEmpty(tt.wantProcessor)) {
				t.Errorf("processor calls = %v, want %v", got, tt.wantProcessor)
			}
			if got := fmt.Sprint(idx.calls); got != fmt.Sprint(nonEmpty(tt.wantIndex)) {
				t.Errorf("index calls = %v, want %v", got, tt.wantIndex)
			}
		})
	}
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func TestHandleRematchReassign(t *testing.T) {
	idx := &fakeIndex{}
	task := models.NewTask(models.TaskRematchAll, uuid.Nil)
	task.Reassign = true
	if err := NewDispatcher(&fakeProcessor{}, idx).Handle(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	if !idx.reassign {
		t.Error("reassign flag was not passed to RematchAll")
	}
}

func TestHandleClassifiesErrors(t *testing.T) {
	transient := errors.New("connection reset")
	tests := []struct {
		name          string
		err           error
		wantPermanent bool
	}{
		{"transient", transient, false},
		{"unreadable", fmt.Errorf("decode: %w", pipeline.ErrUnreadableImage), true},
		{"no face", pipeline.ErrNoFaceFound, true},
		{"multiple faces", pipeline.ErrMultipleFacesFound, true},
		{"no selfie", pipeline.ErrNoSelfie, true},
		{"missing row", fmt.Errorf("get photo: %w", storage.ErrNotFound), true},
		{"rematch running", matching.ErrRematchRunning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(&fakeProcessor{err: tt.err}, &fakeIndex{})
			err := d.Handle(context.Background(), models.NewTask(models.TaskProcessPhoto, uuid.New()))
			if !errors.Is(err, tt.err) {
				t.Fatalf("Handle() error = %v, want %v", err, tt.err)
			}
			if got := queue.IsPermanent(err); got != tt.wantPermanent {
				t.Errorf("IsPermanent(%v) = %v, want %v", err, got, tt.wantPermanent)
			}
		})
	}
}

func TestHandleUnknownTask(t *testing.T) {
	d := NewDispatcher(&fakeProcessor{}, &fakeIndex{})
	err := d.Handle(context.Background(), models.Task{ID: uuid.New(), Type: "resize_video"})
	if !errors.Is(err, ErrUnknownTask) || !queue.IsPermanent(err) {
		t.Errorf("Handle(unknown) = %v, want permanent %v", err, ErrUnknownTask)
	}
}

func TestOnExhausted(t *testing.T) {
	transient := errors.New("minio: timeout")

	t.Run("photo", func(t *testing.T) {
		p := &fakeProcessor{}
		NewDispatcher(p, &fakeIndex{}).OnExhausted(context.Background(), models.NewTask(models.TaskProcessPhoto, uuid.New()), transient)
		if p.failedPhoto != transient.Error() {
			t.Errorf("photo failure reason = %q, want %q", p.failedPhoto, transient.Error())
		}
	})

	t.Run("selfie", func(t *testing.T) {
		p := &fakeProcessor{}
		NewDispatcher(p, &fakeIndex{}).OnExhausted(context.Background(), models.NewTask(models.TaskProcessSelfie, uuid.New()), transient)
		if p.failedSelfie != transient.Error() {
			t.Errorf("selfie failure reason = %q, want %q", p.failedSelfie, transient.Error())
		}
	})

	t.Run("permanent already recorded", func(t *testing.T) {
		p := &fakeProcessor{}
		NewDispatcher(p, &fakeIndex{}).OnExhausted(context.Background(), models.NewTask(models.TaskProcessSelfie, uuid.New()), queue.Permanent(pipeline.ErrNoFaceFound))
		if p.failedSelfie != "" {
			t.Errorf("selfie marked failed with %q after a permanent error", p.failedSelfie)
		}
	})
}
