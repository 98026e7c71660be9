package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photomarket/internal/models"
)

type call struct {
	task models.Task
	err  error
}

func startLocal(t *testing.T, policy RetryPolicy, handler TaskHandler) (*Local, chan call) {
	t.Helper()
	exhausted := make(chan call, 10)
	q := NewLocal(1, 16, policy)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		q.Wait()
	})
	q.Start(ctx, handler, func(_ context.Context, task models.Task, err error) {
		exhausted <- call{task: task, err: err}
	})
	return q, exhausted
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
	var zero T
	return zero
}

func TestLocalRetriesUntilSuccess(t *testing.T) {
	done := make(chan models.Task, 1)
	var mu sync.Mutex
	calls := 0
	q, exhausted := startLocal(t, RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}, func(_ context.Context, task models.Task) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		done <- task
		return nil
	})

	if err := q.PublishTask(context.Background(), models.NewTask(models.TaskProcessPhoto, uuid.New())); err != nil {
		t.Fatalf("PublishTask() error = %v", err)
	}
	task := waitFor(t, done)
	if task.Attempt != 3 {
		t.Errorf("Attempt = %d, want 3", task.Attempt)
	}
	select {
	case c := <-exhausted:
		t.Errorf("unexpected exhaustion: %v", c.err)
	default:
	}
}

func TestLocalExhaustion(t *testing.T) {
	errBoom := errors.New("boom")
	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{"transient", errBoom, 2},
		{"permanent", Permanent(errBoom), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			calls := 0
			q, exhausted := startLocal(t, RetryPolicy{MaxAttempts: 2, Backoff: time.Millisecond}, func(context.Context, models.Task) error {
				mu.Lock()
				calls++
				mu.Unlock()
				return tt.err
			})

			task := models.NewTask(models.TaskProcessSelfie, uuid.New())
			if err := q.PublishTask(context.Background(), task); err != nil {
				t.Fatalf("PublishTask() error = %v", err)
			}
			c := waitFor(t, exhausted)
			if c.task.ID != task.ID {
				t.Errorf("exhausted task = %v, want %v", c.task.ID, task.ID)
			}
			if !errors.Is(c.err, errBoom) {
				t.Errorf("exhausted error = %v, want %v", c.err, errBoom)
			}
			mu.Lock()
			defer mu.Unlock()
			if calls != tt.wantCalls {
				t.Errorf("handler calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestLocalCancel(t *testing.T) {
	q := NewLocal(1, 16, RetryPolicy{})
	canceled := models.NewTask(models.TaskProcessPhoto, uuid.New())
	kept := models.NewTask(models.TaskProcessPhoto, uuid.New())
	ctx := context.Background()
	if err := q.PublishTask(ctx, canceled); err != nil {
		t.Fatal(err)
	}
	if err := q.PublishTask(ctx, kept); err != nil {
		t.Fatal(err)
	}
	q.Cancel(canceled.ID)
	if q.Depth() != 2 {
		t.Errorf("Depth() = %d, want 2", q.Depth())
	}

	seen := make(chan uuid.UUID, 2)
	runCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		q.Wait()
	}()
	q.Start(runCtx, func(_ context.Context, task models.Task) error {
		seen <- task.ID
		return nil
	}, nil)

	if got := waitFor(t, seen); got != kept.ID {
		t.Errorf("first handled task = %v, want %v", got, kept.ID)
	}
}

func TestLocalPublishRespectsContext(t *testing.T) {
	q := NewLocal(1, 1, RetryPolicy{})
	ctx, cancel := context.WithCancel(context.Background())
	if err := q.PublishTask(ctx, models.NewTask(models.TaskMatchPhoto, uuid.New())); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := q.PublishTask(ctx, models.NewTask(models.TaskMatchPhoto, uuid.New())); !errors.Is(err, context.Canceled) {
		t.Errorf("PublishTask() on full queue = %v, want %v", err, context.Canceled)
	}
}

func TestLocalReady(t *testing.T) {
	q := NewLocal(1, 2, RetryPolicy{})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := q.Ready(ctx); err != nil {
			t.Fatalf("Ready() with %d queued = %v, want nil", q.Depth(), err)
		}
		if err := q.PublishTask(ctx, models.NewTask(models.TaskMatchPhoto, uuid.New())); err != nil {
			t.Fatal(err)
		}
	}
	if q.Depth() != 2 {
		t.Errorf("Depth() = %d, want 2", q.Depth())
	}
	if err := q.Ready(ctx); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Ready() on full queue = %v, want %v", err, ErrQueueFull)
	}
}

func TestPermanent(t *testing.T) {
	base := errors.New("bad image")
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", Permanent(nil), false},
		{"plain", base, false},
		{"wrapped", Permanent(base), true},
		{"double", Permanent(Permanent(base)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
	if !errors.Is(Permanent(base), base) {
		t.Error("Permanent() must keep the wrapped error")
	}
}
