package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/observability"
)

// Local is an in-process task queue for single-binary deployments.
// Tasks are lost on restart; the scheduler sweep picks unfinished photos up again.
type Local struct {
	policy  RetryPolicy
	workers int
	tasks   chan models.Task

	mu       sync.Mutex
	canceled map[uuid.UUID]struct{}

	wg sync.WaitGroup
}

var _ TaskPublisher = (*Local)(nil)

// ErrQueueFull is reported by Ready while publishers would block.
var ErrQueueFull = errors.New("task queue full")

func NewLocal(workers, capacity int, policy RetryPolicy) *Local {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = 1024
	}
	return &Local{
		policy:   policy.withDefaults(),
		workers:  workers,
		tasks:    make(chan models.Task, capacity),
		canceled: make(map[uuid.UUID]struct{}),
	}
}

// PublishTask blocks while the queue is full.
func (l *Local) PublishTask(ctx context.Context, task models.Task) error {
	select {
	case l.tasks <- task:
		observability.QueueDepth.Set(float64(len(l.tasks)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel drops a queued task before a worker starts it.
func (l *Local) Cancel(id uuid.UUID) {
	l.mu.Lock()
	l.canceled[id] = struct{}{}
	l.mu.Unlock()
}

func (l *Local) takeCanceled(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.canceled[id]
	delete(l.canceled, id)
	return ok
}

// Depth returns the number of queued tasks.
func (l *Local) Depth() int {
	return len(l.tasks)
}

// Ready fails while the queue is at capacity.
func (l *Local) Ready(context.Context) error {
	if l.Depth() >= cap(l.tasks) {
		return ErrQueueFull
	}
	return nil
}

// Start launches the workers. They stop when ctx is cancelled.
func (l *Local) Start(ctx context.Context, handler TaskHandler, onExhausted ExhaustedHandler) {
	for i := 0; i < l.workers; i++ {
		l.wg.Add(1)
		go l.run(ctx, i, handler, onExhausted)
	}
	slog.Info("local task queue started", "workers", l.workers)
}

// Wait blocks until every worker and pending retry has exited.
func (l *Local) Wait() {
	l.wg.Wait()
}

func (l *Local) run(ctx context.Context, workerID int, handler TaskHandler, onExhausted ExhaustedHandler) {
	defer l.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-l.tasks:
			observability.QueueDepth.Set(float64(len(l.tasks)))
			if l.takeCanceled(task.ID) {
				slog.Debug("skip canceled task", "type", task.Type, "target", task.TargetID)
				continue
			}
			l.handle(ctx, workerID, task, handler, onExhausted)
		}
	}
}

func (l *Local) handle(ctx context.Context, workerID int, task models.Task, handler TaskHandler, onExhausted ExhaustedHandler) {
	task.Attempt++
	err := handler(ctx, task)
	if err == nil {
		return
	}

	if IsPermanent(err) || task.Attempt >= l.policy.MaxAttempts {
		slog.Error("task failed", "worker", workerID, "type", task.Type, "target", task.TargetID, "attempt", task.Attempt, "error", err)
		observability.TaskFailures.WithLabelValues(string(task.Type)).Inc()
		if onExhausted != nil {
			onExhausted(ctx, task, err)
		}
		return
	}

	slog.Warn("task failed, will retry", "worker", workerID, "type", task.Type, "target", task.TargetID, "attempt", task.Attempt, "error", err)
	observability.TaskRetries.WithLabelValues(string(task.Type)).Inc()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		timer := time.NewTimer(l.policy.Backoff)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if err := l.PublishTask(ctx, task); err != nil && ctx.Err() == nil {
			slog.Error("requeue task", "type", task.Type, "target", task.TargetID, "error", err)
		}
	}()
}
