// Package worker routes queued tasks to the pipeline and the match index.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/your-org/photomarket/internal/matching"
	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/pipeline"
	"github.com/your-org/photomarket/internal/queue"
	"github.com/your-org/photomarket/internal/storage"
)

// ErrUnknownTask is returned for task types no handler is registered for.
var ErrUnknownTask = errors.New("unknown task type")

type Processor interface {
	ProcessPhoto(ctx context.Context, photoID uuid.UUID) (bool, error)
	ProcessSelfie(ctx context.Context, clientID uuid.UUID) (int, error)
	MarkPhotoFailed(ctx context.Context, photoID uuid.UUID, reason string) error
	MarkSelfieFailed(ctx context.Context, clientID uuid.UUID, reason string) error
}

type Index interface {
	MatchPhoto(ctx context.Context, photoID uuid.UUID) (int, error)
	MatchClient(ctx context.Context, clientID uuid.UUID) (int, error)
	RematchAll(ctx context.Context, opts matching.RematchOptions) (matching.RematchStats, error)
}

var (
	_ Processor = (*pipeline.Pipeline)(nil)
	_ Index     = (*matching.Service)(nil)
)

// permanentErrors are failures a retry cannot fix. The pipeline has already
// recorded them on the photo or client.
var permanentErrors = []error{
	pipeline.ErrUnreadableImage,
	pipeline.ErrNoFaceFound,
	pipeline.ErrMultipleFacesFound,
	pipeline.ErrNoSelfie,
	storage.ErrNotFound,
	matching.ErrRematchRunning,
	ErrUnknownTask,
}

type Dispatcher struct {
	processor Processor
	index     Index
}

func NewDispatcher(processor Processor, index Index) *Dispatcher {
	return &Dispatcher{processor: processor, index: index}
}

// Handle runs one task. Errors that retrying cannot fix come back wrapped
// with queue.Permanent.
func (d *Dispatcher) Handle(ctx context.Context, task models.Task) error {
	err := d.run(ctx, task)
	if err == nil {
		return nil
	}
	for _, perm := range permanentErrors {
		if errors.Is(err, perm) {
			return queue.Permanent(err)
		}
	}
	return err
}

func (d *Dispatcher) run(ctx context.Context, task models.Task) error {
	switch task.Type {
	case models.TaskProcessPhoto:
		_, err := d.processor.ProcessPhoto(ctx, task.TargetID)
		return err
	case models.TaskProcessSelfie:
		_, err := d.processor.ProcessSelfie(ctx, task.TargetID)
		return err
	case models.TaskMatchPhoto:
		_, err := d.index.MatchPhoto(ctx, task.TargetID)
		return err
	case models.TaskMatchClient:
		_, err := d.index.MatchClient(ctx, task.TargetID)
		return err
	case models.TaskRematchAll:
		_, err := d.index.RematchAll(ctx, matching.RematchOptions{Reassign: task.Reassign})
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTask, task.Type)
	}
}

// OnExhausted moves the target to its error state once transient failures
// have used up every attempt.
func (d *Dispatcher) OnExhausted(ctx context.Context, task models.Task, cause error) {
	if queue.IsPermanent(cause) {
		return
	}

	var err error
	switch task.Type {
	case models.TaskProcessPhoto:
		err = d.processor.MarkPhotoFailed(ctx, task.TargetID, cause.Error())
	case models.TaskProcessSelfie:
		err = d.processor.MarkSelfieFailed(ctx, task.TargetID, cause.Error())
	default:
		return
	}
	if err != nil {
		slog.Error("record exhausted task", "type", task.Type, "target", task.TargetID, "error", err)
	}
}
