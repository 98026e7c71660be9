// Package scheduler runs periodic maintenance: requeueing photos whose
// processing stalled and the nightly full rematch.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/your-org/photomarket/internal/config"
	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/queue"
	"github.com/your-org/photomarket/internal/storage"
)

type PhotoLister interface {
	ListPhotoIDs(ctx context.Context, q storage.PhotoQuery) ([]uuid.UUID, error)
}

type Scheduler struct {
	cron  *cron.Cron
	store PhotoLister
	tasks queue.TaskPublisher
	cfg   config.SchedulerConfig
	now   func() time.Time
}

func New(store PhotoLister, tasks queue.TaskPublisher, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		store: store,
		tasks: tasks,
		cfg:   cfg,
		now:   time.Now,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.SweepSpec, s.runSweep); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", s.cfg.SweepSpec, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.RematchSpec, s.runRematch); err != nil {
		return fmt.Errorf("schedule rematch %q: %w", s.cfg.RematchSpec, err)
	}

	s.cron.Start()
	slog.Info("scheduler started", "sweep", s.cfg.SweepSpec, "rematch", s.cfg.RematchSpec)
	return nil
}

// Stop halts the cron loop. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runSweep() {
	if _, err := s.Sweep(context.Background()); err != nil {
		slog.Error("sweep failed", "error", err)
	}
}

func (s *Scheduler) runRematch() {
	if err := s.Rematch(context.Background(), false); err != nil {
		slog.Error("enqueue rematch failed", "error", err)
	}
}

// Sweep requeues photos stuck in processing for longer than StaleAfter and
// active photos whose faces were never encoded. It returns how many tasks
// were enqueued.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	processing, active := models.PhotoStatusProcessing, models.PhotoStatusActive
	queries := []storage.PhotoQuery{
		{Status: &processing, CreatedBefore: s.now().Add(-s.cfg.StaleAfter)},
		{Status: &active, UnprocessedOnly: true},
	}

	enqueued := 0
	for _, q := range queries {
		ids, err := s.store.ListPhotoIDs(ctx, q)
		if err != nil {
			return enqueued, fmt.Errorf("list photos: %w", err)
		}
		for _, id := range ids {
			if err := s.tasks.PublishTask(ctx, models.NewTask(models.TaskProcessPhoto, id)); err != nil {
				return enqueued, fmt.Errorf("enqueue photo %s: %w", id, err)
			}
			enqueued++
		}
	}

	if enqueued > 0 {
		slog.Info("sweep requeued photos", "count", enqueued)
	}
	return enqueued, nil
}

// Rematch enqueues a full rematch.
func (s *Scheduler) Rematch(ctx context.Context, reassign bool) error {
	task := models.NewTask(models.TaskRematchAll, uuid.Nil)
	task.Reassign = reassign
	if err := s.tasks.PublishTask(ctx, task); err != nil {
		return err
	}
	slog.Info("rematch enqueued", "reassign", reassign)
	return nil
}

// HandleControl runs an operator command received on the control subject.
func (s *Scheduler) HandleControl(cmd queue.Control) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var err error
	switch cmd.Command {
	case queue.CommandSweep:
		_, err = s.Sweep(ctx)
	case queue.CommandRematch:
		err = s.Rematch(ctx, cmd.Reassign)
	default:
		slog.Warn("unknown control command", "command", cmd.Command)
		return
	}
	if err != nil {
		slog.Error("control command failed", "command", cmd.Command, "error", err)
	}
}
