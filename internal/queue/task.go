// Package queue moves processing tasks and match events between processes,
// over NATS JetStream or an in-process worker pool.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/your-org/photomarket/internal/config"
	"github.com/your-org/photomarket/internal/models"
)

// ErrPermanent marks failures that retrying cannot fix.
var ErrPermanent = errors.New("permanent failure")

// Permanent wraps err so the queue stops retrying it.
func Permanent(err error) error {
	if err == nil || errors.Is(err, ErrPermanent) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// TaskHandler processes one task. Returning nil acknowledges it.
type TaskHandler func(ctx context.Context, task models.Task) error

// ExhaustedHandler is told about tasks that will never be retried again.
type ExhaustedHandler func(ctx context.Context, task models.Task, err error)

// TaskPublisher enqueues tasks.
type TaskPublisher interface {
	PublishTask(ctx context.Context, task models.Task) error
}

// RetryPolicy bounds redelivery of failed tasks.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func PolicyFromConfig(cfg config.QueueConfig) RetryPolicy {
	return RetryPolicy{MaxAttempts: cfg.MaxAttempts, Backoff: cfg.Backoff}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

// Control commands accepted on the maintenance subject.
const (
	CommandSweep   = "sweep"
	CommandRematch = "rematch"
)

// Control is a maintenance command for the scheduler.
type Control struct {
	Command  string `json:"command"`
	Reassign bool   `json:"reassign,omitempty"`
}
