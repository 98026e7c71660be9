package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/observability"
)

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Consumer{nc: nc, js: js}, nil
}

// ConsumeTasks starts workerCount goroutines processing the TASKS stream.
// Failed tasks are redelivered after policy.Backoff until policy.MaxAttempts
// deliveries; permanent failures and exhausted tasks are terminated and
// handed to onExhausted.
func (c *Consumer) ConsumeTasks(ctx context.Context, consumerName string, handler TaskHandler, onExhausted ExhaustedHandler, workerCount int, policy RetryPolicy) error {
	policy = policy.withDefaults()

	stream, err := c.js.Stream(ctx, TasksStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", TasksStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       5 * time.Minute,
		MaxDeliver:    policy.MaxAttempts,
		FilterSubject: TasksSubjectBase + ".*",
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	msgCh := make(chan jetstream.Msg, workerCount*2)

	go func() {
		defer close(msgCh)
		for {
			if ctx.Err() != nil {
				return
			}

			batch, err := cons.Fetch(workerCount, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch tasks error", "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				select {
				case msgCh <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			for msg := range msgCh {
				c.handleTask(ctx, workerID, msg, handler, onExhausted, policy)
			}
		}(i)
	}

	slog.Info("task consumer started", "consumer", consumerName, "workers", workerCount)
	return nil
}

func (c *Consumer) handleTask(ctx context.Context, workerID int, msg jetstream.Msg, handler TaskHandler, onExhausted ExhaustedHandler, policy RetryPolicy) {
	var task models.Task
	if err := json.Unmarshal(msg.Data(), &task); err != nil {
		slog.Error("drop malformed task", "subject", msg.Subject(), "error", err)
		_ = msg.Term()
		return
	}

	attempt := 1
	if meta, err := msg.Metadata(); err == nil {
		attempt = int(meta.NumDelivered)
	}
	task.Attempt = attempt

	err := handler(ctx, task)
	if err == nil {
		_ = msg.Ack()
		return
	}

	if IsPermanent(err) || attempt >= policy.MaxAttempts {
		slog.Error("task failed", "worker", workerID, "type", task.Type, "target", task.TargetID, "attempt", attempt, "error", err)
		observability.TaskFailures.WithLabelValues(string(task.Type)).Inc()
		_ = msg.Term()
		if onExhausted != nil {
			onExhausted(ctx, task, err)
		}
		return
	}

	slog.Warn("task failed, will retry", "worker", workerID, "type", task.Type, "target", task.TargetID, "attempt", attempt, "error", err)
	observability.TaskRetries.WithLabelValues(string(task.Type)).Inc()
	_ = msg.NakWithDelay(policy.Backoff)
}

// ConsumeMatches delivers match events published after startup, for the API
// to broadcast over websocket. Every API instance needs its own consumerName.
func (c *Consumer) ConsumeMatches(ctx context.Context, consumerName string, handler func(ctx context.Context, ev models.MatchEvent) error) error {
	stream, err := c.js.Stream(ctx, EventsStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", EventsStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:              consumerName,
		AckPolicy:         jetstream.AckExplicitPolicy,
		AckWait:           10 * time.Second,
		MaxDeliver:        3,
		FilterSubject:     MatchSubjectBase + ".>",
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		InactiveThreshold: 10 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	go func() {
		for {
			if ctx.Err() != nil {
				return
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				var ev models.MatchEvent
				if err := json.Unmarshal(msg.Data(), &ev); err != nil {
					slog.Error("drop malformed match event", "error", err)
					_ = msg.Term()
					continue
				}
				if err := handler(ctx, ev); err != nil {
					slog.Error("process match event error", "error", err)
					_ = msg.Nak()
				} else {
					_ = msg.Ack()
				}
			}
		}
	}()

	slog.Info("match event consumer started", "consumer", consumerName)
	return nil
}

// SubscribeControl runs handler for every maintenance command.
func (c *Consumer) SubscribeControl(handler func(Control)) (*nats.Subscription, error) {
	sub, err := c.nc.Subscribe(ControlSubject, func(msg *nats.Msg) {
		var cmd Control
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			slog.Warn("invalid control message", "error", err)
			return
		}
		handler(cmd)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", ControlSubject, err)
	}
	return sub, nil
}

func (c *Consumer) Ping() error {
	if !c.nc.IsConnected() {
		return errors.New("nats not connected")
	}
	return nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}
