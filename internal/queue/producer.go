package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/photomarket/internal/models"
)

const (
	TasksStreamName    = "TASKS"
	TasksSubjectBase   = "tasks"
	EventsStreamName   = "EVENTS"
	MatchSubjectBase   = "events.match"
	ControlSubject     = "maintenance.control"
	taskDedupeWindow   = 2 * time.Minute
	streamSetupRetries = 30
)

func connect(natsURL string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return nc, js, nil
}

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Producer{nc: nc, js: js}, nil
}

// EnsureStreams creates the JetStream streams if they don't exist.
// Retries (1s apart) to ride out NATS startup.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	streams := []jetstream.StreamConfig{
		{
			Name:        TasksStreamName,
			Subjects:    []string{TasksSubjectBase + ".*"},
			Retention:   jetstream.WorkQueuePolicy,
			MaxAge:      24 * time.Hour,
			Storage:     jetstream.FileStorage,
			Duplicates:  taskDedupeWindow,
			Description: "Photo and selfie processing tasks",
		},
		{
			Name:        EventsStreamName,
			Subjects:    []string{MatchSubjectBase + ".>"},
			Retention:   jetstream.InterestPolicy,
			MaxAge:      24 * time.Hour,
			MaxMsgs:     1000000,
			Storage:     jetstream.FileStorage,
			Description: "Face match notifications",
		},
	}

	for attempt := 1; attempt <= streamSetupRetries; attempt++ {
		allOK := true
		for _, cfg := range streams {
			opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
			cancel()
			if err != nil {
				allOK = false
				if attempt == streamSetupRetries {
					return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, streamSetupRetries)
				}
				slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
				break
			}
			slog.Info("ensured NATS stream", "name", cfg.Name)
		}
		if allOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil
}

// PublishTask enqueues a task. The task id doubles as the JetStream message
// id, so a republished task inside the dedupe window is dropped.
func (p *Producer) PublishTask(ctx context.Context, task models.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", TasksSubjectBase, task.Type)
	if _, err := p.js.Publish(ctx, subject, payload, jetstream.WithMsgID(task.ID.String())); err != nil {
		return fmt.Errorf("publish task: %w", err)
	}
	return nil
}

// PublishMatch fans a match event out to every API instance.
func (p *Producer) PublishMatch(ctx context.Context, ev models.MatchEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal match event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", MatchSubjectBase, ev.ClientID)
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publish match event: %w", err)
	}
	return nil
}

// QueueDepth returns the number of pending messages in the TASKS stream.
func (p *Producer) QueueDepth(ctx context.Context) (uint64, error) {
	stream, err := p.js.Stream(ctx, TasksStreamName)
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}

// PublishControl sends a maintenance command via core NATS (not JetStream).
func (p *Producer) PublishControl(cmd Control) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal control: %w", err)
	}
	if err := p.nc.Publish(ControlSubject, data); err != nil {
		return fmt.Errorf("publish control: %w", err)
	}
	return p.nc.FlushTimeout(5 * time.Second)
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
