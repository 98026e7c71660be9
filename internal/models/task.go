package models

import (
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskProcessPhoto  TaskType = "process_photo"
	TaskProcessSelfie TaskType = "process_selfie"
	TaskMatchPhoto    TaskType = "match_photo"
	TaskMatchClient   TaskType = "match_client"
	TaskRematchAll    TaskType = "rematch_all"
)

// Task is the message published to the job queue for worker processing.
type Task struct {
	ID       uuid.UUID `json:"id"`
	Type     TaskType  `json:"type"`
	TargetID uuid.UUID `json:"target_id,omitempty"`
	Reassign bool      `json:"reassign,omitempty"`
	Attempt  int       `json:"attempt"`
	QueuedAt time.Time `json:"queued_at"`
}

func NewTask(t TaskType, target uuid.UUID) Task {
	return Task{
		ID:       uuid.New(),
		Type:     t,
		TargetID: target,
		QueuedAt: time.Now().UTC(),
	}
}
