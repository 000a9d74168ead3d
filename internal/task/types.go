package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the persisted state of a task.
type Status string

// Task lifecycle states. A failed attempt does not persist a status of its
// own: the store either returns the task to pending with a backoff (retry
// budget remains) or moves it to dead (budget spent). A task therefore runs
// exactly max_retries+1 times before dying.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusDead      Status = "dead"
)

// isValidStatus checks if the provided status is one of the defined statuses
func isValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusDead:
		return true
	default:
		return false
	}
}

// Task is one unit of background work.
// Payload is opaque JSON interpreted by the handler named by Name.
type Task struct {
	ID          uuid.UUID       `json:"id"`
	Queue       string          `json:"queue"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      Status          `json:"status"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
	LastError   string          `json:"last_error,omitempty"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	LockedUntil *time.Time      `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID      `json:"locked_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewTask creates a pending task for the given queue and handler name,
// scheduled to run as soon as a worker claims it. The payload is serialized
// to JSON; pass nil for handlers that take no input.
func NewTask(queue, name string, payload any, maxRetries int) (*Task, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal task payload: %w", err)
		}
		raw = data
	}

	now := time.Now().UTC()
	return &Task{
		ID:          uuid.New(),
		Queue:       queue,
		Name:        name,
		Payload:     raw,
		Status:      StatusPending,
		RetryCount:  0,
		MaxRetries:  maxRetries,
		ScheduledAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Expired reports whether the task's execution window has closed. Tasks
// without an expiry never expire.
func (t *Task) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// Terminal reports whether the task has reached a final state.
func (t *Task) Terminal() bool {
	return t.Status == StatusSucceeded || t.Status == StatusDead
}
