package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Client enqueues one-time tasks. The queue for each task comes from the
// registry binding, never from the caller, so ad hoc dispatch cannot invent
// queue names.
type Client struct {
	store      Store
	registry   *Registry
	maxRetries int
	logger     *slog.Logger
}

// NewClient creates a Client. maxRetries is the default retry budget for
// enqueued tasks.
func NewClient(store Store, registry *Registry, maxRetries int, logger *slog.Logger) *Client {
	return &Client{
		store:      store,
		registry:   registry,
		maxRetries: maxRetries,
		logger:     logger.With("component", "task_client"),
	}
}

// Enqueue creates a pending task for the named handler, due immediately.
func (c *Client) Enqueue(ctx context.Context, name string, payload any) (*Task, error) {
	return c.EnqueueAt(ctx, name, payload, time.Time{})
}

// EnqueueAt creates a pending task due at the given time. A zero time means
// immediately.
func (c *Client) EnqueueAt(ctx context.Context, name string, payload any, at time.Time) (*Task, error) {
	queue, err := c.registry.QueueFor(name)
	if err != nil {
		return nil, err
	}

	t, err := NewTask(queue, name, payload, c.maxRetries)
	if err != nil {
		return nil, err
	}
	if !at.IsZero() {
		t.ScheduledAt = at.UTC()
	}

	if err := c.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("enqueue task %q on queue %q: %w", name, queue, err)
	}

	c.logger.DebugContext(ctx, "enqueued task",
		"task_id", t.ID,
		"task_name", t.Name,
		"queue", t.Queue,
		"scheduled_at", t.ScheduledAt)
	return t, nil
}
