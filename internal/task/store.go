package task

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows List results. Zero values mean "any".
type Filter struct {
	Queue  string
	Status Status
	Limit  int
	Offset int
}

// Store is the persistence contract for tasks. The production implementation
// lives in internal/platform/postgres; MemoryStore serves tests and local
// development.
type Store interface {
	// Create persists a new task.
	Create(ctx context.Context, t *Task) error

	// GetByID retrieves a task by its ID, returning ErrTaskNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)

	// Claim atomically claims the oldest due pending task on one of the
	// given queues: the task becomes running, locked by workerID until
	// now+lockFor. Returns ErrNoTaskToClaim when nothing is due. Expired
	// pending tasks are never claimable.
	Claim(ctx context.Context, workerID uuid.UUID, queues []string, lockFor time.Duration) (*Task, error)

	// MarkSucceeded completes a running task. Returns ErrTaskNotRunning if
	// the task was reclaimed in the meantime.
	MarkSucceeded(ctx context.Context, id uuid.UUID) error

	// MarkFailed records a failed attempt on a running task: the retry count
	// is incremented, and the task either returns to pending scheduled
	// backoff from now (budget remains) or becomes dead (budget spent).
	// The resulting status is returned.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, backoff time.Duration) (Status, error)

	// MarkDead moves a task directly to the dead state, bypassing retries.
	// Used when retrying cannot help, e.g. no handler is registered.
	MarkDead(ctx context.Context, id uuid.UUID, errMsg string) error

	// FindPendingByName returns a pending task with the given name, or
	// ErrTaskNotFound. The scheduler uses it to avoid stacking instances.
	FindPendingByName(ctx context.Context, name string) (*Task, error)

	// List returns tasks matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]*Task, error)

	// CountByStatus returns task counts per status, for the operational API.
	CountByStatus(ctx context.Context) (map[Status]int, error)

	// DropExpired moves pending tasks whose expiry window has closed to the
	// dead state so they are never executed late. Returns how many were
	// dropped.
	DropExpired(ctx context.Context) (int, error)

	// ReleaseExpiredLocks returns running tasks with an expired lock to
	// pending, preserving their retry count, so tasks claimed by a crashed
	// worker are re-delivered. Returns how many were released.
	ReleaseExpiredLocks(ctx context.Context) (int, error)

	// DeleteFinishedBefore removes succeeded and dead tasks created before
	// the cutoff. Returns how many rows were removed.
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
