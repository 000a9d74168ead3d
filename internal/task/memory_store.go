package task

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and local development. Unlike
// the Postgres implementation it does nothing in the background: the worker's
// janitor drives DropExpired and ReleaseExpiredLocks on both.
type MemoryStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*Task
}

// NewMemoryStore creates an empty in-memory task store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[uuid.UUID]*Task)}
}

// Create persists a new task.
func (s *MemoryStore) Create(_ context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("task %s already exists", t.ID)
	}

	taskCopy := *t
	s.tasks[t.ID] = &taskCopy
	return nil
}

// GetByID retrieves a task by its ID.
func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	taskCopy := *t
	return &taskCopy, nil
}

// Claim claims the oldest due pending task on one of the given queues.
func (s *MemoryStore) Claim(_ context.Context, workerID uuid.UUID, queues []string, lockFor time.Duration) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var oldest *Task
	for _, t := range s.tasks {
		if t.Status != StatusPending {
			continue
		}
		if !slices.Contains(queues, t.Queue) {
			continue
		}
		if t.ScheduledAt.After(now) {
			continue
		}
		if t.Expired(now) {
			continue
		}
		if oldest == nil || t.ScheduledAt.Before(oldest.ScheduledAt) {
			oldest = t
		}
	}

	if oldest == nil {
		return nil, ErrNoTaskToClaim
	}

	lockedUntil := now.Add(lockFor)
	oldest.Status = StatusRunning
	oldest.LockedUntil = &lockedUntil
	oldest.LockedBy = &workerID
	oldest.UpdatedAt = now

	taskCopy := *oldest
	return &taskCopy, nil
}

// MarkSucceeded completes a running task.
func (s *MemoryStore) MarkSucceeded(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if t.Status != StatusRunning {
		return fmt.Errorf("%w: %s is %s", ErrTaskNotRunning, id, t.Status)
	}

	t.Status = StatusSucceeded
	t.LockedUntil = nil
	t.LockedBy = nil
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkFailed records a failed attempt, returning the task to pending with
// backoff or moving it to dead when the retry budget is spent.
func (s *MemoryStore) MarkFailed(_ context.Context, id uuid.UUID, errMsg string, backoff time.Duration) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return "", ErrTaskNotFound
	}
	if t.Status != StatusRunning {
		return "", fmt.Errorf("%w: %s is %s", ErrTaskNotRunning, id, t.Status)
	}

	now := time.Now().UTC()
	t.RetryCount++
	t.LastError = errMsg
	t.LockedUntil = nil
	t.LockedBy = nil
	t.UpdatedAt = now

	if t.RetryCount > t.MaxRetries {
		t.Status = StatusDead
	} else {
		t.Status = StatusPending
		t.ScheduledAt = now.Add(backoff)
	}
	return t.Status, nil
}

// MarkDead moves a task directly to the dead state.
func (s *MemoryStore) MarkDead(_ context.Context, id uuid.UUID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}

	t.Status = StatusDead
	t.LastError = errMsg
	t.LockedUntil = nil
	t.LockedBy = nil
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// FindPendingByName returns a pending task with the given name.
func (s *MemoryStore) FindPendingByName(_ context.Context, name string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tasks {
		if t.Status == StatusPending && t.Name == name {
			taskCopy := *t
			return &taskCopy, nil
		}
	}
	return nil, ErrTaskNotFound
}

// List returns tasks matching the filter, newest first.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*Task, 0)
	for _, t := range s.tasks {
		if filter.Queue != "" && t.Queue != filter.Queue {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		taskCopy := *t
		matched = append(matched, &taskCopy)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*Task{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// CountByStatus returns task counts per status.
func (s *MemoryStore) CountByStatus(_ context.Context) (map[Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[Status]int)
	for _, t := range s.tasks {
		counts[t.Status]++
	}
	return counts, nil
}

// DropExpired moves expired pending tasks to the dead state.
func (s *MemoryStore) DropExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	dropped := 0
	for _, t := range s.tasks {
		if t.Status == StatusPending && t.Expired(now) {
			t.Status = StatusDead
			t.LastError = "expired before execution"
			t.UpdatedAt = now
			dropped++
		}
	}
	return dropped, nil
}

// ReleaseExpiredLocks returns running tasks with expired locks to pending.
func (s *MemoryStore) ReleaseExpiredLocks(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	released := 0
	for _, t := range s.tasks {
		if t.Status == StatusRunning && t.LockedUntil != nil && t.LockedUntil.Before(now) {
			t.Status = StatusPending
			t.LockedUntil = nil
			t.LockedBy = nil
			t.UpdatedAt = now
			released++
		}
	}
	return released, nil
}

// DeleteFinishedBefore removes succeeded and dead tasks created before the
// cutoff.
func (s *MemoryStore) DeleteFinishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, t := range s.tasks {
		if t.Terminal() && t.CreatedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed, nil
}

// Ensure MemoryStore implements the Store interface
var _ Store = (*MemoryStore)(nil)
