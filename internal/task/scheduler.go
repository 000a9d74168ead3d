package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aurumhq/aurum-api/internal/config"
)

// ScheduleEntry declares one periodic task: how often it recurs, how long an
// instance stays executable once due, and its retry budget. Expiry must be
// strictly shorter than Interval so two live instances of the same task can
// never overlap; an instance nobody claimed within its window is dropped,
// not run late.
type ScheduleEntry struct {
	Name       string
	Interval   time.Duration
	Expiry     time.Duration
	MaxRetries int
}

// DefaultSchedule returns the production schedule table.
func DefaultSchedule() []ScheduleEntry {
	return []ScheduleEntry{
		{Name: TaskKPISnapshot, Interval: time.Hour, Expiry: 30 * time.Minute, MaxRetries: 2},
		{Name: TaskForecastRefresh, Interval: 24 * time.Hour, Expiry: 6 * time.Hour, MaxRetries: 2},
		{Name: TaskDailySalesReport, Interval: 24 * time.Hour, Expiry: 6 * time.Hour, MaxRetries: 2},
		{Name: TaskWeeklySummary, Interval: 7 * 24 * time.Hour, Expiry: 24 * time.Hour, MaxRetries: 2},
		{Name: TaskHourlyBackup, Interval: time.Hour, Expiry: 30 * time.Minute, MaxRetries: 3},
		{Name: TaskBackupRetention, Interval: 24 * time.Hour, Expiry: 12 * time.Hour, MaxRetries: 1},
		{Name: TaskHealthCheck, Interval: 5 * time.Minute, Expiry: 4 * time.Minute, MaxRetries: 0},
		{Name: TaskAnomalyScan, Interval: 6 * time.Hour, Expiry: 3 * time.Hour, MaxRetries: 1},
	}
}

// scheduleState tracks one entry's resolved queue and the ScheduledAt of the
// most recent instance.
type scheduleState struct {
	entry           ScheduleEntry
	queue           string
	lastScheduledAt *time.Time
}

// Scheduler enqueues periodic task instances. It only decides when an
// instance becomes due; concurrency, retries and expiry enforcement belong
// to the store and the worker.
type Scheduler struct {
	store   Store
	entries map[string]*scheduleState
	tick    time.Duration
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewScheduler creates a Scheduler for the given schedule table. Every entry
// is validated up front: a positive interval, an expiry strictly inside the
// interval, and a queue binding in the registry.
func NewScheduler(store Store, registry *Registry, entries []ScheduleEntry, cfg config.TaskConfig, logger *slog.Logger) (*Scheduler, error) {
	states := make(map[string]*scheduleState, len(entries))
	for _, entry := range entries {
		if entry.Interval <= 0 {
			return nil, fmt.Errorf("%w: %q has non-positive interval", ErrInvalidSchedule, entry.Name)
		}
		if entry.Expiry <= 0 || entry.Expiry >= entry.Interval {
			return nil, fmt.Errorf("%w: %q expiry %s must be positive and strictly shorter than interval %s",
				ErrInvalidSchedule, entry.Name, entry.Expiry, entry.Interval)
		}
		if entry.MaxRetries < 0 {
			return nil, fmt.Errorf("%w: %q has negative retry budget", ErrInvalidSchedule, entry.Name)
		}
		if _, exists := states[entry.Name]; exists {
			return nil, fmt.Errorf("%w: %q appears twice", ErrInvalidSchedule, entry.Name)
		}

		queue, err := registry.QueueFor(entry.Name)
		if err != nil {
			return nil, err
		}
		states[entry.Name] = &scheduleState{entry: entry, queue: queue}
	}

	return &Scheduler{
		store:   store,
		entries: states,
		tick:    time.Duration(cfg.SchedulerTickSeconds) * time.Second,
		logger:  logger.With("component", "task_scheduler"),
	}, nil
}

// Start runs the scheduling loop until the context is cancelled. It returns
// nil on a clean shutdown.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.entries) == 0 {
		return fmt.Errorf("%w: schedule table is empty", ErrInvalidSchedule)
	}

	s.logger.Info("task scheduler started", "entries", len(s.entries), "tick", s.tick)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.checkDue(ctx, time.Now().UTC())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("task scheduler stopped")
			return nil
		case <-ticker.C:
			s.checkDue(ctx, time.Now().UTC())
		}
	}
}

// Run returns a function suitable for errgroup.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		return s.Start(ctx)
	}
}

// checkDue drops stale instances, then enqueues an instance for every entry
// that has come due.
func (s *Scheduler) checkDue(ctx context.Context, now time.Time) {
	// Stale instances die before new ones are born, so the pending-instance
	// check below never dedupes against a corpse.
	if dropped, err := s.store.DropExpired(ctx); err != nil {
		s.logger.Error("failed to drop expired tasks", "error", err)
	} else if dropped > 0 {
		s.logger.Info("dropped expired pending tasks", "count", dropped)
	}

	s.mu.Lock()
	states := make([]*scheduleState, 0, len(s.entries))
	for _, state := range s.entries {
		states = append(states, state)
	}
	s.mu.Unlock()

	for _, state := range states {
		if err := s.scheduleIfDue(ctx, state, now); err != nil {
			s.logger.Error("failed to schedule periodic task",
				"task_name", state.entry.Name,
				"error", err)
		}
	}
}

// scheduleIfDue enqueues the next instance of one entry when its time has
// come.
func (s *Scheduler) scheduleIfDue(ctx context.Context, state *scheduleState, now time.Time) error {
	next := s.nextRun(state, now)
	if state.lastScheduledAt != nil && next.After(now) {
		return nil
	}

	// An instance may already be pending: not yet claimed, or pre-created
	// for a future boundary. Either way, adopt it instead of stacking.
	existing, err := s.store.FindPendingByName(ctx, state.entry.Name)
	if err == nil && existing != nil {
		s.setLastScheduled(state.entry.Name, existing.ScheduledAt)
		s.logger.Debug("periodic task already pending",
			"task_name", state.entry.Name,
			"scheduled_for", existing.ScheduledAt)
		return nil
	}

	t, err := NewTask(state.queue, state.entry.Name, nil, state.entry.MaxRetries)
	if err != nil {
		return err
	}
	expiresAt := next.Add(state.entry.Expiry)
	t.ScheduledAt = next
	t.ExpiresAt = &expiresAt

	if err := s.store.Create(ctx, t); err != nil {
		return fmt.Errorf("create periodic task %q: %w", state.entry.Name, err)
	}

	s.setLastScheduled(state.entry.Name, next)
	s.logger.Info("scheduled periodic task",
		"task_name", state.entry.Name,
		"queue", state.queue,
		"scheduled_for", next,
		"expires_at", expiresAt)
	return nil
}

// nextRun computes when the entry's next instance should run: one interval
// after the previous instance, or one interval from now on the first pass.
func (s *Scheduler) nextRun(state *scheduleState, now time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state.lastScheduledAt == nil {
		return now.Add(state.entry.Interval)
	}
	return state.lastScheduledAt.Add(state.entry.Interval)
}

func (s *Scheduler) setLastScheduled(name string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.entries[name]; ok {
		state.lastScheduledAt = &at
	}
}

// Entries returns the names in the schedule table, for diagnostics.
func (s *Scheduler) Entries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}
