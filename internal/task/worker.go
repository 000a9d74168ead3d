package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/config"
)

// janitorInterval is how often the worker sweeps for expired pending tasks
// and expired locks left by crashed workers.
const janitorInterval = 15 * time.Second

// Handler processes tasks of one name.
type Handler interface {
	// Name returns the task name this handler serves.
	Name() string

	// Handle executes the task. The context carries the soft time limit;
	// handlers should honor its cancellation promptly.
	Handle(ctx context.Context, payload json.RawMessage) error
}

// handlerFunc adapts a function to the Handler interface.
type handlerFunc struct {
	name string
	fn   func(ctx context.Context, payload json.RawMessage) error
}

func (h handlerFunc) Name() string { return h.name }

func (h handlerFunc) Handle(ctx context.Context, payload json.RawMessage) error {
	return h.fn(ctx, payload)
}

// NewHandlerFunc wraps a function as a Handler.
func NewHandlerFunc(name string, fn func(ctx context.Context, payload json.RawMessage) error) Handler {
	return handlerFunc{name: name, fn: fn}
}

// Worker claims tasks from the store and executes their handlers with
// bounded concurrency. Claims lock a task for the hard time limit, so a
// worker that dies mid-task implicitly hands it back once the lock expires.
type Worker struct {
	store    Store
	handlers map[string]Handler
	queues   []string
	workerID uuid.UUID
	sem      chan struct{}

	pullInterval time.Duration
	softLimit    time.Duration
	hardLimit    time.Duration
	backoff      time.Duration

	logger *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex
	stopping atomic.Bool
}

// NewWorker creates a Worker over the given store. The claimable queue set
// comes from the registry; time limits, backoff, pull interval and pool size
// come from cfg.
func NewWorker(store Store, registry *Registry, cfg config.TaskConfig, logger *slog.Logger) *Worker {
	return &Worker{
		store:        store,
		handlers:     make(map[string]Handler),
		queues:       registry.Queues(),
		workerID:     uuid.New(),
		sem:          make(chan struct{}, cfg.WorkerCount),
		pullInterval: time.Duration(cfg.PullIntervalSeconds) * time.Second,
		softLimit:    time.Duration(cfg.SoftTimeLimitSeconds) * time.Second,
		hardLimit:    time.Duration(cfg.HardTimeLimitSeconds) * time.Second,
		backoff:      time.Duration(cfg.RetryBackoffSeconds) * time.Second,
		logger:       logger.With("component", "task_worker"),
	}
}

// RegisterHandler adds a handler. Registering two handlers under one name is
// a wiring bug and returns an error.
func (w *Worker) RegisterHandler(handler Handler) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.handlers[handler.Name()]; exists {
		return fmt.Errorf("handler %q already registered", handler.Name())
	}
	w.handlers[handler.Name()] = handler
	return nil
}

// RegisterHandlers adds multiple handlers.
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	for _, h := range handlers {
		if err := w.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

// Start begins claiming and processing tasks in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return fmt.Errorf("worker already started")
	}
	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)

	w.wg.Add(1)
	go w.janitor()
	go w.run()

	w.logger.Info("task worker started",
		"worker_id", w.workerID,
		"queues", w.queues,
		"pool_size", cap(w.sem),
		"soft_limit", w.softLimit,
		"hard_limit", w.hardLimit)
	return nil
}

// Stop shuts the worker down, waiting for in-flight tasks to finish or hit
// their hard limit.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return fmt.Errorf("worker not started")
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	w.logger.Info("task worker stopping, waiting for active tasks", "worker_id", w.workerID)
	w.wg.Wait()
	w.logger.Info("task worker stopped", "worker_id", w.workerID)
	return nil
}

// Run returns a function suitable for errgroup: it starts the worker, blocks
// until the context is cancelled, then stops it.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return w.Stop()
	}
}

// run is the claim loop: one claim attempt per tick, bounded by the
// semaphore.
func (w *Worker) run() {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			select {
			case w.sem <- struct{}{}:
				w.stopMu.Lock()
				if w.stopping.Load() {
					w.stopMu.Unlock()
					<-w.sem
					return
				}
				w.wg.Add(1)
				w.stopMu.Unlock()

				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }()
					w.pullAndProcess()
				}()
			default:
				// All slots busy, skip this tick.
			}
		}
	}
}

// pullAndProcess claims the next due task and executes it.
func (w *Worker) pullAndProcess() {
	claimed, err := w.store.Claim(w.ctx, w.workerID, w.queues, w.hardLimit)
	if err != nil {
		if errors.Is(err, ErrNoTaskToClaim) || errors.Is(err, context.Canceled) {
			return
		}
		w.logger.Error("failed to claim task", "worker_id", w.workerID, "error", err)
		return
	}

	w.processTask(claimed)
}

// processTask executes one claimed task under the soft/hard time limits.
func (w *Worker) processTask(claimed *Task) {
	logger := w.logger.With(
		"task_id", claimed.ID,
		"task_name", claimed.Name,
		"queue", claimed.Queue,
		"attempt", claimed.RetryCount+1)

	w.mu.RLock()
	handler, ok := w.handlers[claimed.Name]
	w.mu.RUnlock()

	if !ok {
		// Retrying cannot conjure a handler; dead-letter immediately.
		logger.Error("no handler registered, moving task to dead letter state")
		if err := w.store.MarkDead(context.Background(), claimed.ID, "no handler registered for task: "+claimed.Name); err != nil {
			logger.Error("failed to mark task dead", "error", err)
		}
		return
	}

	logger.Info("processing task")
	start := time.Now()

	// The handler sees the soft limit through its context. The hard limit is
	// enforced here: past it the attempt is failed and the goroutine
	// abandoned, whether or not the handler honored its deadline.
	softCtx, cancel := context.WithTimeout(context.Background(), w.softLimit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("handler panicked: %v", r)
			}
		}()
		done <- handler.Handle(softCtx, claimed.Payload)
	}()

	select {
	case err := <-done:
		if err != nil {
			w.recordFailure(claimed, err, time.Since(start), logger)
			return
		}
		w.recordSuccess(claimed, time.Since(start), logger)
	case <-time.After(w.hardLimit):
		logger.Error("handler exceeded hard time limit, abandoning attempt", "hard_limit", w.hardLimit)
		w.recordFailure(claimed, fmt.Errorf("abandoned after hard time limit %s", w.hardLimit), time.Since(start), logger)
	}
}

// recordSuccess acknowledges a completed task. Uses a fresh context so a
// shutdown in progress cannot lose the ack.
func (w *Worker) recordSuccess(t *Task, duration time.Duration, logger *slog.Logger) {
	if err := w.store.MarkSucceeded(context.Background(), t.ID); err != nil {
		logger.Error("failed to mark task succeeded", "error", err)
		return
	}
	logger.Info("task succeeded", "duration", duration)
}

// recordFailure records a failed attempt and logs the outcome the store
// decided on.
func (w *Worker) recordFailure(t *Task, execErr error, duration time.Duration, logger *slog.Logger) {
	status, err := w.store.MarkFailed(context.Background(), t.ID, execErr.Error(), w.backoff)
	if err != nil {
		logger.Error("failed to record task failure", "error", err)
		return
	}

	if status == StatusDead {
		logger.Warn("task moved to dead letter state",
			"duration", duration,
			"retry_count", t.RetryCount+1,
			"max_retries", t.MaxRetries,
			"error", execErr)
		return
	}
	logger.Info("task failed, scheduled for retry",
		"duration", duration,
		"backoff", w.backoff,
		"error", execErr)
}

// janitor periodically drops expired pending tasks and releases expired
// locks so work claimed by a dead worker is redelivered.
func (w *Worker) janitor() {
	defer w.wg.Done()

	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			dropped, err := w.store.DropExpired(w.ctx)
			if err != nil {
				w.logger.Error("failed to drop expired tasks", "error", err)
			} else if dropped > 0 {
				w.logger.Info("dropped expired pending tasks", "count", dropped)
			}

			released, err := w.store.ReleaseExpiredLocks(w.ctx)
			if err != nil {
				w.logger.Error("failed to release expired locks", "error", err)
			} else if released > 0 {
				w.logger.Info("released expired task locks", "count", released)
			}
		}
	}
}
