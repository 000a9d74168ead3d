package task

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurumhq/aurum-api/internal/config"
)

func testTaskConfig() config.TaskConfig {
	return config.TaskConfig{
		WorkerCount:          2,
		PullIntervalSeconds:  1,
		MaxRetries:           2,
		RetryBackoffSeconds:  1,
		SoftTimeLimitSeconds: 5,
		HardTimeLimitSeconds: 10,
		SchedulerTickSeconds: 1,
	}
}

// newTestWorker builds a worker with millisecond-scale limits; the
// second-resolution config values are too coarse for tests.
func newTestWorker(t *testing.T, store Store) *Worker {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewWorker(store, DefaultRegistry(), testTaskConfig(), logger)
	w.pullInterval = 10 * time.Millisecond
	w.softLimit = 200 * time.Millisecond
	w.hardLimit = 400 * time.Millisecond
	w.backoff = 0
	return w
}

// claimOne claims the next due task or fails the test.
func claimOne(t *testing.T, s Store, queue string) *Task {
	t.Helper()

	claimed, err := s.Claim(context.Background(), uuid.New(), []string{queue}, time.Minute)
	require.NoError(t, err)
	return claimed
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestWorkerRegisterHandlerDuplicate(t *testing.T) {
	w := newTestWorker(t, NewMemoryStore())

	require.NoError(t, w.RegisterHandler(NewHandlerFunc(TaskKPISnapshot, func(context.Context, json.RawMessage) error {
		return nil
	})))

	err := w.RegisterHandler(NewHandlerFunc(TaskKPISnapshot, func(context.Context, json.RawMessage) error {
		return nil
	}))
	assert.Error(t, err)
}

func TestWorkerStartWithoutHandlers(t *testing.T) {
	w := newTestWorker(t, NewMemoryStore())

	err := w.Start(context.Background())
	assert.ErrorIs(t, err, ErrNoHandlers)
}

func TestWorkerStartTwice(t *testing.T) {
	w := newTestWorker(t, NewMemoryStore())
	require.NoError(t, w.RegisterHandler(NewHandlerFunc(TaskKPISnapshot, func(context.Context, json.RawMessage) error {
		return nil
	})))

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	err := w.Start(context.Background())
	assert.Error(t, err)
}

func TestWorkerStopBeforeStart(t *testing.T) {
	w := newTestWorker(t, NewMemoryStore())

	err := w.Stop()
	assert.Error(t, err)
}

func TestWorkerProcessTaskSuccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	w := newTestWorker(t, s)

	var gotPayload json.RawMessage
	require.NoError(t, w.RegisterHandler(NewHandlerFunc(TaskKPISnapshot, func(_ context.Context, payload json.RawMessage) error {
		gotPayload = payload
		return nil
	})))

	created := mustCreate(t, s, QueueKPI, TaskKPISnapshot, func(tk *Task) {
		tk.Payload = json.RawMessage(`{"period":"monthly"}`)
	})

	w.processTask(claimOne(t, s, QueueKPI))

	got, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, got.Status)
	assert.JSONEq(t, `{"period":"monthly"}`, string(gotPayload))
}

func TestWorkerProcessTaskMissingHandler(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	w := newTestWorker(t, s)

	require.NoError(t, w.RegisterHandler(NewHandlerFunc(TaskKPISnapshot, func(context.Context, json.RawMessage) error {
		return nil
	})))

	created := mustCreate(t, s, QueueReports, TaskWeeklySummary, nil)

	w.processTask(claimOne(t, s, QueueReports))

	got, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDead, got.Status)
	assert.Contains(t, got.LastError, "no handler registered for task: "+TaskWeeklySummary)
	assert.Equal(t, 0, got.RetryCount, "a missing handler is not a retryable failure")
}

func TestWorkerRetriesThenDeadLetters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	w := newTestWorker(t, s)

	var attempts atomic.Int32
	require.NoError(t, w.RegisterHandler(NewHandlerFunc(TaskForecastRefresh, func(context.Context, json.RawMessage) error {
		attempts.Add(1)
		return errors.New("model diverged")
	})))

	created := mustCreate(t, s, QueueForecasting, TaskForecastRefresh, func(tk *Task) {
		tk.MaxRetries = 1
	})

	// With zero backoff each failed attempt is immediately claimable again.
	w.processTask(claimOne(t, s, QueueForecasting))

	got, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)

	w.processTask(claimOne(t, s, QueueForecasting))

	got, err = s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDead, got.Status)
	assert.Equal(t, "model diverged", got.LastError)
	assert.Equal(t, int32(2), attempts.Load(), "max_retries=1 means exactly two attempts")

	_, err = s.Claim(ctx, uuid.New(), []string{QueueForecasting}, time.Minute)
	assert.ErrorIs(t, err, ErrNoTaskToClaim, "dead tasks are never claimed again")
}

func TestWorkerRecoversFromHandlerPanic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	w := newTestWorker(t, s)

	require.NoError(t, w.RegisterHandler(NewHandlerFunc(TaskAnomalyScan, func(context.Context, json.RawMessage) error {
		panic("nil dereference in scoring")
	})))

	created := mustCreate(t, s, QueueIntelligence, TaskAnomalyScan, nil)

	w.processTask(claimOne(t, s, QueueIntelligence))

	got, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status, "a panic counts as a failed attempt, not a crash")
	assert.Contains(t, got.LastError, "handler panicked")
	assert.Contains(t, got.LastError, "nil dereference in scoring")
}

func TestWorkerSoftLimitCancelsHandlerContext(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	w := newTestWorker(t, s)
	w.softLimit = 20 * time.Millisecond
	w.hardLimit = 500 * time.Millisecond

	require.NoError(t, w.RegisterHandler(NewHandlerFunc(TaskDailySalesReport, func(hctx context.Context, _ json.RawMessage) error {
		<-hctx.Done()
		return hctx.Err()
	})))

	created := mustCreate(t, s, QueueReports, TaskDailySalesReport, nil)

	start := time.Now()
	w.processTask(claimOne(t, s, QueueReports))
	assert.Less(t, time.Since(start), 400*time.Millisecond, "a deadline-honoring handler returns at the soft limit")

	got, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Contains(t, got.LastError, context.DeadlineExceeded.Error())
}

func TestWorkerHardLimitAbandonsHandler(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	w := newTestWorker(t, s)
	w.softLimit = 10 * time.Millisecond
	w.hardLimit = 50 * time.Millisecond

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	// Ignores its context entirely; only the hard limit can stop the attempt.
	require.NoError(t, w.RegisterHandler(NewHandlerFunc(TaskHourlyBackup, func(context.Context, json.RawMessage) error {
		<-release
		return nil
	})))

	created := mustCreate(t, s, QueueBackup, TaskHourlyBackup, nil)

	w.processTask(claimOne(t, s, QueueBackup))

	got, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Contains(t, got.LastError, "abandoned after hard time limit")
}

func TestWorkerStartStop(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	w := newTestWorker(t, s)

	var handled atomic.Int32
	require.NoError(t, w.RegisterHandler(NewHandlerFunc(TaskHealthCheck, func(context.Context, json.RawMessage) error {
		handled.Add(1)
		return nil
	})))

	created := mustCreate(t, s, QueueRecovery, TaskHealthCheck, nil)

	require.NoError(t, w.Start(ctx))

	waitFor(t, 2*time.Second, func() bool {
		got, err := s.GetByID(ctx, created.ID)
		return err == nil && got.Status == StatusSucceeded
	})
	assert.Equal(t, int32(1), handled.Load())

	require.NoError(t, w.Stop())

	// Tasks enqueued after shutdown stay untouched.
	late := mustCreate(t, s, QueueRecovery, TaskHealthCheck, nil)
	time.Sleep(50 * time.Millisecond)

	got, err := s.GetByID(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}
