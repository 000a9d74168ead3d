package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/platform/logger"
	"github.com/aurumhq/aurum-api/internal/task"
)

// taskColumns is the column list shared by every task SELECT.
const taskColumns = `id, queue, name, payload, status, retry_count, max_retries,
	last_error, scheduled_at, expires_at, locked_until, locked_by, created_at, updated_at`

// PostgresTaskStore implements the task.Store interface using a PostgreSQL
// database as the storage backend. Claiming relies on FOR UPDATE SKIP LOCKED
// so multiple worker processes can pull from the same queues without
// coordination.
type PostgresTaskStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the task.Store
// interface. If log is nil, the process default logger is used.
func NewPostgresTaskStore(db *sql.DB, log *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: log.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements task.Store interface
var _ task.Store = (*PostgresTaskStore)(nil)

// Create implements task.Store.Create
func (s *PostgresTaskStore) Create(ctx context.Context, t *task.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO tasks (id, queue, name, payload, status, retry_count, max_retries,
			last_error, scheduled_at, expires_at, locked_until, locked_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		t.ID,
		t.Queue,
		t.Name,
		[]byte(t.Payload),
		string(t.Status),
		t.RetryCount,
		t.MaxRetries,
		t.LastError,
		t.ScheduledAt,
		nullableTime(t.ExpiresAt),
		nullableTime(t.LockedUntil),
		nullableUUID(t.LockedBy),
		t.CreatedAt,
		t.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", t.ID.String()),
			slog.String("task_name", t.Name))
		return MapError(err)
	}

	log.Debug("task created",
		slog.String("task_id", t.ID.String()),
		slog.String("task_name", t.Name),
		slog.String("queue", t.Queue))
	return nil
}

// GetByID implements task.Store.GetByID
// Returns task.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	t, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, task.ErrTaskNotFound
		}
		log.Error("failed to get task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}

	return t, nil
}

// Claim implements task.Store.Claim
// One oldest due pending task on the given queues moves to running in a single
// statement. SKIP LOCKED makes concurrent claims pick distinct rows instead of
// blocking on each other. Returns task.ErrNoTaskToClaim when nothing is due.
func (s *PostgresTaskStore) Claim(
	ctx context.Context,
	workerID uuid.UUID,
	queues []string,
	lockFor time.Duration,
) (*task.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(queues) == 0 {
		return nil, task.ErrNoTaskToClaim
	}

	query := `
		UPDATE tasks
		SET status = $1, locked_until = $2, locked_by = $3, updated_at = now()
		WHERE id = (
			SELECT id FROM tasks
			WHERE status = $4
			  AND queue = ANY($5)
			  AND scheduled_at <= now()
			  AND (expires_at IS NULL OR expires_at > now())
			ORDER BY scheduled_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + taskColumns

	lockedUntil := time.Now().UTC().Add(lockFor)
	t, err := scanTask(s.db.QueryRowContext(
		ctx,
		query,
		string(task.StatusRunning),
		lockedUntil,
		workerID,
		string(task.StatusPending),
		queues,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, task.ErrNoTaskToClaim
		}
		log.Error("failed to claim task", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	log.Debug("task claimed",
		slog.String("task_id", t.ID.String()),
		slog.String("task_name", t.Name),
		slog.String("worker_id", workerID.String()))
	return t, nil
}

// MarkSucceeded implements task.Store.MarkSucceeded
// Returns task.ErrTaskNotRunning when the task lost its claim, for instance
// after the janitor released an expired lock.
func (s *PostgresTaskStore) MarkSucceeded(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET status = $1, locked_until = NULL, locked_by = NULL, updated_at = now()
		WHERE id = $2 AND status = $3
	`
	result, err := s.db.ExecContext(ctx, query, string(task.StatusSucceeded), id, string(task.StatusRunning))
	if err != nil {
		log.Error("failed to mark task succeeded",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return s.notRunning(ctx, id)
	}
	return nil
}

// MarkFailed implements task.Store.MarkFailed
// The retry decision happens inside one UPDATE: either the task returns to
// pending with the backoff applied, or the spent retry budget moves it to the
// dead letter state. The resulting status is returned for logging.
func (s *PostgresTaskStore) MarkFailed(
	ctx context.Context,
	id uuid.UUID,
	errMsg string,
	backoff time.Duration,
) (task.Status, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET retry_count = retry_count + 1,
			last_error = $1,
			locked_until = NULL,
			locked_by = NULL,
			updated_at = now(),
			status = CASE WHEN retry_count + 1 > max_retries THEN $2 ELSE $3 END,
			scheduled_at = CASE WHEN retry_count + 1 > max_retries
				THEN scheduled_at
				ELSE now() + make_interval(secs => $4) END
		WHERE id = $5 AND status = $6
		RETURNING status
	`

	var status string
	err := s.db.QueryRowContext(
		ctx,
		query,
		errMsg,
		string(task.StatusDead),
		string(task.StatusPending),
		backoff.Seconds(),
		id,
		string(task.StatusRunning),
	).Scan(&status)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", s.notRunning(ctx, id)
		}
		log.Error("failed to mark task failed",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return "", MapError(err)
	}

	return task.Status(status), nil
}

// MarkDead implements task.Store.MarkDead
// Returns task.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) MarkDead(ctx context.Context, id uuid.UUID, errMsg string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET status = $1, last_error = $2, locked_until = NULL, locked_by = NULL, updated_at = now()
		WHERE id = $3
	`
	result, err := s.db.ExecContext(ctx, query, string(task.StatusDead), errMsg, id)
	if err != nil {
		log.Error("failed to mark task dead",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return MapError(err)
	}

	return CheckRowsAffected(result, task.ErrTaskNotFound)
}

// FindPendingByName implements task.Store.FindPendingByName
// Returns task.ErrTaskNotFound when no pending instance exists.
func (s *PostgresTaskStore) FindPendingByName(ctx context.Context, name string) (*task.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE status = $1 AND name = $2
		ORDER BY scheduled_at
		LIMIT 1`

	t, err := scanTask(s.db.QueryRowContext(ctx, query, string(task.StatusPending), name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, task.ErrTaskNotFound
		}
		log.Error("failed to find pending task",
			slog.String("error", err.Error()),
			slog.String("task_name", name))
		return nil, MapError(err)
	}

	return t, nil
}

// List implements task.Store.List
func (s *PostgresTaskStore) List(ctx context.Context, filter task.Filter) ([]*task.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	args := []any{}

	if filter.Queue != "" {
		args = append(args, filter.Queue)
		query += fmt.Sprintf(" AND queue = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer closeRows(rows, log)

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, err
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return tasks, nil
}

// CountByStatus implements task.Store.CountByStatus
func (s *PostgresTaskStore) CountByStatus(ctx context.Context) (map[task.Status]int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT status, count(*) FROM tasks GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to count tasks", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer closeRows(rows, log)

	counts := make(map[task.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[task.Status(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return counts, nil
}

// DropExpired implements task.Store.DropExpired
// Expired pending tasks move to the dead letter state instead of being
// deleted, so missed periodic instances stay visible to the operational API.
func (s *PostgresTaskStore) DropExpired(ctx context.Context) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET status = $1, last_error = 'expired before execution', updated_at = now()
		WHERE status = $2 AND expires_at IS NOT NULL AND expires_at <= now()
	`
	result, err := s.db.ExecContext(ctx, query, string(task.StatusDead), string(task.StatusPending))
	if err != nil {
		log.Error("failed to drop expired tasks", slog.String("error", err.Error()))
		return 0, MapError(err)
	}

	dropped, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(dropped), nil
}

// ReleaseExpiredLocks implements task.Store.ReleaseExpiredLocks
// A released task keeps its retry count: losing a worker is not a failed
// attempt.
func (s *PostgresTaskStore) ReleaseExpiredLocks(ctx context.Context) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET status = $1, locked_until = NULL, locked_by = NULL, updated_at = now()
		WHERE status = $2 AND locked_until IS NOT NULL AND locked_until < now()
	`
	result, err := s.db.ExecContext(ctx, query, string(task.StatusPending), string(task.StatusRunning))
	if err != nil {
		log.Error("failed to release expired locks", slog.String("error", err.Error()))
		return 0, MapError(err)
	}

	released, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(released), nil
}

// DeleteFinishedBefore implements task.Store.DeleteFinishedBefore
func (s *PostgresTaskStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `DELETE FROM tasks WHERE status IN ($1, $2) AND created_at < $3`

	result, err := s.db.ExecContext(ctx, query, string(task.StatusSucceeded), string(task.StatusDead), cutoff)
	if err != nil {
		log.Error("failed to delete finished tasks", slog.String("error", err.Error()))
		return 0, MapError(err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		log.Info("removed finished task records", slog.Int64("removed", removed))
	}
	return removed, nil
}

// notRunning distinguishes a missing task from one that lost its running
// state, mirroring how the memory store reports the two cases.
func (s *PostgresTaskStore) notRunning(ctx context.Context, id uuid.UUID) error {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return task.ErrTaskNotFound
		}
		return MapError(err)
	}
	return fmt.Errorf("%w: %s is %s", task.ErrTaskNotRunning, id, status)
}

// scanTask maps one result row onto a task.Task.
func scanTask(row rowScanner) (*task.Task, error) {
	var t task.Task
	var payload []byte
	var status string
	var expiresAt, lockedUntil sql.NullTime
	var lockedBy uuid.NullUUID

	err := row.Scan(
		&t.ID,
		&t.Queue,
		&t.Name,
		&payload,
		&status,
		&t.RetryCount,
		&t.MaxRetries,
		&t.LastError,
		&t.ScheduledAt,
		&expiresAt,
		&lockedUntil,
		&lockedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Payload = payload
	t.Status = task.Status(status)
	if expiresAt.Valid {
		at := expiresAt.Time
		t.ExpiresAt = &at
	}
	if lockedUntil.Valid {
		at := lockedUntil.Time
		t.LockedUntil = &at
	}
	if lockedBy.Valid {
		id := lockedBy.UUID
		t.LockedBy = &id
	}
	return &t, nil
}

// nullableUUID converts *uuid.UUID to uuid.NullUUID for nullable columns.
func nullableUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
