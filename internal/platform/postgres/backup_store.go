package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/platform/logger"
	"github.com/aurumhq/aurum-api/internal/store"
)

// backupColumns is the column list shared by every backup SELECT.
const backupColumns = `id, scope, status, hour_bucket, location, size_bytes,
	checksum, started_at, completed_at, created_at`

// PostgresBackupStore implements the store.BackupStore interface
// using a PostgreSQL database as the storage backend.
type PostgresBackupStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresBackupStore creates a new PostgreSQL implementation of the BackupStore
// interface. If log is nil, the process default logger is used.
func NewPostgresBackupStore(db store.DBTX, log *slog.Logger) *PostgresBackupStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &PostgresBackupStore{
		db:     db,
		logger: log.With(slog.String("component", "backup_store")),
	}
}

// Ensure PostgresBackupStore implements store.BackupStore interface
var _ store.BackupStore = (*PostgresBackupStore)(nil)

// Create implements store.BackupStore.Create
// Returns store.ErrBackupBucketExists when a run for the same scope and hour
// bucket already exists. The hourly job treats that as work already done.
func (s *PostgresBackupStore) Create(ctx context.Context, backup *domain.Backup) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := backup.Validate(); err != nil {
		log.Warn("backup validation failed during create",
			slog.String("error", err.Error()),
			slog.String("backup_id", backup.ID.String()))
		return err
	}

	query := `
		INSERT INTO backups (id, scope, status, hour_bucket, location, size_bytes,
			checksum, started_at, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		backup.ID,
		backup.Scope,
		backup.Status,
		backup.HourBucket,
		backup.Location,
		backup.SizeBytes,
		backup.Checksum,
		nullableTime(backup.StartedAt),
		nullableTime(backup.CompletedAt),
		backup.CreatedAt,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			log.Info("backup already exists for hour bucket",
				slog.String("scope", string(backup.Scope)),
				slog.String("hour_bucket", backup.HourBucket))
			return MapUniqueViolation(err, store.ErrBackupBucketExists)
		}
		log.Error("failed to create backup record",
			slog.String("error", err.Error()),
			slog.String("backup_id", backup.ID.String()))
		return MapError(err)
	}

	log.Info("backup record created",
		slog.String("backup_id", backup.ID.String()),
		slog.String("scope", string(backup.Scope)),
		slog.String("hour_bucket", backup.HourBucket))
	return nil
}

// GetByID implements store.BackupStore.GetByID
// Returns store.ErrBackupNotFound if the backup does not exist.
func (s *PostgresBackupStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Backup, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + backupColumns + ` FROM backups WHERE id = $1`

	backup, err := scanBackup(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("backup not found", slog.String("backup_id", id.String()))
			return nil, store.ErrBackupNotFound
		}
		log.Error("failed to get backup",
			slog.String("error", err.Error()),
			slog.String("backup_id", id.String()))
		return nil, MapError(err)
	}

	return backup, nil
}

// FindByScopeAndBucket implements store.BackupStore.FindByScopeAndBucket
// Returns store.ErrBackupNotFound if no run exists for the scope and bucket.
func (s *PostgresBackupStore) FindByScopeAndBucket(
	ctx context.Context,
	scope domain.BackupScope,
	bucket string,
) (*domain.Backup, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + backupColumns + ` FROM backups WHERE scope = $1 AND hour_bucket = $2`

	backup, err := scanBackup(s.db.QueryRowContext(ctx, query, scope, bucket))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrBackupNotFound
		}
		log.Error("failed to find backup by bucket",
			slog.String("error", err.Error()),
			slog.String("scope", string(scope)),
			slog.String("hour_bucket", bucket))
		return nil, MapError(err)
	}

	return backup, nil
}

// ListRecent implements store.BackupStore.ListRecent
func (s *PostgresBackupStore) ListRecent(ctx context.Context, limit int) ([]*domain.Backup, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 24
	}

	query := `SELECT ` + backupColumns + ` FROM backups ORDER BY created_at DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		log.Error("failed to list backups", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer closeRows(rows, log)

	var backups []*domain.Backup
	for rows.Next() {
		backup, err := scanBackup(rows)
		if err != nil {
			log.Error("failed to scan backup row", slog.String("error", err.Error()))
			return nil, err
		}
		backups = append(backups, backup)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return backups, nil
}

// Update implements store.BackupStore.Update
// Returns store.ErrBackupNotFound if the backup does not exist.
func (s *PostgresBackupStore) Update(ctx context.Context, backup *domain.Backup) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := backup.Validate(); err != nil {
		log.Warn("backup validation failed during update",
			slog.String("error", err.Error()),
			slog.String("backup_id", backup.ID.String()))
		return err
	}

	query := `
		UPDATE backups
		SET status = $1, location = $2, size_bytes = $3, checksum = $4,
			started_at = $5, completed_at = $6
		WHERE id = $7
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		backup.Status,
		backup.Location,
		backup.SizeBytes,
		backup.Checksum,
		nullableTime(backup.StartedAt),
		nullableTime(backup.CompletedAt),
		backup.ID,
	)

	if err != nil {
		log.Error("failed to update backup",
			slog.String("error", err.Error()),
			slog.String("backup_id", backup.ID.String()))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrBackupNotFound)
}

// DeleteOlderThan implements store.BackupStore.DeleteOlderThan
// Only terminal runs are removed; pending and running rows are kept regardless
// of age so an in-flight run is never pulled out from under its job.
func (s *PostgresBackupStore) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		DELETE FROM backups
		WHERE status IN ('completed', 'failed')
		  AND created_at < now() - make_interval(days => $1)
	`

	result, err := s.db.ExecContext(ctx, query, days)
	if err != nil {
		log.Error("failed to prune old backups", slog.String("error", err.Error()))
		return 0, MapError(err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		log.Info("pruned old backup records",
			slog.Int64("removed", removed),
			slog.Int("retention_days", days))
	}
	return removed, nil
}

// WithTx implements store.BackupStore.WithTx
// It returns a copy of the store that runs all operations on the transaction.
func (s *PostgresBackupStore) WithTx(tx *sql.Tx) store.BackupStore {
	return &PostgresBackupStore{db: tx, logger: s.logger}
}

// scanBackup maps one result row onto a domain.Backup.
func scanBackup(row rowScanner) (*domain.Backup, error) {
	var backup domain.Backup
	var scope, status string
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&backup.ID,
		&scope,
		&status,
		&backup.HourBucket,
		&backup.Location,
		&backup.SizeBytes,
		&backup.Checksum,
		&startedAt,
		&completedAt,
		&backup.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	backup.Scope = domain.BackupScope(scope)
	backup.Status = domain.BackupStatus(status)
	if startedAt.Valid {
		t := startedAt.Time
		backup.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		backup.CompletedAt = &t
	}
	return &backup, nil
}
