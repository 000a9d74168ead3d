package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/domain"
)

// BackupStore defines the interface for backup run persistence.
type BackupStore interface {
	// Create saves a new backup record.
	// Returns ErrBackupBucketExists if a backup for the same scope and hour
	// bucket already exists; the hourly job relies on that to stay idempotent
	// under task redelivery.
	Create(ctx context.Context, backup *domain.Backup) error

	// GetByID retrieves a backup by its unique ID.
	// Returns ErrBackupNotFound if the backup does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Backup, error)

	// FindByScopeAndBucket retrieves the backup for the given scope and hour
	// bucket. Returns ErrBackupNotFound if none exists.
	FindByScopeAndBucket(ctx context.Context, scope domain.BackupScope, bucket string) (*domain.Backup, error)

	// ListRecent retrieves the most recent backups, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.Backup, error)

	// Update persists status transitions and completion details.
	// Returns ErrBackupNotFound if the backup does not exist.
	Update(ctx context.Context, backup *domain.Backup) error

	// DeleteOlderThan removes completed and failed backup records older than
	// the given number of days, returning how many were removed. The
	// retention job calls this on its daily run.
	DeleteOlderThan(ctx context.Context, days int) (int64, error)

	// WithTx returns a new BackupStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) BackupStore
}
