package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/config"
	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/store"
)

// Archiver writes a backup archive for one scope and reports where it
// landed. PruneFiles removes archives older than the cutoff from the backup
// directory.
type Archiver interface {
	Archive(ctx context.Context, scope domain.BackupScope) (location string, sizeBytes int64, checksum string, err error)
	PruneFiles(ctx context.Context, olderThan time.Time) (int, error)
}

// BackupService runs and tracks backups. Runs are idempotent per scope and
// hour: a second request in the same hour finds the existing record and does
// not produce a second archive, which makes redelivered task invocations
// safe. A failed run in the current hour is retried in place.
type BackupService interface {
	// RunScheduledBackup takes a backup of the given scope for the hour
	// containing at. When the hour already has a completed or in-flight
	// backup of that scope, it does nothing. The hourly_backup task calls
	// this for both scheduled runs and on-demand triggers.
	RunScheduledBackup(ctx context.Context, scope string, at time.Time) error

	// GetBackup retrieves a backup record by ID.
	// Returns store.ErrBackupNotFound if the backup does not exist.
	GetBackup(ctx context.Context, id uuid.UUID) (*domain.Backup, error)

	// ListBackups retrieves the most recent backup records, newest first.
	ListBackups(ctx context.Context, limit int) ([]*domain.Backup, error)

	// PruneOldBackups removes backup records and archive files older than
	// the retention window and returns how many records were removed. The
	// periodic backup_retention task calls this.
	PruneOldBackups(ctx context.Context) (int64, error)
}

// backupServiceImpl implements the BackupService interface.
type backupServiceImpl struct {
	backupStore   store.BackupStore
	archiver      Archiver
	retentionDays int
	logger        *slog.Logger
	timeFunc      func() time.Time
}

// NewBackupService creates a new BackupService.
func NewBackupService(
	backupStore store.BackupStore,
	archiver Archiver,
	cfg config.BackupConfig,
	logger *slog.Logger,
) (BackupService, error) {
	if backupStore == nil {
		return nil, domain.NewValidationError("backupStore", "cannot be nil", domain.ErrValidation)
	}
	if archiver == nil {
		return nil, domain.NewValidationError("archiver", "cannot be nil", domain.ErrValidation)
	}
	if cfg.RetentionDays <= 0 {
		return nil, domain.NewValidationError("cfg.RetentionDays", "must be positive", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &backupServiceImpl{
		backupStore:   backupStore,
		archiver:      archiver,
		retentionDays: cfg.RetentionDays,
		logger:        logger.With("component", "backup_service"),
		timeFunc:      time.Now,
	}, nil
}

func (s *backupServiceImpl) RunScheduledBackup(ctx context.Context, scope string, at time.Time) error {
	backup, existing, err := s.claimBucket(ctx, domain.BackupScope(scope), at)
	if err != nil {
		return err
	}
	if backup == nil {
		s.logger.DebugContext(ctx, "backup already taken for hour",
			"scope", scope,
			"hour_bucket", existing.HourBucket,
			"status", existing.Status)
		return nil
	}

	return s.runBackup(ctx, backup)
}

// claimBucket resolves who owns the (scope, hour) bucket. It returns a
// pending backup to run when the bucket is free or held by a failed
// attempt, or (nil, existing) when the bucket is already served by a
// completed or in-flight backup.
func (s *backupServiceImpl) claimBucket(
	ctx context.Context,
	scope domain.BackupScope,
	at time.Time,
) (*domain.Backup, *domain.Backup, error) {
	bucket := domain.HourBucketFor(at)

	existing, err := s.backupStore.FindByScopeAndBucket(ctx, scope, bucket)
	switch {
	case err == nil:
		if existing.Status != domain.BackupStatusFailed {
			return nil, existing, nil
		}
		if err := existing.Retry(); err != nil {
			return nil, nil, fmt.Errorf("failed to reset failed backup: %w", err)
		}
		if err := s.backupStore.Update(ctx, existing); err != nil {
			return nil, nil, fmt.Errorf("failed to reset failed backup: %w", err)
		}
		return existing, nil, nil

	case errors.Is(err, store.ErrBackupNotFound):
		backup, err := domain.NewBackup(scope, at)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid backup: %w", err)
		}
		if err := s.backupStore.Create(ctx, backup); err != nil {
			if errors.Is(err, store.ErrBackupBucketExists) {
				// Lost the race to another worker; refetch what won.
				winner, findErr := s.backupStore.FindByScopeAndBucket(ctx, scope, bucket)
				if findErr != nil {
					return nil, nil, fmt.Errorf("failed to load concurrent backup: %w", findErr)
				}
				return nil, winner, nil
			}
			return nil, nil, fmt.Errorf("failed to create backup record: %w", err)
		}
		return backup, nil, nil

	default:
		return nil, nil, fmt.Errorf("failed to check backup bucket: %w", err)
	}
}

// runBackup drives one pending backup through the archiver to a terminal
// status, persisting each transition.
func (s *backupServiceImpl) runBackup(ctx context.Context, backup *domain.Backup) error {
	if err := backup.Start(); err != nil {
		return fmt.Errorf("failed to start backup: %w", err)
	}
	if err := s.backupStore.Update(ctx, backup); err != nil {
		return fmt.Errorf("failed to save backup start: %w", err)
	}

	location, sizeBytes, checksum, archiveErr := s.archiver.Archive(ctx, backup.Scope)
	if archiveErr != nil {
		if err := backup.Fail(); err == nil {
			if err := s.backupStore.Update(ctx, backup); err != nil {
				s.logger.ErrorContext(ctx, "failed to record backup failure",
					"backup_id", backup.ID,
					"error", err)
			}
		}
		return fmt.Errorf("archive failed for scope %s: %w", backup.Scope, archiveErr)
	}

	if err := backup.Complete(location, sizeBytes, checksum); err != nil {
		return fmt.Errorf("failed to complete backup: %w", err)
	}
	if err := s.backupStore.Update(ctx, backup); err != nil {
		return fmt.Errorf("failed to save backup result: %w", err)
	}

	s.logger.InfoContext(ctx, "backup completed",
		"backup_id", backup.ID,
		"scope", backup.Scope,
		"hour_bucket", backup.HourBucket,
		"location", location,
		"size_bytes", sizeBytes)
	return nil
}

func (s *backupServiceImpl) GetBackup(ctx context.Context, id uuid.UUID) (*domain.Backup, error) {
	backup, err := s.backupStore.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve backup: %w", err)
	}
	return backup, nil
}

func (s *backupServiceImpl) ListBackups(ctx context.Context, limit int) ([]*domain.Backup, error) {
	if limit <= 0 {
		limit = 20
	}
	backups, err := s.backupStore.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	return backups, nil
}

func (s *backupServiceImpl) PruneOldBackups(ctx context.Context) (int64, error) {
	removed, err := s.backupStore.DeleteOlderThan(ctx, s.retentionDays)
	if err != nil {
		return 0, fmt.Errorf("failed to prune backup records: %w", err)
	}

	cutoff := s.timeFunc().UTC().AddDate(0, 0, -s.retentionDays)
	files, err := s.archiver.PruneFiles(ctx, cutoff)
	if err != nil {
		return removed, fmt.Errorf("failed to prune archive files: %w", err)
	}

	s.logger.InfoContext(ctx, "old backups pruned",
		"records_removed", removed,
		"files_removed", files,
		"retention_days", s.retentionDays)
	return removed, nil
}
