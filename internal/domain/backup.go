package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// BackupScope selects what a backup run covers.
type BackupScope string

// Possible backup scopes
const (
	BackupScopeFull      BackupScope = "full"
	BackupScopeLedger    BackupScope = "ledger"
	BackupScopeInventory BackupScope = "inventory"
)

// BackupStatus represents the lifecycle state of a backup run.
type BackupStatus string

// Possible backup status values
const (
	BackupStatusPending   BackupStatus = "pending"
	BackupStatusRunning   BackupStatus = "running"
	BackupStatusCompleted BackupStatus = "completed"
	BackupStatusFailed    BackupStatus = "failed"
)

// Common validation errors for Backup
var (
	ErrEmptyBackupID           = errors.New("backup ID cannot be empty")
	ErrInvalidBackupScope      = errors.New("invalid backup scope")
	ErrInvalidBackupStatus     = errors.New("invalid backup status")
	ErrEmptyHourBucket         = errors.New("backup hour bucket cannot be empty")
	ErrInvalidBackupTransition = errors.New("invalid backup status transition")
)

// hourBucketLayout truncates a timestamp to the hour, in UTC.
const hourBucketLayout = "2006-01-02T15"

// Backup records one backup run. HourBucket is the idempotence key: the
// scheduled backup job checks for an existing run in the current hour before
// starting a new one, so redelivered task invocations do not produce
// duplicate archives.
type Backup struct {
	ID          uuid.UUID    `json:"id"`
	Scope       BackupScope  `json:"scope"`
	Status      BackupStatus `json:"status"`
	HourBucket  string       `json:"hour_bucket"`
	Location    string       `json:"location,omitempty"`
	SizeBytes   int64        `json:"size_bytes"`
	Checksum    string       `json:"checksum,omitempty"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// HourBucketFor returns the idempotence key for a backup at the given time.
func HourBucketFor(t time.Time) string {
	return t.UTC().Format(hourBucketLayout)
}

// NewBackup creates a pending Backup for the hour containing at.
// Returns an error if validation fails.
func NewBackup(scope BackupScope, at time.Time) (*Backup, error) {
	backup := &Backup{
		ID:         uuid.New(),
		Scope:      scope,
		Status:     BackupStatusPending,
		HourBucket: HourBucketFor(at),
		CreatedAt:  time.Now().UTC(),
	}

	if err := backup.Validate(); err != nil {
		return nil, err
	}

	return backup, nil
}

// Validate checks if the Backup has valid data.
// Returns an error if any field fails validation.
func (b *Backup) Validate() error {
	if b.ID == uuid.Nil {
		return ErrEmptyBackupID
	}

	if !isValidBackupScope(b.Scope) {
		return ErrInvalidBackupScope
	}

	if !isValidBackupStatus(b.Status) {
		return ErrInvalidBackupStatus
	}

	if b.HourBucket == "" {
		return ErrEmptyHourBucket
	}

	return nil
}

// Start marks a pending backup as running and stamps StartedAt.
func (b *Backup) Start() error {
	if b.Status != BackupStatusPending {
		return ErrInvalidBackupTransition
	}

	now := time.Now().UTC()
	b.Status = BackupStatusRunning
	b.StartedAt = &now
	return nil
}

// Complete marks a running backup as completed and records the archive
// location, size, and checksum.
func (b *Backup) Complete(location string, sizeBytes int64, checksum string) error {
	if b.Status != BackupStatusRunning {
		return ErrInvalidBackupTransition
	}

	now := time.Now().UTC()
	b.Status = BackupStatusCompleted
	b.Location = location
	b.SizeBytes = sizeBytes
	b.Checksum = checksum
	b.CompletedAt = &now
	return nil
}

// Fail marks a running backup as failed.
func (b *Backup) Fail() error {
	if b.Status != BackupStatusRunning {
		return ErrInvalidBackupTransition
	}

	now := time.Now().UTC()
	b.Status = BackupStatusFailed
	b.CompletedAt = &now
	return nil
}

// Retry returns a failed backup to pending so a fresh attempt can run in
// the same hour bucket. The previous attempt's results are cleared.
func (b *Backup) Retry() error {
	if b.Status != BackupStatusFailed {
		return ErrInvalidBackupTransition
	}

	b.Status = BackupStatusPending
	b.Location = ""
	b.SizeBytes = 0
	b.Checksum = ""
	b.StartedAt = nil
	b.CompletedAt = nil
	return nil
}

// isValidBackupScope checks if the given scope is a valid BackupScope.
func isValidBackupScope(scope BackupScope) bool {
	switch scope {
	case BackupScopeFull, BackupScopeLedger, BackupScopeInventory:
		return true
	default:
		return false
	}
}

// isValidBackupStatus checks if the given status is a valid BackupStatus.
func isValidBackupStatus(status BackupStatus) bool {
	switch status {
	case BackupStatusPending, BackupStatusRunning, BackupStatusCompleted, BackupStatusFailed:
		return true
	default:
		return false
	}
}
