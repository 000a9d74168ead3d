package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurumhq/aurum-api/internal/config"
	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/store"
)

func newTestBackupService(
	t *testing.T,
	backups *fakeBackupStore,
	archiver *fakeArchiver,
) BackupService {
	t.Helper()
	svc, err := NewBackupService(backups, archiver,
		config.BackupConfig{Dir: "/backups", RetentionDays: 30}, testLogger())
	require.NoError(t, err)
	return svc
}

func TestNewBackupServiceValidatesDependencies(t *testing.T) {
	t.Parallel()

	cfg := config.BackupConfig{Dir: "/backups", RetentionDays: 30}

	_, err := NewBackupService(nil, &fakeArchiver{}, cfg, testLogger())
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewBackupService(newFakeBackupStore(), nil, cfg, testLogger())
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewBackupService(newFakeBackupStore(), &fakeArchiver{},
		config.BackupConfig{Dir: "/backups"}, testLogger())
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRunScheduledBackup(t *testing.T) {
	t.Parallel()

	backups := newFakeBackupStore()
	archiver := &fakeArchiver{sizeBytes: 2048, checksum: "abc123"}
	svc := newTestBackupService(t, backups, archiver)
	at := time.Date(2025, 3, 14, 9, 25, 0, 0, time.UTC)

	require.NoError(t, svc.RunScheduledBackup(context.Background(), "full", at))
	assert.Equal(t, 1, archiver.calls)

	record, err := backups.FindByScopeAndBucket(
		context.Background(), domain.BackupScopeFull, "2025-03-14T09")
	require.NoError(t, err)
	assert.Equal(t, domain.BackupStatusCompleted, record.Status)
	assert.Equal(t, "/backups/full.jsonl.gz", record.Location)
	assert.Equal(t, int64(2048), record.SizeBytes)
	assert.Equal(t, "abc123", record.Checksum)
	require.NotNil(t, record.StartedAt)
	require.NotNil(t, record.CompletedAt)
}

func TestRunScheduledBackupIdempotentWithinHour(t *testing.T) {
	t.Parallel()

	backups := newFakeBackupStore()
	archiver := &fakeArchiver{}
	svc := newTestBackupService(t, backups, archiver)
	ctx := context.Background()
	at := time.Date(2025, 3, 14, 9, 5, 0, 0, time.UTC)

	require.NoError(t, svc.RunScheduledBackup(ctx, "ledger", at))
	require.NoError(t, svc.RunScheduledBackup(ctx, "ledger", at.Add(40*time.Minute)))
	assert.Equal(t, 1, archiver.calls)
	assert.Len(t, backups.backups, 1)

	// The next hour is a fresh bucket.
	require.NoError(t, svc.RunScheduledBackup(ctx, "ledger", at.Add(time.Hour)))
	assert.Equal(t, 2, archiver.calls)
	assert.Len(t, backups.backups, 2)
}

func TestRunScheduledBackupDistinctScopes(t *testing.T) {
	t.Parallel()

	backups := newFakeBackupStore()
	archiver := &fakeArchiver{}
	svc := newTestBackupService(t, backups, archiver)
	ctx := context.Background()
	at := time.Date(2025, 3, 14, 9, 5, 0, 0, time.UTC)

	// Scopes do not share buckets.
	require.NoError(t, svc.RunScheduledBackup(ctx, "full", at))
	require.NoError(t, svc.RunScheduledBackup(ctx, "ledger", at))
	require.NoError(t, svc.RunScheduledBackup(ctx, "inventory", at))
	assert.Equal(t, 3, archiver.calls)
	assert.Len(t, backups.backups, 3)
}

func TestRunScheduledBackupRejectsUnknownScope(t *testing.T) {
	t.Parallel()

	svc := newTestBackupService(t, newFakeBackupStore(), &fakeArchiver{})

	err := svc.RunScheduledBackup(context.Background(), "everything", time.Now().UTC())
	assert.ErrorIs(t, err, domain.ErrInvalidBackupScope)
}

func TestRunScheduledBackupRetriesFailedHour(t *testing.T) {
	t.Parallel()

	backups := newFakeBackupStore()
	archiver := &fakeArchiver{archiveErr: errors.New("disk full")}
	svc := newTestBackupService(t, backups, archiver)
	ctx := context.Background()
	at := time.Date(2025, 3, 14, 9, 5, 0, 0, time.UTC)

	err := svc.RunScheduledBackup(ctx, "full", at)
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")

	record, err := backups.FindByScopeAndBucket(ctx, domain.BackupScopeFull, "2025-03-14T09")
	require.NoError(t, err)
	assert.Equal(t, domain.BackupStatusFailed, record.Status)

	// The hour bucket is not burned: the next run retries in place instead
	// of skipping.
	archiver.archiveErr = nil
	archiver.sizeBytes = 512
	require.NoError(t, svc.RunScheduledBackup(ctx, "full", at.Add(10*time.Minute)))
	assert.Equal(t, 2, archiver.calls)
	assert.Len(t, backups.backups, 1)

	record, err = backups.FindByScopeAndBucket(ctx, domain.BackupScopeFull, "2025-03-14T09")
	require.NoError(t, err)
	assert.Equal(t, domain.BackupStatusCompleted, record.Status)
	assert.Equal(t, int64(512), record.SizeBytes)
}

func TestRunScheduledBackupLosesCreateRace(t *testing.T) {
	t.Parallel()

	backups := newFakeBackupStore()
	archiver := &fakeArchiver{}
	svc := newTestBackupService(t, backups, archiver)
	ctx := context.Background()
	at := time.Date(2025, 3, 14, 9, 5, 0, 0, time.UTC)

	// Another worker wins the insert between the bucket check and the
	// create: the first lookup misses, the create hits the unique
	// constraint, and the refetch finds the winner.
	winner, err := domain.NewBackup(domain.BackupScopeFull, at)
	require.NoError(t, err)
	require.NoError(t, winner.Start())
	backups.backups[winner.ID] = winner
	backups.findMisses = 1

	require.NoError(t, svc.RunScheduledBackup(ctx, "full", at))
	assert.Equal(t, 0, archiver.calls)
	assert.Len(t, backups.backups, 1)
}

func TestListBackupsDefaultsLimit(t *testing.T) {
	t.Parallel()

	backups := newFakeBackupStore()
	svc := newTestBackupService(t, backups, &fakeArchiver{})
	ctx := context.Background()

	base := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	for hour := 0; hour < 25; hour++ {
		require.NoError(t, svc.RunScheduledBackup(ctx, "full", base.Add(time.Duration(hour)*time.Hour)))
	}

	listed, err := svc.ListBackups(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, listed, 20)

	listed, err = svc.ListBackups(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, listed, 5)
}

func TestPruneOldBackups(t *testing.T) {
	t.Parallel()

	backups := newFakeBackupStore()
	archiver := &fakeArchiver{pruned: 2}
	svc := newTestBackupService(t, backups, archiver)
	ctx := context.Background()

	// One record well past retention, one current.
	old, err := domain.NewBackup(domain.BackupScopeFull, time.Now().UTC().AddDate(0, 0, -45))
	require.NoError(t, err)
	old.Status = domain.BackupStatusCompleted
	old.CreatedAt = time.Now().UTC().AddDate(0, 0, -45)
	backups.backups[old.ID] = old

	require.NoError(t, svc.RunScheduledBackup(ctx, "full", time.Now().UTC()))

	removed, err := svc.PruneOldBackups(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Len(t, backups.backups, 1)
}

func TestPruneOldBackupsReportsFilePruneFailure(t *testing.T) {
	t.Parallel()

	backups := newFakeBackupStore()
	archiver := &fakeArchiver{pruneErr: errors.New("permission denied")}
	svc := newTestBackupService(t, backups, archiver)

	removed, err := svc.PruneOldBackups(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "permission denied")
	assert.Equal(t, int64(0), removed)
}

func TestGetBackupNotFound(t *testing.T) {
	t.Parallel()

	svc := newTestBackupService(t, newFakeBackupStore(), &fakeArchiver{})

	_, err := svc.GetBackup(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrBackupNotFound)
}
