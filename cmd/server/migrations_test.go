package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurumhq/aurum-api/internal/config"
)

func TestRunMigrationsRejectsUnknownCommand(t *testing.T) {
	err := runMigrations(&config.Config{}, "sideways", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown migration command")
}

func TestRunMigrationsRejectsMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")

	err := runMigrations(&config.Config{}, "status", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunMigrationsRejectsFileAsDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "migrations")
	require.NoError(t, os.WriteFile(file, []byte("not a directory"), 0o600))

	err := runMigrations(&config.Config{}, "up", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMigrationCommandsCoverCLISurface(t *testing.T) {
	for _, command := range []string{"up", "down", "status", "version"} {
		_, ok := migrationCommands[command]
		assert.True(t, ok, "command %q should be accepted", command)
	}
	_, ok := migrationCommands["redo"]
	assert.False(t, ok, "redo is not exposed through the -migrate flag")
}
