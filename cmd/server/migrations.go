package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/aurumhq/aurum-api/internal/config"
)

// defaultMigrationsDir is where goose migration files live relative to the
// working directory.
const defaultMigrationsDir = "migrations"

// migrationTableName is the table goose uses to track applied versions.
const migrationTableName = "schema_migrations"

// migrationCommands is the set of goose commands the -migrate flag accepts.
var migrationCommands = map[string]struct{}{
	"up":      {},
	"down":    {},
	"status":  {},
	"version": {},
}

// runMigrations executes one goose command against the configured database.
// The command is validated before any connection is opened so typos fail
// fast.
func runMigrations(cfg *config.Config, command, dir string) error {
	if _, ok := migrationCommands[command]; !ok {
		return fmt.Errorf("unknown migration command %q (expected up, down, status, or version)", command)
	}

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory %q not found", dir)
	}

	log := slog.Default().With("component", "migrations", "command", command)

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database connection", "error", closeErr)
		}
	}()

	goose.SetLogger(&slogGooseLogger{log: log})
	goose.SetTableName(migrationTableName)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	start := time.Now()
	switch command {
	case "up":
		err = goose.Up(db, dir)
	case "down":
		err = goose.Down(db, dir)
	case "status":
		err = goose.Status(db, dir)
	case "version":
		err = goose.Version(db, dir)
	}
	if err != nil {
		return fmt.Errorf("migration command %q failed: %w", command, err)
	}

	log.Info("migration command completed", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// slogGooseLogger adapts goose's Printf-style logging to slog.
type slogGooseLogger struct {
	log *slog.Logger
}

func (l *slogGooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(fmt.Sprintf(format, v...))
	os.Exit(1)
}

func (l *slogGooseLogger) Printf(format string, v ...any) {
	l.log.Info(fmt.Sprintf(format, v...))
}
