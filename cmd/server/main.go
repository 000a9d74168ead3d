// Package main implements the entry point for the Aurum API server: the
// retail management backend hosting the HTTP API, the background task worker
// pool, and the periodic scheduler in a single process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/aurumhq/aurum-api/internal/config"
	"github.com/aurumhq/aurum-api/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"run a migration command (up, down, status, version) and exit")
	migrationsDir := flag.String("migrations-dir", defaultMigrationsDir,
		"directory containing goose migration files")
	flag.Parse()

	if err := run(*migrateCmd, *migrationsDir); err != nil {
		log.Fatalf("aurum-api: %v", err)
	}
}

// run loads configuration, dispatches migration commands, and otherwise
// starts the application. Split from main so errors flow back to one exit
// point.
func run(migrateCmd, migrationsDir string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"cache_enabled", cfg.Cache.Enabled,
		"task_workers", cfg.Task.WorkerCount)

	// Migration commands run and exit; they never start the server.
	if migrateCmd != "" {
		return runMigrations(cfg, migrateCmd, migrationsDir)
	}

	// The root context ends on SIGINT/SIGTERM, which cascades a graceful
	// shutdown through the HTTP server, the worker, and the scheduler.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := setupDatabase(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		// newApplication hands ownership of db to the application only on
		// success.
		if closeErr := db.Close(); closeErr != nil {
			appLogger.Error("failed to close database after init failure", "error", closeErr)
		}
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if err := app.Run(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}
	return nil
}
