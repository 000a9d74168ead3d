package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/aurumhq/aurum-api/internal/cache"
	"github.com/aurumhq/aurum-api/internal/config"
	"github.com/aurumhq/aurum-api/internal/events"
	"github.com/aurumhq/aurum-api/internal/platform/archive"
	"github.com/aurumhq/aurum-api/internal/platform/postgres"
	"github.com/aurumhq/aurum-api/internal/platform/redis"
	"github.com/aurumhq/aurum-api/internal/rbac"
	"github.com/aurumhq/aurum-api/internal/service"
	"github.com/aurumhq/aurum-api/internal/service/auth"
	"github.com/aurumhq/aurum-api/internal/store"
	"github.com/aurumhq/aurum-api/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core infrastructure
	logger      *slog.Logger
	db          *sql.DB
	redisClient *goredis.Client

	// Cache and invalidation
	dataCache   *cache.Cache
	invalidator *cache.Invalidator

	// Stores (using interfaces for proper abstraction)
	userStore      store.UserStore
	productStore   store.ProductStore
	customerStore  store.CustomerStore
	invoiceStore   store.InvoiceStore
	ledgerStore    store.LedgerStore
	backupStore    store.BackupStore
	analyticsStore store.AnalyticsStore
	taskStore      task.Store

	// Service interfaces
	jwtService        auth.JWTService
	passwordVerifier  auth.PasswordVerifier
	authorizer        *rbac.Authorizer
	authService       service.AuthService
	inventoryService  service.InventoryService
	customerService   service.CustomerService
	invoiceService    service.InvoiceService
	accountingService service.AccountingService
	kpiService        service.KPIService
	analyticsService  service.AnalyticsService
	backupService     service.BackupService

	// Event system
	eventEmitter events.DataChangeEmitter

	// Task handling
	taskRegistry *task.Registry
	taskClient   *task.Client
	taskWorker   *task.Worker
	scheduler    *task.Scheduler
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization. On success the application owns the database connection
// and closes it during cleanup.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize JWT service
	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	// Initialize password verifier and the role table
	app.passwordVerifier = auth.NewBcryptVerifier()
	app.authorizer, err = rbac.NewAuthorizer(rbac.DefaultRoles())
	if err != nil {
		return nil, fmt.Errorf("failed to build role table: %w", err)
	}

	// Initialize the analytics cache. A Redis outage at startup is not
	// fatal: the cache runs disabled and every read degrades to a
	// recomputation until the process is restarted with Redis back.
	if err := app.setupCache(ctx); err != nil {
		return nil, err
	}

	// Initialize stores
	app.userStore = postgres.NewPostgresUserStore(db, cfg.Auth.BcryptCost, logger)
	app.productStore = postgres.NewPostgresProductStore(db, logger)
	app.customerStore = postgres.NewPostgresCustomerStore(db, logger)
	app.invoiceStore = postgres.NewPostgresInvoiceStore(db, logger)
	app.ledgerStore = postgres.NewPostgresLedgerStore(db, logger)
	app.backupStore = postgres.NewPostgresBackupStore(db, logger)
	app.analyticsStore = postgres.NewPostgresAnalyticsStore(db, logger)
	app.taskStore = postgres.NewPostgresTaskStore(db, logger)

	// Initialize event emitter and register cache invalidation on it, so
	// every committed write evicts the cached read models it staled.
	emitter := events.NewInMemoryEmitter(logger)
	emitter.RegisterHandler(app.invalidator)
	app.eventEmitter = emitter

	if err := app.setupServices(); err != nil {
		return nil, err
	}

	if err := app.setupTasks(); err != nil {
		return nil, err
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// setupCache connects to Redis and builds the cache and its invalidator.
// Connection failure degrades to a disabled cache rather than failing
// startup.
func (app *application) setupCache(ctx context.Context) error {
	policy := cache.NewPolicy(app.config.Cache)

	enabled := app.config.Cache.Enabled
	var backend cache.Backend
	if enabled {
		client, err := redis.Connect(ctx, app.config.Redis)
		if err != nil {
			app.logger.Warn("redis unavailable, running with cache disabled", "error", err)
			enabled = false
		} else {
			app.redisClient = client
			backend = cache.NewRedisBackend(client)
		}
	}

	app.dataCache = cache.New(backend, policy, enabled, app.logger)
	app.invalidator = cache.NewInvalidator(app.dataCache, cache.DefaultRules(), app.logger)
	return nil
}

// setupServices wires the use-case layer over the stores, the emitter, and
// the cache.
func (app *application) setupServices() error {
	var err error

	app.authService, err = service.NewAuthService(
		app.userStore,
		app.jwtService,
		app.passwordVerifier,
		app.authorizer,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}

	app.inventoryService, err = service.NewInventoryService(
		app.productStore,
		app.eventEmitter,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create inventory service: %w", err)
	}

	app.customerService, err = service.NewCustomerService(
		app.customerStore,
		app.eventEmitter,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create customer service: %w", err)
	}

	app.invoiceService, err = service.NewInvoiceService(
		app.db,
		app.invoiceStore,
		app.productStore,
		app.customerStore,
		app.ledgerStore,
		app.eventEmitter,
		app.config.Sales,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create invoice service: %w", err)
	}

	app.accountingService, err = service.NewAccountingService(
		app.ledgerStore,
		app.eventEmitter,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create accounting service: %w", err)
	}

	app.kpiService, err = service.NewKPIService(
		app.analyticsStore,
		app.dataCache,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create KPI service: %w", err)
	}

	app.analyticsService, err = service.NewAnalyticsService(
		app.analyticsStore,
		app.dataCache,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create analytics service: %w", err)
	}

	archiver := archive.NewFileArchiver(
		app.config.Backup.Dir,
		app.productStore,
		app.customerStore,
		app.invoiceStore,
		app.ledgerStore,
		app.logger,
	)
	app.backupService, err = service.NewBackupService(
		app.backupStore,
		archiver,
		app.config.Backup,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create backup service: %w", err)
	}

	return nil
}

// setupTasks builds the task registry, client, worker, and scheduler, and
// registers every handler from the static binding table.
func (app *application) setupTasks() error {
	app.taskRegistry = task.DefaultRegistry()
	app.taskClient = task.NewClient(app.taskStore, app.taskRegistry, app.config.Task.MaxRetries, app.logger)
	app.taskWorker = task.NewWorker(app.taskStore, app.taskRegistry, app.config.Task, app.logger)

	probes := map[string]func(context.Context) error{
		"postgres": func(ctx context.Context) error { return app.db.PingContext(ctx) },
		"cache":    app.dataCache.Health,
	}
	if app.redisClient != nil {
		probes["redis"] = redis.Healthcheck(app.redisClient)
	}

	err := app.taskWorker.RegisterHandlers(
		task.NewKPISnapshotHandler(app.kpiService, app.logger),
		task.NewForecastRefreshHandler(app.analyticsService, app.logger),
		task.NewDailySalesReportHandler(app.analyticsService, app.logger),
		task.NewWeeklySummaryHandler(app.analyticsService, app.logger),
		task.NewHourlyBackupHandler(app.backupService, app.logger),
		task.NewBackupRetentionHandler(app.backupService, app.taskStore, app.logger),
		task.NewHealthCheckHandler(probes, app.logger),
		task.NewAnomalyScanHandler(app.analyticsService, app.logger),
	)
	if err != nil {
		return fmt.Errorf("failed to register task handlers: %w", err)
	}

	app.scheduler, err = task.NewScheduler(
		app.taskStore,
		app.taskRegistry,
		task.DefaultSchedule(),
		app.config.Task,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	return nil
}

// Run starts the HTTP server, the task worker, and the periodic scheduler,
// and blocks until the context is cancelled or one of them fails. Cleanup
// runs regardless of how the group exits.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	router := app.setupRouter()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(app.startHTTPServer(groupCtx, router))
	group.Go(app.taskWorker.Run(groupCtx))
	group.Go(app.scheduler.Run(groupCtx))

	if err := group.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources. The worker and
// scheduler are already stopped by the time Run's group returns; only
// connections remain.
func (app *application) cleanup() {
	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("error closing redis connection", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
