package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aurumhq/aurum-api/internal/api"
	apiMiddleware "github.com/aurumhq/aurum-api/internal/api/middleware"
	"github.com/aurumhq/aurum-api/internal/rbac"
)

// setupRouter creates and configures the application router with all routes
// and middleware. Every /api route except auth and health runs behind JWT
// authentication plus a capability gate from the role table.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	// Create API handlers using the application's services
	authHandler := api.NewAuthHandler(app.authService, app.logger)
	productHandler := api.NewProductHandler(app.inventoryService, app.logger)
	customerHandler := api.NewCustomerHandler(app.customerService, app.logger)
	invoiceHandler := api.NewInvoiceHandler(app.invoiceService, app.logger)
	ledgerHandler := api.NewLedgerHandler(app.accountingService, app.logger)
	analyticsHandler := api.NewAnalyticsHandler(app.kpiService, app.analyticsService, app.logger)
	opsHandler := api.NewOpsHandler(app.dataCache, app.taskStore, app.taskClient, app.backupService, app.logger)

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)
	authorize := apiMiddleware.NewAuthorizeMiddleware(app.authorizer)

	r.Route("/api", func(r chi.Router) {
		// Authentication endpoints (public)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.RefreshToken)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Route("/products", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(authorize.Require(rbac.CapabilityInventoryRead))
					r.Get("/", productHandler.List)
					r.Get("/low-stock", productHandler.LowStock)
					r.Get("/sku/{sku}", productHandler.GetBySKU)
					r.Get("/{id}", productHandler.Get)
				})
				r.Group(func(r chi.Router) {
					r.Use(authorize.Require(rbac.CapabilityInventoryWrite))
					r.Post("/", productHandler.Create)
					r.Put("/{id}", productHandler.Update)
					r.Post("/{id}/adjust-stock", productHandler.AdjustStock)
					r.Delete("/{id}", productHandler.Delete)
				})
			})

			r.Route("/customers", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(authorize.Require(rbac.CapabilityCustomersRead))
					r.Get("/", customerHandler.List)
					r.Get("/{id}", customerHandler.Get)
				})
				r.Group(func(r chi.Router) {
					r.Use(authorize.Require(rbac.CapabilityCustomersWrite))
					r.Post("/", customerHandler.Create)
					r.Put("/{id}", customerHandler.Update)
					r.Delete("/{id}", customerHandler.Delete)
				})
			})

			r.Route("/invoices", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(authorize.Require(rbac.CapabilityInvoicesRead))
					r.Get("/", invoiceHandler.List)
					r.Get("/number/{number}", invoiceHandler.GetByNumber)
					r.Get("/{id}", invoiceHandler.Get)
				})
				r.Group(func(r chi.Router) {
					r.Use(authorize.Require(rbac.CapabilityInvoicesWrite))
					r.Post("/", invoiceHandler.Create)
					r.Put("/{id}/items", invoiceHandler.UpdateItems)
					r.Post("/{id}/complete", invoiceHandler.Complete)
					r.Post("/{id}/cancel", invoiceHandler.Cancel)
				})
			})

			r.Route("/ledger", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(authorize.Require(rbac.CapabilityLedgerRead))
					r.Get("/entries", ledgerHandler.ListEntries)
					r.Get("/entries/{id}", ledgerHandler.GetEntry)
					r.Get("/accounts/{account}/balance", ledgerHandler.AccountBalance)
					r.Get("/trial-balance", ledgerHandler.TrialBalance)
				})
				r.Group(func(r chi.Router) {
					r.Use(authorize.Require(rbac.CapabilityLedgerWrite))
					r.Post("/entries", ledgerHandler.RecordEntries)
				})
			})

			r.Route("/analytics", func(r chi.Router) {
				r.Use(authorize.Require(rbac.CapabilityAnalyticsRead))
				r.Get("/kpis/revenue", analyticsHandler.RevenueKPIs)
				r.Get("/dashboard", analyticsHandler.Dashboard)
				r.Get("/forecast", analyticsHandler.Forecast)
				r.Get("/reports/daily", analyticsHandler.DailyReport)
				r.Get("/reports/weekly", analyticsHandler.WeeklySummary)
				r.Get("/revenue-series", analyticsHandler.RevenueSeries)
				r.Get("/top-products", analyticsHandler.TopProducts)
				r.Get("/anomalies", analyticsHandler.Anomalies)
			})

			r.Route("/ops", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(authorize.Require(rbac.CapabilityAdminTasks))
					r.Get("/cache/stats", opsHandler.CacheStats)
					r.Get("/cache/health", opsHandler.CacheHealth)
					r.Get("/tasks/dead", opsHandler.DeadTasks)
					r.Get("/tasks/counts", opsHandler.TaskCounts)
				})
				r.Group(func(r chi.Router) {
					r.Use(authorize.Require(rbac.CapabilityAdminBackups))
					r.Get("/backups", opsHandler.ListBackups)
					r.Get("/backups/{id}", opsHandler.GetBackup)
					r.Post("/backups", opsHandler.TriggerBackup)
				})
			})
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("OK"))
		if err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
