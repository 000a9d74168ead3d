package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// taskRetentionAge is how long finished tasks are kept before the retention
// job removes them.
const taskRetentionAge = 30 * 24 * time.Hour

// The handler constructors below depend on narrow consumer interfaces rather
// than concrete services, which keeps this package free of service imports.
// The service layer implements them implicitly.

// KPIWarmer recomputes and caches the current period's KPIs.
type KPIWarmer interface {
	WarmCurrentPeriod(ctx context.Context) error
}

// ForecastRefresher recomputes and caches the sales forecast.
type ForecastRefresher interface {
	RefreshForecast(ctx context.Context) error
}

// ReportBuilder materializes reporting read models.
type ReportBuilder interface {
	BuildDailySalesReport(ctx context.Context, day time.Time) error
	BuildWeeklySummary(ctx context.Context, weekEnding time.Time) error
}

// BackupRunner executes and prunes backups.
type BackupRunner interface {
	// RunScheduledBackup performs a backup for the hour containing at,
	// skipping silently when that hour already has one.
	RunScheduledBackup(ctx context.Context, scope string, at time.Time) error

	// PruneOldBackups removes backup records past the retention window and
	// returns how many were removed.
	PruneOldBackups(ctx context.Context) (int64, error)
}

// AnomalyScanner checks recent revenue for statistical outliers and returns
// how many it found.
type AnomalyScanner interface {
	ScanRevenueAnomalies(ctx context.Context) (int, error)
}

type kpiSnapshotHandler struct {
	kpi    KPIWarmer
	logger *slog.Logger
}

// NewKPISnapshotHandler returns the hourly KPI warm-up handler.
func NewKPISnapshotHandler(kpi KPIWarmer, logger *slog.Logger) Handler {
	return &kpiSnapshotHandler{kpi: kpi, logger: logger.With("task", TaskKPISnapshot)}
}

func (h *kpiSnapshotHandler) Name() string { return TaskKPISnapshot }

func (h *kpiSnapshotHandler) Handle(ctx context.Context, _ json.RawMessage) error {
	return h.kpi.WarmCurrentPeriod(ctx)
}

type forecastRefreshHandler struct {
	forecasts ForecastRefresher
	logger    *slog.Logger
}

// NewForecastRefreshHandler returns the daily forecast refresh handler.
func NewForecastRefreshHandler(forecasts ForecastRefresher, logger *slog.Logger) Handler {
	return &forecastRefreshHandler{forecasts: forecasts, logger: logger.With("task", TaskForecastRefresh)}
}

func (h *forecastRefreshHandler) Name() string { return TaskForecastRefresh }

func (h *forecastRefreshHandler) Handle(ctx context.Context, _ json.RawMessage) error {
	return h.forecasts.RefreshForecast(ctx)
}

type dailySalesReportHandler struct {
	reports ReportBuilder
	logger  *slog.Logger
}

// NewDailySalesReportHandler returns the daily sales report handler. Without
// a payload it reports on yesterday; an explicit {"day":"2006-01-02"} payload
// rebuilds a specific day.
func NewDailySalesReportHandler(reports ReportBuilder, logger *slog.Logger) Handler {
	return &dailySalesReportHandler{reports: reports, logger: logger.With("task", TaskDailySalesReport)}
}

func (h *dailySalesReportHandler) Name() string { return TaskDailySalesReport }

func (h *dailySalesReportHandler) Handle(ctx context.Context, payload json.RawMessage) error {
	now := time.Now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)

	if len(payload) > 0 {
		var p struct {
			Day string `json:"day"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("parse daily report payload: %w", err)
		}
		if p.Day != "" {
			parsed, err := time.Parse("2006-01-02", p.Day)
			if err != nil {
				return fmt.Errorf("parse report day %q: %w", p.Day, err)
			}
			day = parsed
		}
	}

	return h.reports.BuildDailySalesReport(ctx, day)
}

type weeklySummaryHandler struct {
	reports ReportBuilder
	logger  *slog.Logger
}

// NewWeeklySummaryHandler returns the weekly summary handler.
func NewWeeklySummaryHandler(reports ReportBuilder, logger *slog.Logger) Handler {
	return &weeklySummaryHandler{reports: reports, logger: logger.With("task", TaskWeeklySummary)}
}

func (h *weeklySummaryHandler) Name() string { return TaskWeeklySummary }

func (h *weeklySummaryHandler) Handle(ctx context.Context, _ json.RawMessage) error {
	return h.reports.BuildWeeklySummary(ctx, time.Now().UTC())
}

type hourlyBackupHandler struct {
	backups BackupRunner
	logger  *slog.Logger
}

// NewHourlyBackupHandler returns the hourly backup handler. The hour-bucket
// check inside RunScheduledBackup makes redelivery of the same instance a
// no-op.
func NewHourlyBackupHandler(backups BackupRunner, logger *slog.Logger) Handler {
	return &hourlyBackupHandler{backups: backups, logger: logger.With("task", TaskHourlyBackup)}
}

func (h *hourlyBackupHandler) Name() string { return TaskHourlyBackup }

func (h *hourlyBackupHandler) Handle(ctx context.Context, payload json.RawMessage) error {
	scope := "full"
	if len(payload) > 0 {
		var p struct {
			Scope string `json:"scope"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("parse backup payload: %w", err)
		}
		if p.Scope != "" {
			scope = p.Scope
		}
	}

	return h.backups.RunScheduledBackup(ctx, scope, time.Now().UTC())
}

type backupRetentionHandler struct {
	backups BackupRunner
	tasks   Store
	logger  *slog.Logger
}

// NewBackupRetentionHandler returns the retention handler. It prunes old
// backup records and, as co-located housekeeping, finished tasks older than
// the retention age.
func NewBackupRetentionHandler(backups BackupRunner, tasks Store, logger *slog.Logger) Handler {
	return &backupRetentionHandler{backups: backups, tasks: tasks, logger: logger.With("task", TaskBackupRetention)}
}

func (h *backupRetentionHandler) Name() string { return TaskBackupRetention }

func (h *backupRetentionHandler) Handle(ctx context.Context, _ json.RawMessage) error {
	prunedBackups, err := h.backups.PruneOldBackups(ctx)
	if err != nil {
		return fmt.Errorf("prune backups: %w", err)
	}

	cutoff := time.Now().UTC().Add(-taskRetentionAge)
	prunedTasks, err := h.tasks.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune finished tasks: %w", err)
	}

	h.logger.InfoContext(ctx, "retention pass complete",
		"pruned_backups", prunedBackups,
		"pruned_tasks", prunedTasks)
	return nil
}

type healthCheckHandler struct {
	probes map[string]func(context.Context) error
	logger *slog.Logger
}

// NewHealthCheckHandler returns the periodic health check handler. Each
// probe is run in turn; any failure fails the task, which surfaces the
// outage in the dead letter state for the operational API.
func NewHealthCheckHandler(probes map[string]func(context.Context) error, logger *slog.Logger) Handler {
	return &healthCheckHandler{probes: probes, logger: logger.With("task", TaskHealthCheck)}
}

func (h *healthCheckHandler) Name() string { return TaskHealthCheck }

func (h *healthCheckHandler) Handle(ctx context.Context, _ json.RawMessage) error {
	var failures []error
	for name, probe := range h.probes {
		if err := probe(ctx); err != nil {
			h.logger.ErrorContext(ctx, "health probe failed", "probe", name, "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", name, err))
		}
	}
	if len(failures) > 0 {
		return errors.Join(failures...)
	}

	h.logger.DebugContext(ctx, "health probes passed", "count", len(h.probes))
	return nil
}

type anomalyScanHandler struct {
	analytics AnomalyScanner
	logger    *slog.Logger
}

// NewAnomalyScanHandler returns the revenue anomaly scan handler.
func NewAnomalyScanHandler(analytics AnomalyScanner, logger *slog.Logger) Handler {
	return &anomalyScanHandler{analytics: analytics, logger: logger.With("task", TaskAnomalyScan)}
}

func (h *anomalyScanHandler) Name() string { return TaskAnomalyScan }

func (h *anomalyScanHandler) Handle(ctx context.Context, _ json.RawMessage) error {
	count, err := h.analytics.ScanRevenueAnomalies(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		h.logger.WarnContext(ctx, "revenue anomalies detected", "count", count)
	}
	return nil
}
