package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aurumhq/aurum-api/internal/api/shared"
	"github.com/aurumhq/aurum-api/internal/service"
)

// AnalyticsHandler handles KPI, forecast, report, and anomaly reads. These
// endpoints are cache-first: a page refresh normally costs one Redis read.
type AnalyticsHandler struct {
	kpiService       service.KPIService
	analyticsService service.AnalyticsService
	logger           *slog.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler. If log is nil, the
// process default logger is used.
func NewAnalyticsHandler(
	kpiService service.KPIService,
	analyticsService service.AnalyticsService,
	log *slog.Logger,
) *AnalyticsHandler {
	if kpiService == nil {
		panic("kpi service cannot be nil")
	}
	if analyticsService == nil {
		panic("analytics service cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &AnalyticsHandler{
		kpiService:       kpiService,
		analyticsService: analyticsService,
		logger:           log.With(slog.String("component", "analytics_handler")),
	}
}

// RevenueKPIs handles GET /analytics/kpis/revenue requests. Both from and
// to are required.
func (h *AnalyticsHandler) RevenueKPIs(w http.ResponseWriter, r *http.Request) {
	from, to, err := queryWindow(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	kpis, err := h.kpiService.RevenueKPIs(r.Context(), from, to)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to compute revenue KPIs")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, kpis)
}

// Dashboard handles GET /analytics/dashboard requests.
func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.kpiService.DashboardSnapshot(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to build dashboard")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, snapshot)
}

// Forecast handles GET /analytics/forecast requests. The horizon_days query
// parameter defaults to the standard horizon.
func (h *AnalyticsHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	horizonDays, err := queryInt(r, "horizon_days", 0)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	forecast, err := h.analyticsService.Forecast(r.Context(), horizonDays)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to compute forecast")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, forecast)
}

// DailyReport handles GET /analytics/reports/daily requests. The date query
// parameter defaults to today.
func (h *AnalyticsHandler) DailyReport(w http.ResponseWriter, r *http.Request) {
	day, err := queryTime(r, "date")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if day.IsZero() {
		day = time.Now().UTC()
	}

	report, err := h.analyticsService.DailySalesReport(r.Context(), day)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to build daily sales report")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, report)
}

// WeeklySummary handles GET /analytics/reports/weekly requests. The
// week_ending query parameter defaults to now, covering the last seven full
// days.
func (h *AnalyticsHandler) WeeklySummary(w http.ResponseWriter, r *http.Request) {
	weekEnding, err := queryTime(r, "week_ending")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if weekEnding.IsZero() {
		weekEnding = time.Now().UTC()
	}

	summary, err := h.analyticsService.WeeklySummary(r.Context(), weekEnding)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to build weekly summary")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, summary)
}

// RevenueSeries handles GET /analytics/charts/revenue requests. Both from
// and to are required.
func (h *AnalyticsHandler) RevenueSeries(w http.ResponseWriter, r *http.Request) {
	from, to, err := queryWindow(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	series, err := h.analyticsService.RevenueSeries(r.Context(), from, to)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to build revenue series")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, series)
}

// TopProducts handles GET /analytics/charts/top-products requests. Both
// from and to are required; limit defaults to the service's standard.
func (h *AnalyticsHandler) TopProducts(w http.ResponseWriter, r *http.Request) {
	from, to, err := queryWindow(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	products, err := h.analyticsService.TopProducts(r.Context(), from, to, limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to rank products")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, products)
}

// Anomalies handles GET /analytics/anomalies requests, returning the most
// recent revenue anomaly report.
func (h *AnalyticsHandler) Anomalies(w http.ResponseWriter, r *http.Request) {
	report, err := h.analyticsService.Anomalies(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to scan for anomalies")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, report)
}
