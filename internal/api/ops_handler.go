package api

import (
	"log/slog"
	"net/http"

	"github.com/aurumhq/aurum-api/internal/api/shared"
	"github.com/aurumhq/aurum-api/internal/cache"
	"github.com/aurumhq/aurum-api/internal/platform/logger"
	"github.com/aurumhq/aurum-api/internal/service"
	"github.com/aurumhq/aurum-api/internal/task"
)

// OpsHandler handles the operational surface: cache statistics and health,
// task queue introspection, and backup management.
type OpsHandler struct {
	cache         *cache.Cache
	taskStore     task.Store
	taskClient    *task.Client
	backupService service.BackupService
	logger        *slog.Logger
}

// NewOpsHandler creates a new OpsHandler. If log is nil, the process
// default logger is used.
func NewOpsHandler(
	c *cache.Cache,
	taskStore task.Store,
	taskClient *task.Client,
	backupService service.BackupService,
	log *slog.Logger,
) *OpsHandler {
	if c == nil {
		panic("cache cannot be nil")
	}
	if taskStore == nil {
		panic("task store cannot be nil")
	}
	if taskClient == nil {
		panic("task client cannot be nil")
	}
	if backupService == nil {
		panic("backup service cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &OpsHandler{
		cache:         c,
		taskStore:     taskStore,
		taskClient:    taskClient,
		backupService: backupService,
		logger:        log.With(slog.String("component", "ops_handler")),
	}
}

// CacheStatsResponse is the payload for the cache statistics endpoint.
type CacheStatsResponse struct {
	Enabled bool        `json:"enabled"`
	Stats   cache.Stats `json:"stats"`
}

// CacheHealthResponse is the payload for the cache health endpoint.
type CacheHealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// CacheStats handles GET /ops/cache/stats requests.
func (h *OpsHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, CacheStatsResponse{
		Enabled: h.cache.Enabled(),
		Stats:   h.cache.Stats(),
	})
}

// CacheHealth handles GET /ops/cache/health requests. A degraded cache
// answers 503 so probes can alert, but the API itself keeps serving reads
// by recomputing.
func (h *OpsHandler) CacheHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Health(r.Context()); err != nil {
		shared.RespondWithJSON(w, r, http.StatusServiceUnavailable, CacheHealthResponse{
			Status: "degraded",
			Error:  err.Error(),
		})
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, CacheHealthResponse{Status: "ok"})
}

// DeadTasks handles GET /ops/tasks/dead requests: tasks that exhausted
// their retry budget and need operator attention.
func (h *OpsHandler) DeadTasks(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := queryPage(r, 50)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	tasks, err := h.taskStore.List(r.Context(), task.Filter{
		Status: task.StatusDead,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list dead tasks")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, tasks)
}

// TaskCounts handles GET /ops/tasks/counts requests, reporting queue depth
// per status.
func (h *OpsHandler) TaskCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.taskStore.CountByStatus(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to count tasks")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, counts)
}

// ListBackups handles GET /ops/backups requests, newest first.
func (h *OpsHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	backups, err := h.backupService.ListBackups(r.Context(), limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list backups")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, backups)
}

// GetBackup handles GET /ops/backups/{id} requests.
func (h *OpsHandler) GetBackup(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	backup, err := h.backupService.GetBackup(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get backup")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, backup)
}

// TriggerBackup handles POST /ops/backups requests: an on-demand backup of
// one scope, dispatched through the task queue like its scheduled siblings.
// The response is 202 with the enqueued task; the run itself is idempotent
// per hour, so a trigger inside an hour that already has a backup completes
// as a no-op rather than producing a second archive.
func (h *OpsHandler) TriggerBackup(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req TriggerBackupRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.Validate.Struct(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	enqueued, err := h.taskClient.Enqueue(r.Context(), task.TaskHourlyBackup, BackupTaskPayload{Scope: req.Scope})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to enqueue backup")
		return
	}

	log.Info("backup enqueued",
		slog.String("task_id", enqueued.ID.String()),
		slog.String("scope", req.Scope))
	shared.RespondWithJSON(w, r, http.StatusAccepted, TriggerBackupResponse{
		TaskID:      enqueued.ID,
		Queue:       enqueued.Queue,
		Scope:       req.Scope,
		ScheduledAt: enqueued.ScheduledAt,
	})
}
