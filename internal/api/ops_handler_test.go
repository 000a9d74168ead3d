package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurumhq/aurum-api/internal/cache"
	"github.com/aurumhq/aurum-api/internal/config"
	"github.com/aurumhq/aurum-api/internal/service"
	"github.com/aurumhq/aurum-api/internal/task"
)

// stubBackupService implements only the methods a test installs; the
// trigger-backup endpoint never touches it because the run happens in the
// worker, not the request.
type stubBackupService struct {
	service.BackupService
}

func newOpsCache() *cache.Cache {
	cfg := config.CacheConfig{
		Enabled:               true,
		KPITTLSeconds:         60,
		ForecastTTLSeconds:    60,
		ChartTTLSeconds:       60,
		ReportTTLSeconds:      60,
		AggregationTTLSeconds: 60,
	}
	return cache.New(cache.NewMemoryBackend(), cache.NewPolicy(cfg), true, testLogger())
}

// opsRouter mounts the ops handler on an in-memory task store so tests can
// inspect what the endpoints enqueued.
func opsRouter(store task.Store) http.Handler {
	client := task.NewClient(store, task.DefaultRegistry(), 3, testLogger())
	h := NewOpsHandler(newOpsCache(), store, client, &stubBackupService{}, testLogger())
	r := chi.NewRouter()
	r.Post("/ops/backups", h.TriggerBackup)
	r.Get("/ops/cache/health", h.CacheHealth)
	return r
}

func TestOpsTriggerBackupEnqueuesTask(t *testing.T) {
	store := task.NewMemoryStore()
	req := httptest.NewRequest(http.MethodPost, "/ops/backups", strings.NewReader(`{"scope":"ledger"}`))

	rec := httptest.NewRecorder()
	opsRouter(store).ServeHTTP(rec, req)

	// The endpoint acknowledges with the enqueued task, not a finished
	// backup: the run belongs to the worker pool.
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp TriggerBackupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, task.QueueBackup, resp.Queue)
	assert.Equal(t, "ledger", resp.Scope)

	enqueued, err := store.GetByID(req.Context(), resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, task.TaskHourlyBackup, enqueued.Name)
	assert.Equal(t, task.StatusPending, enqueued.Status)
	assert.JSONEq(t, `{"scope":"ledger"}`, string(enqueued.Payload))
}

func TestOpsTriggerBackupRejectsUnknownScope(t *testing.T) {
	store := task.NewMemoryStore()
	req := httptest.NewRequest(http.MethodPost, "/ops/backups", strings.NewReader(`{"scope":"everything"}`))

	rec := httptest.NewRecorder()
	opsRouter(store).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Nothing reached the queue.
	tasks, err := store.List(req.Context(), task.Filter{Status: task.StatusPending, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestOpsTriggerBackupRejectsMalformedBody(t *testing.T) {
	store := task.NewMemoryStore()
	req := httptest.NewRequest(http.MethodPost, "/ops/backups", strings.NewReader(`{"scope":`))

	rec := httptest.NewRecorder()
	opsRouter(store).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpsCacheHealthOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ops/cache/health", nil)

	rec := httptest.NewRecorder()
	opsRouter(task.NewMemoryStore()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp CacheHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}
