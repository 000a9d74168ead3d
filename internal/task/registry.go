package task

import (
	"fmt"
	"sort"
)

// The fixed queue set. Each queue groups one job family so operators can
// reason about backlog per family; workers claim across all of them.
const (
	QueueKPI          = "kpi"
	QueueForecasting  = "forecasting"
	QueueReports      = "reports"
	QueueBackup       = "backup"
	QueueRecovery     = "recovery"
	QueueIntelligence = "intelligence"
)

// knownQueues guards Bind against typos.
var knownQueues = map[string]struct{}{
	QueueKPI:          {},
	QueueForecasting:  {},
	QueueReports:      {},
	QueueBackup:       {},
	QueueRecovery:     {},
	QueueIntelligence: {},
}

// Task names understood by the system. Every name is bound to exactly one
// queue in DefaultRegistry and has a handler registered on the worker.
const (
	TaskKPISnapshot      = "kpi_snapshot"
	TaskForecastRefresh  = "forecast_refresh"
	TaskDailySalesReport = "daily_sales_report"
	TaskWeeklySummary    = "weekly_summary"
	TaskHourlyBackup     = "hourly_backup"
	TaskBackupRetention  = "backup_retention"
	TaskHealthCheck      = "health_check"
	TaskAnomalyScan      = "anomaly_scan"
)

// Registry binds task names to queues. Bindings are established once at
// startup and read-only afterwards; dispatch looks queues up here and never
// computes them.
type Registry struct {
	bindings map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]string)}
}

// Bind associates a task name with a queue. Rebinding a name or naming an
// unknown queue is a wiring bug and returns an error.
func (r *Registry) Bind(name, queue string) error {
	if _, ok := knownQueues[queue]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQueue, queue)
	}
	if existing, ok := r.bindings[name]; ok {
		return fmt.Errorf("%w: %q is bound to %q", ErrAlreadyBound, name, existing)
	}
	r.bindings[name] = queue
	return nil
}

// QueueFor returns the queue a task name is bound to.
func (r *Registry) QueueFor(name string) (string, error) {
	queue, ok := r.bindings[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnboundTask, name)
	}
	return queue, nil
}

// Queues returns the distinct queues with at least one binding, sorted.
// Workers claim across this set.
func (r *Registry) Queues() []string {
	seen := make(map[string]struct{}, len(r.bindings))
	for _, queue := range r.bindings {
		seen[queue] = struct{}{}
	}
	queues := make([]string, 0, len(seen))
	for queue := range seen {
		queues = append(queues, queue)
	}
	sort.Strings(queues)
	return queues
}

// TaskNames returns all bound task names, sorted.
func (r *Registry) TaskNames() []string {
	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns the production binding table.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	bindings := map[string]string{
		TaskKPISnapshot:      QueueKPI,
		TaskForecastRefresh:  QueueForecasting,
		TaskDailySalesReport: QueueReports,
		TaskWeeklySummary:    QueueReports,
		TaskHourlyBackup:     QueueBackup,
		TaskBackupRetention:  QueueRecovery,
		TaskHealthCheck:      QueueRecovery,
		TaskAnomalyScan:      QueueIntelligence,
	}
	for name, queue := range bindings {
		if err := r.Bind(name, queue); err != nil {
			// The table above is static; a failure here is a programming
			// error caught by the registry tests.
			panic(err)
		}
	}
	return r
}
