// maintenance.go — обработчики endpoints обслуживания:
// POST /api/v1/maintenance/integrity и POST /api/v1/maintenance/sync.
package handlers

import (
	"context"
	"net/http"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/api/errors"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/service"
)

// IntegrityRunner — интерфейс для запуска проверки целостности.
// Позволяет тестировать handler без полного IntegrityService.
type IntegrityRunner interface {
	// RunOnce выполняет одну проверку.
	// Возвращает результат и флаг "уже выполняется".
	RunOnce() (*service.IntegrityReport, bool)
}

// SyncRunner — интерфейс для внеочередного прохода синхронизации.
type SyncRunner interface {
	RunOnce(ctx context.Context) *service.SyncRunResult
}

// MaintenanceHandler — обработчик endpoints обслуживания.
type MaintenanceHandler struct {
	integrity IntegrityRunner
	sync      SyncRunner
}

// NewMaintenanceHandler создаёт обработчик maintenance endpoints.
func NewMaintenanceHandler(integrity IntegrityRunner, sync SyncRunner) *MaintenanceHandler {
	return &MaintenanceHandler{integrity: integrity, sync: sync}
}

// Integrity обрабатывает POST /api/v1/maintenance/integrity.
// Запускает синхронную проверку и возвращает отчёт.
// Если проверка уже выполняется — 409 INTEGRITY_IN_PROGRESS.
func (h *MaintenanceHandler) Integrity(w http.ResponseWriter, _ *http.Request) {
	report, inProgress := h.integrity.RunOnce()
	if inProgress {
		errors.IntegrityInProgress(w, "Проверка целостности уже выполняется")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Sync обрабатывает POST /api/v1/maintenance/sync.
// Выполняет внеочередной проход синхронизации с удалённым хранилищем.
func (h *MaintenanceHandler) Sync(w http.ResponseWriter, r *http.Request) {
	res := h.sync.RunOnce(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"responses_synced": res.ResponsesSynced,
		"responses_failed": res.ResponsesFailed,
		"sessions_synced":  res.SessionsSynced,
		"sessions_failed":  res.SessionsFailed,
		"sessions_purged":  res.SessionsPurged,
		"errors":           res.Errors,
		"duration_ms":      res.Duration.Milliseconds(),
	})
}
