// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// IndexReadinessChecker — интерфейс для проверки готовности индекса записей.
type IndexReadinessChecker interface {
	IsReady() bool
}

// Pinger — проверка доступности локальной базы сессий.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RemoteReadinessChecker — проверка удалённого хранилища.
// Возвращает статус ("ok", "fail") и сообщение.
type RemoteReadinessChecker interface {
	CheckReady() (status string, message string)
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// dataDir — путь к директории данных (для проверки FS)
	dataDir string
	// walDir — путь к директории WAL (для проверки WAL)
	walDir string
	idx    IndexReadinessChecker
	db     Pinger
	remote RemoteReadinessChecker
}

// NewHealthHandler создаёт обработчик health endpoints.
// remote может быть nil, если удалённое хранилище не настроено.
func NewHealthHandler(dataDir, walDir string, idx IndexReadinessChecker, db Pinger, remote RemoteReadinessChecker) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		dataDir: dataDir,
		walDir:  walDir,
		idx:     idx,
		db:      db,
		remote:  remote,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "interview-media",
	})
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: файловая система, WAL директория, индекс записей, база сессий.
// Недоступность удалённого хранилища даёт статус degraded, а не fail:
// сервис продолжает работать локально.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	checks := map[string]any{
		"filesystem": checkWritable(h.dataDir, "Директория данных"),
		"wal":        checkWritable(h.walDir, "Директория WAL"),
		"index":      h.checkIndex(),
		"sessions":   h.checkSessions(r.Context()),
	}
	for _, c := range checks {
		if c.(map[string]any)["status"] != "ok" {
			overallStatus = statusFail
			httpStatus = http.StatusServiceUnavailable
		}
	}

	if h.remote != nil {
		status, message := h.remote.CheckReady()
		checks["remote"] = map[string]any{"status": status, "message": message}
		if status != "ok" && overallStatus != statusFail {
			overallStatus = "degraded"
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "interview-media",
		"checks":    checks,
	})
}

func (h *HealthHandler) checkIndex() map[string]any {
	if h.idx == nil || h.idx.IsReady() {
		return map[string]any{"status": "ok"}
	}
	return map[string]any{
		"status":  statusFail,
		"message": "Индекс записей не построен",
	}
}

func (h *HealthHandler) checkSessions(ctx context.Context) map[string]any {
	if h.db == nil {
		return map[string]any{"status": "ok", "message": "Проверка не настроена"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "База сессий недоступна: " + err.Error(),
		}
	}
	return map[string]any{"status": "ok"}
}

// checkWritable проверяет доступность директории на запись.
func checkWritable(dir, name string) map[string]any {
	if dir == "" {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	testFile := filepath.Join(dir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": name + " недоступна для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}
