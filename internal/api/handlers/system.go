// system.go — обработчик GET /api/v1/info (информация о сервисе).
package handlers

import (
	"context"
	"net/http"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/config"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/blobstore"
)

// Режимы работы с удалённым хранилищем.
const (
	RemoteModeOnline  = "online"
	RemoteModeOffline = "offline"
)

// SessionBacklog — выборка сессий по состоянию.
type SessionBacklog interface {
	ListByState(ctx context.Context, state model.SessionState) ([]string, error)
}

// SystemHandler — обработчик системных endpoints.
type SystemHandler struct {
	store      *blobstore.Store
	sessions   SessionBacklog
	remoteMode string
}

// NewSystemHandler создаёт обработчик системных endpoints.
func NewSystemHandler(store *blobstore.Store, sessions SessionBacklog, remoteMode string) *SystemHandler {
	return &SystemHandler{
		store:      store,
		sessions:   sessions,
		remoteMode: remoteMode,
	}
}

// GetInfo обрабатывает GET /api/v1/info.
// Возвращает версию, режим работы и ёмкость хранилища.
func (h *SystemHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	status := "online"
	if !h.store.IsReady() {
		status = "maintenance"
	}

	used, capacity := h.store.Usage()
	available := capacity - used
	if available < 0 {
		available = 0
	}

	resp := map[string]any{
		"service":     "interview-media",
		"version":     config.Version,
		"status":      status,
		"remote_mode": h.remoteMode,
		"capacity": map[string]int64{
			"total_bytes":     capacity,
			"used_bytes":      used,
			"available_bytes": available,
		},
	}

	// Сессии, ожидающие подтверждения удалённым хранилищем
	if pending, err := h.sessions.ListByState(r.Context(), model.SessionComplete); err == nil {
		resp["sessions_pending_sync"] = len(pending)
	}

	writeJSON(w, http.StatusOK, resp)
}
