// handler.go — APIHandler собирает доменные handlers и регистрирует
// их маршруты в chi-роутере.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIHandler — единая точка регистрации всех endpoints.
type APIHandler struct {
	videos      *VideosHandler
	sessions    *SessionsHandler
	system      *SystemHandler
	maintenance *MaintenanceHandler
	health      *HealthHandler
	metrics     http.Handler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(
	videos *VideosHandler,
	sessions *SessionsHandler,
	system *SystemHandler,
	maintenance *MaintenanceHandler,
	health *HealthHandler,
) *APIHandler {
	return &APIHandler{
		videos:      videos,
		sessions:    sessions,
		system:      system,
		maintenance: maintenance,
		health:      health,
		metrics:     promhttp.Handler(),
	}
}

// Register монтирует маршруты в роутер.
func (h *APIHandler) Register(r chi.Router) {
	// --- Health и метрики ---
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Handle("/metrics", h.metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/info", h.system.GetInfo)

		// --- Видеозаписи ---
		r.Route("/videos", func(r chi.Router) {
			r.Get("/", h.videos.List)
			r.Delete("/", h.videos.ClearAll)
			r.Get("/stats", h.videos.Stats)

			r.Route("/{session_id}", func(r chi.Router) {
				r.Post("/", h.videos.Upload)
				r.Get("/", h.videos.Get)
				r.Delete("/", h.videos.Delete)
				r.Get("/stream", h.videos.Stream)
				r.Get("/export", h.videos.Export)
				r.Put("/transcription", h.videos.AttachTranscription)
				r.Put("/feedback", h.videos.AttachFeedback)
			})
		})

		// --- Сессии ---
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.sessions.Create)

			r.Route("/{session_id}", func(r chi.Router) {
				r.Get("/", h.sessions.Resume)
				r.Post("/responses", h.sessions.AddResponse)
				r.Put("/responses/{question_id}", h.sessions.EditResponse)
				r.Post("/complete", h.sessions.Complete)
				r.Get("/results", h.sessions.Results)
			})
		})

		r.Route("/users/{user_id}", func(r chi.Router) {
			r.Get("/incomplete-session", h.sessions.IncompleteSession)
			r.Post("/recheck", h.sessions.Recheck)
		})

		// --- Обслуживание ---
		r.Post("/maintenance/integrity", h.maintenance.Integrity)
		r.Post("/maintenance/sync", h.maintenance.Sync)
	})
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
