// videos.go — HTTP handlers хранилища видеозаписей.
// Запись, чтение, воспроизведение, выгрузка, вложения и удаление.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/api/errors"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/media/format"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/service"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/blobstore"
)

// Заголовки запроса записи видео.
const (
	headerDuration     = "X-Duration-Seconds"
	headerHasAudio     = "X-Has-Audio"
	headerRecordedAt   = "X-Recorded-At"
	headerConfirmClear = "X-Confirm-Clear"
)

// VideosHandler — обработчик endpoints видеозаписей.
type VideosHandler struct {
	store  *blobstore.Store
	export *service.ExportService
}

// NewVideosHandler создаёт обработчик endpoints видеозаписей.
func NewVideosHandler(store *blobstore.Store, export *service.ExportService) *VideosHandler {
	return &VideosHandler{store: store, export: export}
}

// videoResponse — публичное представление метаданных записи.
type videoResponse struct {
	SessionID       string               `json:"session_id"`
	Timestamp       time.Time            `json:"timestamp"`
	DurationSeconds float64              `json:"duration_seconds"`
	DeclaredFormat  string               `json:"declared_format"`
	SizeBytes       int64                `json:"size_bytes"`
	Size            string               `json:"size"`
	HasAudio        bool                 `json:"has_audio"`
	Transcription   *model.Transcription `json:"transcription,omitempty"`
	AIFeedback      *model.AIFeedback    `json:"ai_feedback,omitempty"`
}

func toVideoResponse(m *model.VideoMetadata) videoResponse {
	return videoResponse{
		SessionID:       m.SessionID,
		Timestamp:       m.Timestamp,
		DurationSeconds: m.DurationSeconds,
		DeclaredFormat:  m.DeclaredFormat,
		SizeBytes:       m.SizeBytes,
		Size:            blobstore.FormatBytes(m.SizeBytes),
		HasAudio:        m.HasAudio,
		Transcription:   m.Transcription,
		AIFeedback:      m.AIFeedback,
	}
}

// Upload обрабатывает POST /api/v1/videos/{session_id}.
// Тело запроса — сырые данные записи, Content-Type — заявленный формат.
// Content-Length обязателен: квота резервируется до чтения тела.
func (h *VideosHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	if r.ContentLength < 0 {
		errors.WriteError(w, http.StatusLengthRequired, errors.CodeValidationError, "Заголовок Content-Length обязателен")
		return
	}

	meta := blobstore.Metadata{
		Timestamp:      time.Now().UTC(),
		DeclaredFormat: r.Header.Get("Content-Type"),
	}

	if v := r.Header.Get(headerDuration); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil || d < 0 {
			errors.ValidationError(w, fmt.Sprintf("Некорректный %s: %q", headerDuration, v))
			return
		}
		meta.DurationSeconds = d
	}
	if v := r.Header.Get(headerHasAudio); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errors.ValidationError(w, fmt.Sprintf("Некорректный %s: %q", headerHasAudio, v))
			return
		}
		meta.HasAudio = b
	}
	if v := r.Header.Get(headerRecordedAt); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			errors.ValidationError(w, fmt.Sprintf("Некорректный %s: %q", headerRecordedAt, v))
			return
		}
		meta.Timestamp = ts.UTC()
	}

	saved, err := h.store.Put(r.Context(), sessionID, r.Body, r.ContentLength, meta)
	if err != nil {
		errors.FromError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toVideoResponse(saved))
}

// List обрабатывает GET /api/v1/videos.
func (h *VideosHandler) List(w http.ResponseWriter, _ *http.Request) {
	items := h.store.List()
	resp := make([]videoResponse, 0, len(items))
	for _, m := range items {
		resp = append(resp, toVideoResponse(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": resp,
		"total": len(resp),
	})
}

// Stats обрабатывает GET /api/v1/videos/stats.
func (h *VideosHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	stats := h.store.Stats()
	used, capacity := h.store.Usage()
	available := capacity - used
	if available < 0 {
		available = 0
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":           stats.Count,
		"total_bytes":     stats.TotalBytes,
		"average_bytes":   stats.AverageBytes,
		"oldest":          stats.Oldest,
		"newest":          stats.Newest,
		"capacity_bytes":  capacity,
		"used_bytes":      used,
		"available_bytes": available,
		"used":            blobstore.FormatBytes(used),
		"capacity":        blobstore.FormatBytes(capacity),
	})
}

// Get обрабатывает GET /api/v1/videos/{session_id}.
func (h *VideosHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	meta := h.store.Metadata(sessionID)
	if meta == nil {
		errors.NotFound(w, fmt.Sprintf("Запись сессии %s не найдена", sessionID))
		return
	}
	writeJSON(w, http.StatusOK, toVideoResponse(meta))
}

// Stream обрабатывает GET /api/v1/videos/{session_id}/stream.
// Поддерживает Range requests через http.ServeContent.
func (h *VideosHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	handle, err := h.store.OpenPlayback(r.Context(), sessionID)
	if err != nil {
		errors.FromError(w, err)
		return
	}
	defer handle.Release()

	f := handle.Format()
	w.Header().Set("Content-Type", f.MIMEType())
	w.Header().Set("ETag", strconv.Quote(handle.Metadata().Checksum))
	http.ServeContent(w, r, format.ExportFilename(sessionID, f), handle.ModTime(), handle)
}

// Export обрабатывает GET /api/v1/videos/{session_id}/export.
// canonical=true — конвертировать в MP4, если запись в другом формате.
func (h *VideosHandler) Export(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	canonical := false
	if v := r.URL.Query().Get("canonical"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errors.ValidationError(w, fmt.Sprintf("Некорректный параметр canonical: %q", v))
			return
		}
		canonical = b
	}

	res, err := h.export.Export(r.Context(), sessionID, canonical)
	if err != nil {
		errors.FromError(w, err)
		return
	}

	w.Header().Set("Content-Type", res.Format.MIMEType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.SuggestedFilename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Blob)))
	w.Header().Set("X-Export-Converted", strconv.FormatBool(res.Converted))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Blob)
}

// AttachTranscription обрабатывает PUT /api/v1/videos/{session_id}/transcription.
func (h *VideosHandler) AttachTranscription(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	var req model.Transcription
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}
	if err := h.store.AttachTranscription(r.Context(), sessionID, req); err != nil {
		errors.FromError(w, err)
		return
	}
	h.Get(w, r)
}

// AttachFeedback обрабатывает PUT /api/v1/videos/{session_id}/feedback.
func (h *VideosHandler) AttachFeedback(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	var req model.AIFeedback
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}
	if err := h.store.AttachFeedback(r.Context(), sessionID, req); err != nil {
		errors.FromError(w, err)
		return
	}
	h.Get(w, r)
}

// Delete обрабатывает DELETE /api/v1/videos/{session_id}.
// Удаление отсутствующей записи успешно.
func (h *VideosHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "session_id")); err != nil {
		errors.FromError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearAll обрабатывает DELETE /api/v1/videos.
// Требует заголовок X-Confirm-Clear: clear-all-videos.
func (h *VideosHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	removed, err := h.store.ClearAll(r.Context(), r.Header.Get(headerConfirmClear))
	if err != nil {
		errors.FromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
