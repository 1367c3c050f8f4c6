// sessions.go — HTTP handlers сессий интервью.
// Создание, ответы, завершение, восстановление и результаты.
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
	"github.com/nirajmehta960/amplify-interview-sub001/internal/service"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/session"
)

// SessionsHandler — обработчик endpoints сессий.
type SessionsHandler struct {
	manager *session.Manager
	results *service.ResultsService
	watcher *session.Watcher
}

// NewSessionsHandler создаёт обработчик endpoints сессий.
func NewSessionsHandler(manager *session.Manager, results *service.ResultsService, watcher *session.Watcher) *SessionsHandler {
	return &SessionsHandler{manager: manager, results: results, watcher: watcher}
}

type createSessionRequest struct {
	UserID      string `json:"user_id"`
	QuestionIDs []int  `json:"question_ids"`
}

type answerRequest struct {
	QuestionID      int                `json:"question_id"`
	QuestionText    string             `json:"question_text"`
	AnswerText      string             `json:"answer_text"`
	DurationSeconds float64            `json:"duration_seconds"`
	AnalysisHint    model.AnalysisHint `json:"analysis_hint"`
}

func (a answerRequest) toAnswer() session.Answer {
	return session.Answer{
		QuestionText:    a.QuestionText,
		AnswerText:      a.AnswerText,
		DurationSeconds: a.DurationSeconds,
		Hint:            a.AnalysisHint,
	}
}

// sessionResponse — сессия с ответами в порядке вопросов.
type sessionResponse struct {
	SessionID   string                   `json:"session_id"`
	UserID      string                   `json:"user_id"`
	QuestionIDs []int                    `json:"question_ids"`
	State       model.SessionState       `json:"state"`
	Responses   []model.QuestionResponse `json:"responses"`
	Missing     []int                    `json:"missing"`
	CreatedAt   time.Time                `json:"created_at"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
	SyncedAt    *time.Time               `json:"synced_at,omitempty"`
}

func toSessionResponse(s *model.InterviewSession) sessionResponse {
	missing := s.MissingQuestions()
	if missing == nil {
		missing = []int{}
	}
	return sessionResponse{
		SessionID:   s.SessionID,
		UserID:      s.UserID,
		QuestionIDs: s.QuestionIDs,
		State:       s.State,
		Responses:   s.OrderedResponses(),
		Missing:     missing,
		CreatedAt:   s.CreatedAt,
		CompletedAt: s.CompletedAt,
		SyncedAt:    s.SyncedAt,
	}
}

// Create обрабатывает POST /api/v1/sessions.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	id, err := h.manager.CreateSession(r.Context(), req.UserID, req.QuestionIDs)
	if err != nil {
		errors.FromError(w, err)
		return
	}

	sess, err := h.manager.ResumeSession(r.Context(), id)
	if err != nil {
		errors.FromError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// Resume обрабатывает GET /api/v1/sessions/{session_id}.
// Отсутствующая локально сессия восстанавливается из удалённого хранилища.
func (h *SessionsHandler) Resume(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.ResumeSession(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		errors.FromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// AddResponse обрабатывает POST /api/v1/sessions/{session_id}/responses.
func (h *SessionsHandler) AddResponse(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	resp, err := h.manager.AddResponse(r.Context(), chi.URLParam(r, "session_id"), req.QuestionID, req.toAnswer())
	if err != nil {
		errors.FromError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// EditResponse обрабатывает PUT /api/v1/sessions/{session_id}/responses/{question_id}.
func (h *SessionsHandler) EditResponse(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	questionID, err := strconv.Atoi(chi.URLParam(r, "question_id"))
	if err != nil {
		errors.ValidationError(w, "question_id должен быть целым числом")
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	resp, err := h.manager.EditResponse(r.Context(), sessionID, questionID, req.toAnswer())
	if err != nil {
		errors.FromError(w, err)
		return
	}
	h.results.Invalidate(sessionID)
	writeJSON(w, http.StatusOK, resp)
}

// Complete обрабатывает POST /api/v1/sessions/{session_id}/complete.
func (h *SessionsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.CompleteSession(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		errors.FromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// Results обрабатывает GET /api/v1/sessions/{session_id}/results.
func (h *SessionsHandler) Results(w http.ResponseWriter, r *http.Request) {
	res, err := h.results.Results(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		errors.FromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// IncompleteSession обрабатывает GET /api/v1/users/{user_id}/incomplete-session.
// Проверяется только локальное хранилище.
func (h *SessionsHandler) IncompleteSession(w http.ResponseWriter, r *http.Request) {
	id, found, err := h.manager.FindIncompleteSession(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		errors.FromError(w, err)
		return
	}
	writeIncomplete(w, id, found)
}

// Recheck обрабатывает POST /api/v1/users/{user_id}/recheck.
// Повторяет поиск незавершённой сессии и уведомляет подписчиков.
func (h *SessionsHandler) Recheck(w http.ResponseWriter, r *http.Request) {
	id, found, err := h.watcher.Recheck(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		errors.FromError(w, err)
		return
	}
	writeIncomplete(w, id, found)
}

func writeIncomplete(w http.ResponseWriter, id string, found bool) {
	resp := map[string]any{"found": found}
	if found {
		resp["session_id"] = id
	}
	writeJSON(w, http.StatusOK, resp)
}
