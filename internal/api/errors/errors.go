// Пакет errors — конструкторы стандартных ошибок API.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // конфликт имени со stdlib

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/lifecycle"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/session"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/blobstore"
)

// Коды ошибок API.
const (
	CodeValidationError      = "VALIDATION_ERROR"
	CodeNotFound             = "NOT_FOUND"
	CodeAlreadyExists        = "ALREADY_EXISTS"
	CodeAlreadyAnswered      = "ALREADY_ANSWERED"
	CodeNotAnswered          = "NOT_ANSWERED"
	CodeSessionSynced        = "SESSION_SYNCED"
	CodeUnknownQuestion      = "UNKNOWN_QUESTION"
	CodeIncompleteResponses  = "INCOMPLETE_RESPONSES"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	CodeSizeMismatch         = "SIZE_MISMATCH"
	CodeQuotaExceeded        = "QUOTA_EXCEEDED"
	CodeLoadTimeout          = "LOAD_TIMEOUT"
	CodeIntegrityInProgress  = "INTEGRITY_IN_PROGRESS"
	CodeInternalError        = "INTERNAL_ERROR"
	CodeRequestCanceled      = "REQUEST_CANCELED"
)

const (
	// retryAfterSeconds — значение Retry-After для LOAD_TIMEOUT
	retryAfterSeconds = 5
	// statusClientClosedRequest — клиент закрыл соединение до ответа
	statusClientClosedRequest = 499
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Missing []int  `json:"missing,omitempty"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	writeBody(w, statusCode, errorDetail{Code: code, Message: message})
}

func writeBody(w http.ResponseWriter, statusCode int, detail errorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: detail})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// ConfirmationRequired — 409 массовое удаление без подтверждения.
func ConfirmationRequired(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConfirmationRequired, message)
}

// LoadTimeout — 503 ресурс не загружен за отведённое время.
// Клиенту предлагается повторить запрос через Retry-After.
func LoadTimeout(w http.ResponseWriter, message string) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	WriteError(w, http.StatusServiceUnavailable, CodeLoadTimeout, message)
}

// IntegrityInProgress — 409 проверка целостности уже выполняется.
func IntegrityInProgress(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeIntegrityInProgress, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// FromError записывает ответ по доменной ошибке.
// Неизвестные ошибки отдаются как 500 без деталей.
func FromError(w http.ResponseWriter, err error) {
	var incomplete *session.IncompleteError
	var transition *lifecycle.TransitionError

	switch {
	case stderrors.As(err, &incomplete):
		writeBody(w, http.StatusUnprocessableEntity, errorDetail{
			Code:    CodeIncompleteResponses,
			Message: err.Error(),
			Missing: incomplete.Missing,
		})
	case stderrors.As(err, &transition):
		WriteError(w, http.StatusConflict, transition.Code, transition.Message)

	case stderrors.Is(err, blobstore.ErrQuotaExceeded):
		WriteError(w, http.StatusInsufficientStorage, CodeQuotaExceeded, err.Error())
	case stderrors.Is(err, blobstore.ErrAlreadyExists):
		WriteError(w, http.StatusConflict, CodeAlreadyExists, err.Error())
	case stderrors.Is(err, blobstore.ErrNotFound), stderrors.Is(err, session.ErrSessionNotFound):
		NotFound(w, err.Error())
	case stderrors.Is(err, blobstore.ErrClearNotConfirmed):
		ConfirmationRequired(w, err.Error())
	case stderrors.Is(err, blobstore.ErrSizeMismatch):
		WriteError(w, http.StatusBadRequest, CodeSizeMismatch, err.Error())
	case stderrors.Is(err, blobstore.ErrInvalidSessionID), stderrors.Is(err, session.ErrInvalidInput):
		ValidationError(w, err.Error())
	case stderrors.Is(err, blobstore.ErrLoadTimeout), stderrors.Is(err, session.ErrLoadTimeout):
		LoadTimeout(w, err.Error())

	case stderrors.Is(err, session.ErrAlreadyAnswered):
		WriteError(w, http.StatusConflict, CodeAlreadyAnswered, err.Error())
	case stderrors.Is(err, session.ErrNotAnswered):
		WriteError(w, http.StatusConflict, CodeNotAnswered, err.Error())
	case stderrors.Is(err, session.ErrSessionSynced):
		WriteError(w, http.StatusConflict, CodeSessionSynced, err.Error())
	case stderrors.Is(err, session.ErrUnknownQuestion):
		WriteError(w, http.StatusUnprocessableEntity, CodeUnknownQuestion, err.Error())
	case stderrors.Is(err, lifecycle.ErrInvalidTransition):
		WriteError(w, http.StatusConflict, CodeInvalidTransition, err.Error())

	case stderrors.Is(err, context.Canceled):
		WriteError(w, statusClientClosedRequest, CodeRequestCanceled, "Запрос отменён")
	case stderrors.Is(err, context.DeadlineExceeded):
		LoadTimeout(w, "Превышено время ожидания")
	default:
		InternalError(w, "Внутренняя ошибка сервера")
	}
}
