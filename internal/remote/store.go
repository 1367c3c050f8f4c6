// Пакет remote — удалённое хранилище сессий интервью и серверных анализов.
//
// Ядро работает offline-first: удалённое хранилище используется для
// гидратации сессии на другом устройстве, получения анализов и
// best-effort дублирования ответов. Любая ошибка здесь не фатальна
// для вызывающего кода.
package remote

import (
	"context"
	"errors"
	"time"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
)

// Ошибки удалённого хранилища.
var (
	// ErrUnavailable — удалённое хранилище не настроено или недоступно.
	ErrUnavailable = errors.New("удалённое хранилище недоступно")
	// ErrNotFound — сессия отсутствует в удалённом хранилище.
	ErrNotFound = errors.New("сессия не найдена в удалённом хранилище")
)

// Question — вопрос сессии в удалённом хранилище.
type Question struct {
	QuestionID   int
	QuestionText string
}

// Response — ответ, сохранённый в удалённом хранилище.
type Response struct {
	ID              string
	QuestionID      int
	ResponseText    string
	DurationSeconds float64
	AnsweredAt      time.Time
}

// Session — сессия для гидратации на устройстве без локального состояния.
// Questions упорядочены по позиции в сессии.
type Session struct {
	SessionID   string
	UserID      string
	Questions   []Question
	Responses   []Response
	CompletedAt *time.Time
}

// Store — контракт удалённого хранилища.
//
// GetSessionAnalyses и GetSummaryBySession возвращают пустой результат
// (nil, nil), если анализ ещё не готов: это штатная ситуация.
type Store interface {
	// FetchInterviewSession возвращает сессию или ErrNotFound.
	FetchInterviewSession(ctx context.Context, sessionID string) (*Session, error)
	// GetSessionAnalyses возвращает анализы ответов в порядке поступления.
	GetSessionAnalyses(ctx context.Context, sessionID string) ([]model.AnalysisRecord, error)
	// GetSummaryBySession возвращает сводку сессии или nil.
	GetSummaryBySession(ctx context.Context, sessionID string) (*model.AggregateFeedback, error)
	// RegisterSession регистрирует сессию и её вопросы (идемпотентно).
	RegisterSession(ctx context.Context, userID, sessionID string, questionIDs []int) error
	// SaveResponse сохраняет ответ (upsert по сессии и вопросу),
	// возвращает идентификатор ответа.
	SaveResponse(ctx context.Context, userID, sessionID string, resp model.QuestionResponse) (string, error)
	// CompleteSession отмечает сессию завершённой.
	CompleteSession(ctx context.Context, sessionID string) error
}
