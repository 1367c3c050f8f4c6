// Пакет session — менеджер восстановления сессий интервью.
//
// Локальная запись (SQLite) всегда синхронна и является источником
// истины; запись в удалённое хранилище — best-effort с таймаутом,
// неудачные записи дотягивает SyncService.
//
// Операции над одной сессией сериализуются per-key блокировкой
// в порядке вызова; разные сессии обрабатываются параллельно.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/lifecycle"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/keylock"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/remote"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/sessiondb"
)

// Answer — ответ пользователя на вопрос.
type Answer struct {
	QuestionText    string
	AnswerText      string
	DurationSeconds float64
	Hint            model.AnalysisHint
}

// Options — параметры менеджера.
type Options struct {
	// RemoteTimeout — таймаут одной записи в удалённое хранилище
	RemoteTimeout time.Duration
	// LoadTimeout — предел ожидания загрузки сессии (в т.ч. гидратации)
	LoadTimeout time.Duration
}

// Manager управляет жизненным циклом сессий.
type Manager struct {
	db     *sessiondb.Store
	remote remote.Store
	locks  *keylock.Locker
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// NewManager создаёт менеджер сессий.
func NewManager(db *sessiondb.Store, rs remote.Store, opts Options, logger *slog.Logger) *Manager {
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = 10 * time.Second
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}
	return &Manager{
		db:     db,
		remote: rs,
		locks:  keylock.New(),
		opts:   opts,
		logger: logger.With(slog.String("component", "session")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession создаёт активную сессию с заданным набором вопросов.
func (m *Manager) CreateSession(ctx context.Context, userID string, questionIDs []int) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: пустой user_id", ErrInvalidInput)
	}
	if len(questionIDs) == 0 {
		return "", fmt.Errorf("%w: пустой список вопросов", ErrInvalidInput)
	}
	seen := make(map[int]bool, len(questionIDs))
	for _, qid := range questionIDs {
		if seen[qid] {
			return "", fmt.Errorf("%w: вопрос %d указан дважды", ErrInvalidInput, qid)
		}
		seen[qid] = true
	}

	sess := &model.InterviewSession{
		SessionID:   uuid.New().String(),
		UserID:      userID,
		QuestionIDs: append([]int(nil), questionIDs...),
		Responses:   map[int]*model.QuestionResponse{},
		State:       model.SessionActive,
		CreatedAt:   m.now(),
	}
	err := m.db.CreateSession(ctx, sess)
	observe("create", err)
	if err != nil {
		return "", fmt.Errorf("ошибка создания сессии: %w", err)
	}

	m.logger.Info("Сессия создана",
		slog.String("session_id", sess.SessionID),
		slog.String("user_id", userID),
		slog.Int("questions", len(questionIDs)),
	)

	rctx, cancel := context.WithTimeout(ctx, m.opts.RemoteTimeout)
	defer cancel()
	rerr := m.remote.RegisterSession(rctx, userID, sess.SessionID, sess.QuestionIDs)
	observeRemote("register", rerr)
	m.logRemote("регистрация сессии", sess.SessionID, rerr)

	return sess.SessionID, nil
}

// AddResponse сохраняет ответ на вопрос. Ответ пишется один раз:
// повторный ответ на тот же вопрос отклоняется с ErrAlreadyAnswered.
func (m *Manager) AddResponse(ctx context.Context, sessionID string, questionID int, ans Answer) (*model.QuestionResponse, error) {
	resp, err := m.addResponse(ctx, sessionID, questionID, ans)
	observe("answer", err)
	return resp, err
}

func (m *Manager) addResponse(ctx context.Context, sessionID string, questionID int, ans Answer) (*model.QuestionResponse, error) {
	if err := validateAnswer(ans); err != nil {
		return nil, err
	}

	unlock, err := m.locks.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.Require(sess.State, lifecycle.OpAnswer); err != nil {
		return nil, err
	}
	if !sess.HasQuestion(questionID) {
		return nil, fmt.Errorf("%w: вопрос %d", ErrUnknownQuestion, questionID)
	}
	if _, ok := sess.Responses[questionID]; ok {
		return nil, fmt.Errorf("%w: вопрос %d", ErrAlreadyAnswered, questionID)
	}

	resp := model.QuestionResponse{
		QuestionID:      questionID,
		QuestionText:    ans.QuestionText,
		AnswerText:      ans.AnswerText,
		DurationSeconds: ans.DurationSeconds,
		AnalysisHint:    ans.Hint,
		AnsweredAt:      m.now(),
	}
	if err := m.db.InsertResponse(ctx, sessionID, resp); err != nil {
		if errors.Is(err, sessiondb.ErrResponseExists) {
			return nil, fmt.Errorf("%w: вопрос %d", ErrAlreadyAnswered, questionID)
		}
		return nil, fmt.Errorf("ошибка сохранения ответа: %w", err)
	}

	m.logger.Info("Ответ сохранён",
		slog.String("session_id", sessionID),
		slog.Int("question_id", questionID),
		slog.Int("answered", len(sess.Responses)+1),
		slog.Int("total", len(sess.QuestionIDs)),
	)

	m.pushResponse(ctx, sess.UserID, sessionID, &resp)
	return &resp, nil
}

// EditResponse заменяет существующий ответ. Это единственный способ
// изменить ответ; после синхронизации сессии правки запрещены.
func (m *Manager) EditResponse(ctx context.Context, sessionID string, questionID int, ans Answer) (*model.QuestionResponse, error) {
	resp, err := m.editResponse(ctx, sessionID, questionID, ans)
	observe("edit", err)
	return resp, err
}

func (m *Manager) editResponse(ctx context.Context, sessionID string, questionID int, ans Answer) (*model.QuestionResponse, error) {
	if err := validateAnswer(ans); err != nil {
		return nil, err
	}

	unlock, err := m.locks.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.State == model.SessionSynced {
		return nil, ErrSessionSynced
	}
	if err := lifecycle.Require(sess.State, lifecycle.OpEdit); err != nil {
		return nil, err
	}
	if !sess.HasQuestion(questionID) {
		return nil, fmt.Errorf("%w: вопрос %d", ErrUnknownQuestion, questionID)
	}
	prev, ok := sess.Responses[questionID]
	if !ok {
		return nil, fmt.Errorf("%w: вопрос %d", ErrNotAnswered, questionID)
	}

	resp := *prev
	if ans.QuestionText != "" {
		resp.QuestionText = ans.QuestionText
	}
	resp.AnswerText = ans.AnswerText
	resp.DurationSeconds = ans.DurationSeconds
	resp.AnalysisHint = ans.Hint
	resp.AnsweredAt = m.now()

	if err := m.db.UpdateResponse(ctx, sessionID, resp); err != nil {
		return nil, fmt.Errorf("ошибка обновления ответа: %w", err)
	}

	m.logger.Info("Ответ изменён",
		slog.String("session_id", sessionID),
		slog.Int("question_id", questionID),
	)

	m.pushResponse(ctx, sess.UserID, sessionID, &resp)
	return &resp, nil
}

// CompleteSession переводит сессию в complete и пытается подтвердить
// завершение в удалённом хранилище (тогда сессия становится synced).
// Повторный вызов для complete сессии повторяет попытку синхронизации.
func (m *Manager) CompleteSession(ctx context.Context, sessionID string) (*model.InterviewSession, error) {
	sess, err := m.completeSession(ctx, sessionID)
	observe("complete", err)
	return sess, err
}

func (m *Manager) completeSession(ctx context.Context, sessionID string) (*model.InterviewSession, error) {
	unlock, err := m.locks.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch sess.State {
	case model.SessionSynced:
		return sess, nil
	case model.SessionActive:
		if missing := sess.MissingQuestions(); len(missing) > 0 {
			return nil, &IncompleteError{Missing: missing}
		}
		next, err := lifecycle.Transition(sess.State, model.SessionComplete)
		if err != nil {
			return nil, err
		}
		now := m.now()
		if err := m.db.SetState(ctx, sessionID, next, now); err != nil {
			return nil, fmt.Errorf("ошибка завершения сессии: %w", err)
		}
		sess.State = next
		sess.CompletedAt = &now
		m.logger.Info("Сессия завершена", slog.String("session_id", sessionID))
	}

	if err := m.syncCompletion(ctx, sess); err != nil {
		m.logRemote("подтверждение завершения", sessionID, err)
	}
	return sess, nil
}

// ResumeSession возвращает сессию из локального хранилища, а при её
// отсутствии гидратирует из удалённого. Ожидание ограничено LoadTimeout.
func (m *Manager) ResumeSession(ctx context.Context, sessionID string) (*model.InterviewSession, error) {
	sess, err := m.resumeSession(ctx, sessionID)
	observe("resume", err)
	return sess, err
}

func (m *Manager) resumeSession(ctx context.Context, sessionID string) (*model.InterviewSession, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.LoadTimeout)
	defer cancel()

	unlock, err := m.locks.Lock(ctx, sessionID)
	if err != nil {
		return nil, m.timeoutErr(ctx, err)
	}
	defer unlock()

	sess, err := m.db.GetSession(ctx, sessionID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, sessiondb.ErrNotFound) {
		return nil, m.timeoutErr(ctx, fmt.Errorf("ошибка чтения сессии: %w", err))
	}

	fetched, err := m.remote.FetchInterviewSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) || errors.Is(err, remote.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, m.timeoutErr(ctx, fmt.Errorf("ошибка загрузки сессии из удалённого хранилища: %w", err))
	}

	sess = m.hydrate(fetched)
	if err := m.db.CreateSession(ctx, sess); err != nil {
		if errors.Is(err, sessiondb.ErrSessionExists) {
			return m.db.GetSession(ctx, sessionID)
		}
		return nil, fmt.Errorf("ошибка сохранения гидратированной сессии: %w", err)
	}

	m.logger.Info("Сессия восстановлена из удалённого хранилища",
		slog.String("session_id", sessionID),
		slog.String("state", string(sess.State)),
		slog.Int("responses", len(sess.Responses)),
	)
	return sess, nil
}

// FindIncompleteSession ищет активную сессию пользователя только
// в локальном хранилище, без сетевых обращений.
func (m *Manager) FindIncompleteSession(ctx context.Context, userID string) (string, bool, error) {
	return m.db.FindIncomplete(ctx, userID)
}

// hydrate строит локальную сессию из удалённой. Сессия, завершение
// которой подтверждено сервером, сразу считается синхронизированной.
func (m *Manager) hydrate(rs *remote.Session) *model.InterviewSession {
	texts := make(map[int]string, len(rs.Questions))
	sess := &model.InterviewSession{
		SessionID: rs.SessionID,
		UserID:    rs.UserID,
		Responses: make(map[int]*model.QuestionResponse, len(rs.Responses)),
		State:     model.SessionActive,
		CreatedAt: m.now(),
	}
	for _, q := range rs.Questions {
		sess.QuestionIDs = append(sess.QuestionIDs, q.QuestionID)
		texts[q.QuestionID] = q.QuestionText
	}
	for _, r := range rs.Responses {
		if !sess.HasQuestion(r.QuestionID) {
			continue
		}
		sess.Responses[r.QuestionID] = &model.QuestionResponse{
			ResponseID:      r.ID,
			QuestionID:      r.QuestionID,
			QuestionText:    texts[r.QuestionID],
			AnswerText:      r.ResponseText,
			DurationSeconds: r.DurationSeconds,
			AnsweredAt:      r.AnsweredAt.UTC(),
		}
	}
	if rs.CompletedAt != nil {
		completed := rs.CompletedAt.UTC()
		synced := m.now()
		sess.State = model.SessionSynced
		sess.CompletedAt = &completed
		sess.SyncedAt = &synced
	}
	return sess
}

// load читает сессию под уже взятой блокировкой.
func (m *Manager) load(ctx context.Context, sessionID string) (*model.InterviewSession, error) {
	sess, err := m.db.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sessiondb.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("ошибка чтения сессии: %w", err)
	}
	return sess, nil
}

func (m *Manager) timeoutErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrLoadTimeout, err)
	}
	return err
}

func (m *Manager) logRemote(action, sessionID string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, remote.ErrUnavailable):
		m.logger.Debug("Удалённое хранилище недоступно, работаем локально",
			slog.String("action", action),
			slog.String("session_id", sessionID),
		)
	default:
		m.logger.Warn("Ошибка записи в удалённое хранилище, повтор в фоне",
			slog.String("action", action),
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}

func validateAnswer(ans Answer) error {
	if ans.DurationSeconds < 0 {
		return fmt.Errorf("%w: отрицательная длительность ответа", ErrInvalidInput)
	}
	return nil
}
