// Пакет sessiondb — локальное хранилище состояния сессий интервью (SQLite).
//
// Хранилище не проверяет переходы жизненного цикла: это делает
// session.Manager. Здесь только персистентность и ограничения
// уникальности (один ответ на вопрос сессии).
package sessiondb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
)

// Ошибки хранилища сессий.
var (
	ErrNotFound       = errors.New("сессия не найдена")
	ErrSessionExists  = errors.New("сессия уже существует")
	ErrResponseExists = errors.New("ответ на вопрос уже сохранён")
	ErrNoResponse     = errors.New("ответ на вопрос не найден")
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id   TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	question_ids TEXT NOT NULL,
	state        TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	completed_at INTEGER,
	synced_at    INTEGER
);

CREATE INDEX IF NOT EXISTS idx_sessions_user_state ON sessions (user_id, state);

CREATE TABLE IF NOT EXISTS responses (
	session_id        TEXT NOT NULL REFERENCES sessions (session_id) ON DELETE CASCADE,
	question_id       INTEGER NOT NULL,
	response_id       TEXT NOT NULL DEFAULT '',
	question_text     TEXT NOT NULL DEFAULT '',
	answer_text       TEXT NOT NULL DEFAULT '',
	duration_seconds  REAL NOT NULL DEFAULT 0,
	confidence        REAL NOT NULL DEFAULT 0,
	speaking_rate     REAL NOT NULL DEFAULT 0,
	filler_word_count INTEGER NOT NULL DEFAULT 0,
	answered_at       INTEGER NOT NULL,
	remote_synced     INTEGER NOT NULL DEFAULT 0,
	seq               INTEGER NOT NULL,
	PRIMARY KEY (session_id, question_id)
);
`

// PendingResponse — ответ, ещё не подтверждённый удалённым хранилищем.
type PendingResponse struct {
	SessionID string
	UserID    string
	Response  model.QuestionResponse
}

// Store — локальное хранилище сессий.
type Store struct {
	db *sql.DB
}

// Open открывает (или создаёт) базу SQLite и применяет схему.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы сессий: %w", err)
	}
	// SQLite допускает одного писателя; единственное соединение
	// исключает SQLITE_BUSY между горутинами процесса.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка подключения к базе сессий: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка создания схемы базы сессий: %w", err)
	}
	return &Store{db: db}, nil
}

// Close закрывает базу.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping проверяет доступность базы.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateSession сохраняет новую сессию вместе с ответами (если есть).
func (s *Store) CreateSession(ctx context.Context, sess *model.InterviewSession) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		qids, err := json.Marshal(sess.QuestionIDs)
		if err != nil {
			return fmt.Errorf("ошибка сериализации вопросов: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sessions (session_id, user_id, question_ids, state, created_at, completed_at, synced_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sess.SessionID, sess.UserID, string(qids), string(sess.State),
			sess.CreatedAt.UnixNano(), nullTime(sess.CompletedAt), nullTime(sess.SyncedAt))
		if err != nil {
			if isConstraint(err) {
				return ErrSessionExists
			}
			return fmt.Errorf("ошибка сохранения сессии: %w", err)
		}

		// Порядок вставки ответов — порядок вопросов сессии
		for _, r := range sess.OrderedResponses() {
			if err := insertResponse(ctx, tx, sess.SessionID, r, r.ResponseID != ""); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetSession читает сессию с ответами или возвращает ErrNotFound.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*model.InterviewSession, error) {
	var (
		sess        model.InterviewSession
		qids, state string
		createdAt   int64
		completedAt sql.NullInt64
		syncedAt    sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, question_ids, state, created_at, completed_at, synced_at
		 FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&sess.SessionID, &sess.UserID, &qids, &state, &createdAt, &completedAt, &syncedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения сессии: %w", err)
	}
	if err := json.Unmarshal([]byte(qids), &sess.QuestionIDs); err != nil {
		return nil, fmt.Errorf("повреждён список вопросов сессии %s: %w", sessionID, err)
	}
	sess.State = model.SessionState(state)
	sess.CreatedAt = time.Unix(0, createdAt).UTC()
	sess.CompletedAt = fromNull(completedAt)
	sess.SyncedAt = fromNull(syncedAt)

	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, response_id, question_text, answer_text, duration_seconds,
		        confidence, speaking_rate, filler_word_count, answered_at
		 FROM responses WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответов: %w", err)
	}
	defer rows.Close()

	sess.Responses = make(map[int]*model.QuestionResponse)
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		sess.Responses[r.QuestionID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации ответов: %w", err)
	}
	return &sess, nil
}

// InsertResponse добавляет ответ. Повторный ответ на тот же вопрос
// возвращает ErrResponseExists и не меняет сохранённый.
func (s *Store) InsertResponse(ctx context.Context, sessionID string, r model.QuestionResponse) error {
	return insertResponse(ctx, s.db, sessionID, r, false)
}

// UpdateResponse заменяет текст существующего ответа и помечает его
// для повторной отправки в удалённое хранилище.
func (s *Store) UpdateResponse(ctx context.Context, sessionID string, r model.QuestionResponse) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE responses
		 SET answer_text = ?, duration_seconds = ?, confidence = ?, speaking_rate = ?,
		     filler_word_count = ?, answered_at = ?, remote_synced = 0
		 WHERE session_id = ? AND question_id = ?`,
		r.AnswerText, r.DurationSeconds, r.AnalysisHint.Confidence, r.AnalysisHint.SpeakingRate,
		r.AnalysisHint.FillerWordCount, r.AnsweredAt.UnixNano(), sessionID, r.QuestionID)
	if err != nil {
		return fmt.Errorf("ошибка обновления ответа: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoResponse
	}
	return nil
}

// MarkResponseSynced сохраняет идентификатор, выданный удалённым хранилищем.
func (s *Store) MarkResponseSynced(ctx context.Context, sessionID string, questionID int, responseID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE responses SET response_id = ?, remote_synced = 1
		 WHERE session_id = ? AND question_id = ?`,
		responseID, sessionID, questionID)
	if err != nil {
		return fmt.Errorf("ошибка отметки синхронизации ответа: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoResponse
	}
	return nil
}

// SetState меняет состояние сессии; at записывается в completed_at
// или synced_at в зависимости от нового состояния.
func (s *Store) SetState(ctx context.Context, sessionID string, state model.SessionState, at time.Time) error {
	query := `UPDATE sessions SET state = ? WHERE session_id = ?`
	args := []any{string(state), sessionID}
	switch state {
	case model.SessionComplete:
		query = `UPDATE sessions SET state = ?, completed_at = ? WHERE session_id = ?`
		args = []any{string(state), at.UnixNano(), sessionID}
	case model.SessionSynced:
		query = `UPDATE sessions SET state = ?, synced_at = ? WHERE session_id = ?`
		args = []any{string(state), at.UnixNano(), sessionID}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка смены состояния сессии: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindIncomplete возвращает самую свежую активную сессию пользователя,
// в которой есть хотя бы один ответ. Сессия без ответов возобновлять
// нечего: пользователь просто начнёт новую.
func (s *Store) FindIncomplete(ctx context.Context, userID string) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id FROM sessions
		 WHERE user_id = ? AND state = ?
		   AND EXISTS (SELECT 1 FROM responses r WHERE r.session_id = sessions.session_id)
		 ORDER BY created_at DESC, session_id LIMIT 1`,
		userID, string(model.SessionActive),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("ошибка поиска незавершённой сессии: %w", err)
	}
	return id, true, nil
}

// ListByState возвращает идентификаторы сессий в состоянии state,
// от старых к новым.
func (s *Store) ListByState(ctx context.Context, state model.SessionState) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM sessions WHERE state = ? ORDER BY created_at, session_id`,
		string(state))
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки сессий: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка чтения сессии: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListPendingResponses возвращает ответы, не подтверждённые удалённым
// хранилищем, в порядке их добавления.
func (s *Store) ListPendingResponses(ctx context.Context, limit int) ([]PendingResponse, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.session_id, s.user_id, r.question_id, r.response_id, r.question_text, r.answer_text,
		        r.duration_seconds, r.confidence, r.speaking_rate, r.filler_word_count, r.answered_at
		 FROM responses r JOIN sessions s ON s.session_id = r.session_id
		 WHERE r.remote_synced = 0
		 ORDER BY s.created_at, r.seq LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки ответов для синхронизации: %w", err)
	}
	defer rows.Close()

	var result []PendingResponse
	for rows.Next() {
		var (
			p          PendingResponse
			answeredAt int64
		)
		r := &p.Response
		if err := rows.Scan(&p.SessionID, &p.UserID, &r.QuestionID, &r.ResponseID, &r.QuestionText,
			&r.AnswerText, &r.DurationSeconds, &r.AnalysisHint.Confidence, &r.AnalysisHint.SpeakingRate,
			&r.AnalysisHint.FillerWordCount, &answeredAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
		}
		r.AnsweredAt = time.Unix(0, answeredAt).UTC()
		result = append(result, p)
	}
	return result, rows.Err()
}

// CountPendingResponses — число ответов, ожидающих синхронизации.
func (s *Store) CountPendingResponses(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM responses WHERE session_id = ? AND remote_synced = 0`, sessionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта ответов: %w", err)
	}
	return n, nil
}

// DeleteSyncedBefore удаляет синхронизированные сессии старше cutoff.
func (s *Store) DeleteSyncedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE state = ? AND synced_at IS NOT NULL AND synced_at < ?`,
		string(model.SessionSynced), cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления синхронизированных сессий: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// --- Вспомогательные функции ---

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func insertResponse(ctx context.Context, db execer, sessionID string, r model.QuestionResponse, synced bool) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO responses (session_id, question_id, response_id, question_text, answer_text,
		                        duration_seconds, confidence, speaking_rate, filler_word_count,
		                        answered_at, remote_synced, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		         (SELECT COALESCE(MAX(seq), 0) + 1 FROM responses WHERE session_id = ?))`,
		sessionID, r.QuestionID, r.ResponseID, r.QuestionText, r.AnswerText,
		r.DurationSeconds, r.AnalysisHint.Confidence, r.AnalysisHint.SpeakingRate,
		r.AnalysisHint.FillerWordCount, r.AnsweredAt.UnixNano(), boolToInt(synced), sessionID)
	if err != nil {
		if isConstraint(err) {
			return ErrResponseExists
		}
		return fmt.Errorf("ошибка сохранения ответа: %w", err)
	}
	return nil
}

func scanResponse(row scanner) (*model.QuestionResponse, error) {
	var (
		r          model.QuestionResponse
		answeredAt int64
	)
	if err := row.Scan(&r.QuestionID, &r.ResponseID, &r.QuestionText, &r.AnswerText, &r.DurationSeconds,
		&r.AnalysisHint.Confidence, &r.AnalysisHint.SpeakingRate, &r.AnalysisHint.FillerWordCount,
		&answeredAt); err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}
	r.AnsweredAt = time.Unix(0, answeredAt).UTC()
	return &r, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // откат после коммита — no-op

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// isConstraint проверяет нарушение PRIMARY KEY / UNIQUE.
func isConstraint(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
