package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner позволяет выполнять операции в транзакции.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner создаёт TxRunner для управления транзакциями.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx выполняет fn внутри транзакции.
// При ошибке fn транзакция откатывается, при успехе коммитится.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

const analysisColumns = `id::text, interview_response_id::text, question_id, overall_score,
	strengths, improvements, communication_scores, content_scores,
	actionable_feedback, improved_example, confidence_score, filler_words`

// pgStore — реализация Store через pgx.
type pgStore struct {
	db DBTX
	tx *TxRunner
}

// NewPostgresStore создаёт Store поверх пула PostgreSQL.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{db: pool, tx: NewTxRunner(pool)}
}

// FetchInterviewSession читает сессию с вопросами и ответами.
// Если вопросы не были зарегистрированы, список вопросов
// восстанавливается по ответам.
func (s *pgStore) FetchInterviewSession(ctx context.Context, sessionID string) (*Session, error) {
	sess := &Session{SessionID: sessionID}
	err := s.db.QueryRow(ctx,
		`SELECT user_id, completed_at FROM interview_sessions WHERE id = $1`, sessionID,
	).Scan(&sess.UserID, &sess.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения сессии: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT question_id, question_text FROM interview_session_questions
		 WHERE session_id = $1 ORDER BY position, question_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения вопросов: %w", err)
	}
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.QuestionID, &q.QuestionText); err != nil {
			rows.Close()
			return nil, fmt.Errorf("ошибка чтения вопроса: %w", err)
		}
		sess.Questions = append(sess.Questions, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации вопросов: %w", err)
	}

	rows, err = s.db.Query(ctx,
		`SELECT id::text, question_id, question_text, response_text, duration_seconds, answered_at
		 FROM interview_responses WHERE session_id = $1 ORDER BY answered_at, question_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ответов: %w", err)
	}
	defer rows.Close()

	known := make(map[int]bool, len(sess.Questions))
	for _, q := range sess.Questions {
		known[q.QuestionID] = true
	}
	for rows.Next() {
		var (
			r            Response
			questionText string
		)
		if err := rows.Scan(&r.ID, &r.QuestionID, &questionText, &r.ResponseText, &r.DurationSeconds, &r.AnsweredAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
		}
		sess.Responses = append(sess.Responses, r)
		if !known[r.QuestionID] {
			known[r.QuestionID] = true
			sess.Questions = append(sess.Questions, Question{QuestionID: r.QuestionID, QuestionText: questionText})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации ответов: %w", err)
	}

	return sess, nil
}

// GetSessionAnalyses возвращает анализы в порядке поступления.
func (s *pgStore) GetSessionAnalyses(ctx context.Context, sessionID string) ([]model.AnalysisRecord, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM response_analyses WHERE session_id = $1 ORDER BY created_at, id`,
		analysisColumns,
	)
	rows, err := s.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения анализов: %w", err)
	}
	defer rows.Close()

	var result []model.AnalysisRecord
	for rows.Next() {
		var (
			a          model.AnalysisRecord
			responseID *string
		)
		if err := rows.Scan(
			&a.ID, &responseID, &a.QuestionID, &a.OverallScore,
			&a.Strengths, &a.Improvements, &a.CommunicationScores, &a.ContentScores,
			&a.ActionableFeedback, &a.ImprovedExample, &a.ConfidenceScore, &a.FillerWords,
		); err != nil {
			return nil, fmt.Errorf("ошибка чтения анализа: %w", err)
		}
		if responseID != nil {
			a.InterviewResponseID = *responseID
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации анализов: %w", err)
	}
	return result, nil
}

// GetSummaryBySession возвращает сводку или nil, если её ещё нет.
func (s *pgStore) GetSummaryBySession(ctx context.Context, sessionID string) (*model.AggregateFeedback, error) {
	f := &model.AggregateFeedback{}
	err := s.db.QueryRow(ctx,
		`SELECT overall_score, communication_score, content_score,
		        strengths, improvements, detailed_feedback, recommendations
		 FROM session_summaries WHERE session_id = $1`, sessionID,
	).Scan(
		&f.OverallScore, &f.CommunicationScore, &f.ContentScore,
		&f.Strengths, &f.Improvements, &f.DetailedFeedback, &f.Recommendations,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка получения сводки: %w", err)
	}
	return f, nil
}

// RegisterSession создаёт сессию и её вопросы; повторный вызов ничего не меняет.
func (s *pgStore) RegisterSession(ctx context.Context, userID, sessionID string, questionIDs []int) error {
	return s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := ensureSession(ctx, tx, userID, sessionID); err != nil {
			return err
		}
		for pos, qid := range questionIDs {
			_, err := tx.Exec(ctx,
				`INSERT INTO interview_session_questions (session_id, question_id, position)
				 VALUES ($1, $2, $3) ON CONFLICT (session_id, question_id) DO NOTHING`,
				sessionID, qid, pos)
			if err != nil {
				return fmt.Errorf("ошибка регистрации вопроса %d: %w", qid, err)
			}
		}
		return nil
	})
}

// SaveResponse сохраняет ответ. Повторное сохранение того же вопроса
// обновляет текст и возвращает прежний идентификатор.
func (s *pgStore) SaveResponse(ctx context.Context, userID, sessionID string, resp model.QuestionResponse) (string, error) {
	id := resp.ResponseID
	if id == "" {
		id = uuid.New().String()
	}
	answeredAt := resp.AnsweredAt
	if answeredAt.IsZero() {
		answeredAt = time.Now().UTC()
	}

	var savedID string
	err := s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := ensureSession(ctx, tx, userID, sessionID); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO interview_session_questions (session_id, question_id, position, question_text)
			 VALUES ($1, $2,
			         (SELECT COALESCE(MAX(position) + 1, 0) FROM interview_session_questions WHERE session_id = $1),
			         $3)
			 ON CONFLICT (session_id, question_id) DO UPDATE
			   SET question_text = EXCLUDED.question_text
			   WHERE interview_session_questions.question_text = ''`,
			sessionID, resp.QuestionID, resp.QuestionText)
		if err != nil {
			return fmt.Errorf("ошибка сохранения вопроса: %w", err)
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO interview_responses
			   (id, session_id, user_id, question_id, question_text, response_text, duration_seconds, answered_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (session_id, question_id) DO UPDATE
			   SET question_text    = EXCLUDED.question_text,
			       response_text    = EXCLUDED.response_text,
			       duration_seconds = EXCLUDED.duration_seconds,
			       answered_at      = EXCLUDED.answered_at,
			       updated_at       = now()
			 RETURNING id::text`,
			id, sessionID, userID, resp.QuestionID, resp.QuestionText,
			resp.AnswerText, resp.DurationSeconds, answeredAt,
		).Scan(&savedID)
		if err != nil {
			return fmt.Errorf("ошибка сохранения ответа: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return savedID, nil
}

// CompleteSession отмечает сессию завершённой. Повторный вызов
// сохраняет исходное время завершения.
func (s *pgStore) CompleteSession(ctx context.Context, sessionID string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE interview_sessions SET completed_at = COALESCE(completed_at, now()) WHERE id = $1`,
		sessionID)
	if err != nil {
		return fmt.Errorf("ошибка завершения сессии: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func ensureSession(ctx context.Context, db DBTX, userID, sessionID string) error {
	_, err := db.Exec(ctx,
		`INSERT INTO interview_sessions (id, user_id) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		sessionID, userID)
	if err != nil {
		return fmt.Errorf("ошибка регистрации сессии: %w", err)
	}
	return nil
}
