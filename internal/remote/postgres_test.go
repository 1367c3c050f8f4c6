package remote

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/config"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
)

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers,
// применяет миграции и возвращает пул подключений.
func setupTestDB(t *testing.T) (*config.Config, *pgxpool.Pool) {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("interview_test"),
		postgres.WithUsername("interview"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}
	portNum, _ := strconv.Atoi(port.Port())

	cfg := &config.Config{
		DBHost:     host,
		DBPort:     portNum,
		DBName:     "interview_test",
		DBUser:     "interview",
		DBPassword: "test-password",
		DBSSLMode:  "disable",
	}

	logger := testLogger()
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	t.Cleanup(pool.Close)

	return cfg, pool
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestMigrate_Idempotent(t *testing.T) {
	cfg, pool := setupTestDB(t)

	if err := Migrate(cfg, testLogger()); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	tables := []string{
		"interview_sessions",
		"interview_session_questions",
		"interview_responses",
		"response_analyses",
		"session_summaries",
	}
	for _, table := range tables {
		var exists bool
		err := pool.QueryRow(context.Background(),
			`SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("Ошибка проверки таблицы %s: %v", table, err)
		}
		if !exists {
			t.Errorf("Таблица %s не создана", table)
		}
	}
}

func TestPostgresStore_SessionRoundTrip(t *testing.T) {
	_, pool := setupTestDB(t)
	store := NewPostgresStore(pool)
	ctx := context.Background()

	if err := store.RegisterSession(ctx, "user-1", "sess-1", []int{10, 20, 30}); err != nil {
		t.Fatalf("RegisterSession: %v", err)
	}
	// Повторная регистрация не ошибка
	if err := store.RegisterSession(ctx, "user-1", "sess-1", []int{10, 20, 30}); err != nil {
		t.Fatalf("повторный RegisterSession: %v", err)
	}

	id1, err := store.SaveResponse(ctx, "user-1", "sess-1", model.QuestionResponse{
		QuestionID: 20, QuestionText: "Расскажите о себе", AnswerText: "черновик", DurationSeconds: 42,
	})
	if err != nil {
		t.Fatalf("SaveResponse: %v", err)
	}
	if id1 == "" {
		t.Fatal("SaveResponse должен вернуть идентификатор")
	}

	// Upsert по (сессия, вопрос) сохраняет идентификатор
	id2, err := store.SaveResponse(ctx, "user-1", "sess-1", model.QuestionResponse{
		QuestionID: 20, QuestionText: "Расскажите о себе", AnswerText: "финал", DurationSeconds: 50,
	})
	if err != nil {
		t.Fatalf("повторный SaveResponse: %v", err)
	}
	if id2 != id1 {
		t.Errorf("upsert должен сохранить id: %s != %s", id2, id1)
	}

	sess, err := store.FetchInterviewSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("FetchInterviewSession: %v", err)
	}
	if sess.UserID != "user-1" {
		t.Errorf("UserID: получено %q", sess.UserID)
	}
	if len(sess.Questions) != 3 || sess.Questions[0].QuestionID != 10 || sess.Questions[2].QuestionID != 30 {
		t.Errorf("вопросы в порядке регистрации: %+v", sess.Questions)
	}
	if sess.Questions[1].QuestionText != "Расскажите о себе" {
		t.Errorf("текст вопроса должен заполниться из ответа: %q", sess.Questions[1].QuestionText)
	}
	if len(sess.Responses) != 1 || sess.Responses[0].ResponseText != "финал" {
		t.Errorf("ответы: %+v", sess.Responses)
	}
	if sess.CompletedAt != nil {
		t.Error("сессия ещё не завершена")
	}

	if err := store.CompleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	sess, _ = store.FetchInterviewSession(ctx, "sess-1")
	if sess.CompletedAt == nil {
		t.Error("CompletedAt должен быть заполнен")
	}
}

func TestPostgresStore_NotFound(t *testing.T) {
	_, pool := setupTestDB(t)
	store := NewPostgresStore(pool)
	ctx := context.Background()

	if _, err := store.FetchInterviewSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
	if err := store.CompleteSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}

	analyses, err := store.GetSessionAnalyses(ctx, "missing")
	if err != nil || len(analyses) != 0 {
		t.Errorf("анализов нет: %v, %v", analyses, err)
	}
	summary, err := store.GetSummaryBySession(ctx, "missing")
	if err != nil || summary != nil {
		t.Errorf("сводки нет: %v, %v", summary, err)
	}
}

func TestPostgresStore_AnalysesAndSummary(t *testing.T) {
	_, pool := setupTestDB(t)
	store := NewPostgresStore(pool)
	ctx := context.Background()

	respID, err := store.SaveResponse(ctx, "u", "sess-a", model.QuestionResponse{QuestionID: 1, AnswerText: "a"})
	if err != nil {
		t.Fatalf("SaveResponse: %v", err)
	}

	// Анализы пишет внешний сервис; эмулируем вставкой напрямую
	_, err = pool.Exec(ctx,
		`INSERT INTO response_analyses
		   (id, session_id, interview_response_id, question_id, overall_score, strengths, improvements,
		    communication_scores, confidence_score, created_at)
		 VALUES (gen_random_uuid(), 'sess-a', $1, 1, 81, '{"ясно"}', '{"темп"}',
		         '{"clarity": 80, "confidence": 70, "pacing": 60, "engagement": 90}', 0.9, now() - interval '1 minute'),
		        (gen_random_uuid(), 'sess-a', NULL, 2, 55, '{}', '{}', NULL, NULL, now())`,
		respID)
	if err != nil {
		t.Fatalf("вставка анализов: %v", err)
	}
	_, err = pool.Exec(ctx,
		`INSERT INTO session_summaries (session_id, overall_score, strengths, detailed_feedback)
		 VALUES ('sess-a', 68, '{"структура"}', 'хорошо')`)
	if err != nil {
		t.Fatalf("вставка сводки: %v", err)
	}

	analyses, err := store.GetSessionAnalyses(ctx, "sess-a")
	if err != nil {
		t.Fatalf("GetSessionAnalyses: %v", err)
	}
	if len(analyses) != 2 {
		t.Fatalf("ожидалось 2 анализа, получено %d", len(analyses))
	}
	first := analyses[0]
	if first.InterviewResponseID != respID || first.OverallScore != 81 {
		t.Errorf("первый анализ: %+v", first)
	}
	if first.CommunicationScores == nil || first.CommunicationScores.Clarity != 80 {
		t.Errorf("CommunicationScores: %+v", first.CommunicationScores)
	}
	if first.ConfidenceScore == nil || *first.ConfidenceScore != 0.9 {
		t.Errorf("ConfidenceScore: %v", first.ConfidenceScore)
	}
	second := analyses[1]
	if second.InterviewResponseID != "" || second.CommunicationScores != nil || second.ConfidenceScore != nil {
		t.Errorf("второй анализ без необязательных полей: %+v", second)
	}

	summary, err := store.GetSummaryBySession(ctx, "sess-a")
	if err != nil {
		t.Fatalf("GetSummaryBySession: %v", err)
	}
	if summary == nil || summary.OverallScore == nil || *summary.OverallScore != 68 {
		t.Fatalf("сводка: %+v", summary)
	}
	if summary.CommunicationScore != nil {
		t.Error("CommunicationScore не задан в сводке")
	}
	if summary.DetailedFeedback != "хорошо" || len(summary.Strengths) != 1 {
		t.Errorf("сводка: %+v", summary)
	}
}
