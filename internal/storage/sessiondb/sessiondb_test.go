package sessiondb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newSession(id, user string, created time.Time, qids ...int) *model.InterviewSession {
	return &model.InterviewSession{
		SessionID:   id,
		UserID:      user,
		QuestionIDs: qids,
		Responses:   map[int]*model.QuestionResponse{},
		State:       model.SessionActive,
		CreatedAt:   created,
	}
}

func answer(qid int, text string) model.QuestionResponse {
	return model.QuestionResponse{
		QuestionID:      qid,
		QuestionText:    "Вопрос",
		AnswerText:      text,
		DurationSeconds: 30,
		AnalysisHint:    model.AnalysisHint{Confidence: 0.7, SpeakingRate: 140, FillerWordCount: 2},
		AnsweredAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestCreateAndGetSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := s.CreateSession(ctx, newSession("s1", "u1", created, 3, 1, 2)); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := s.CreateSession(ctx, newSession("s1", "u1", created, 1)); !errors.Is(err, ErrSessionExists) {
		t.Errorf("повторное создание: ожидалась ErrSessionExists, получено %v", err)
	}

	got, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.UserID != "u1" || got.State != model.SessionActive {
		t.Errorf("сессия: %+v", got)
	}
	if len(got.QuestionIDs) != 3 || got.QuestionIDs[0] != 3 {
		t.Errorf("порядок вопросов должен сохраниться: %v", got.QuestionIDs)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt: %v", got.CreatedAt)
	}
	if got.Responses == nil || len(got.Responses) != 0 {
		t.Errorf("ответов нет, ожидалась пустая карта: %v", got.Responses)
	}

	if _, err := s.GetSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

func TestInsertResponse_WriteOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_ = s.CreateSession(ctx, newSession("s1", "u1", time.Now(), 1, 2))

	if err := s.InsertResponse(ctx, "s1", answer(1, "первый")); err != nil {
		t.Fatalf("InsertResponse: %v", err)
	}
	if err := s.InsertResponse(ctx, "s1", answer(1, "второй")); !errors.Is(err, ErrResponseExists) {
		t.Fatalf("ожидалась ErrResponseExists, получено %v", err)
	}

	got, _ := s.GetSession(ctx, "s1")
	r := got.Responses[1]
	if r == nil || r.AnswerText != "первый" {
		t.Fatalf("первый ответ должен остаться: %+v", r)
	}
	if r.AnalysisHint.FillerWordCount != 2 || r.AnalysisHint.SpeakingRate != 140 {
		t.Errorf("подсказка анализа: %+v", r.AnalysisHint)
	}
	if !r.AnsweredAt.Equal(answer(1, "").AnsweredAt) {
		t.Errorf("AnsweredAt: %v", r.AnsweredAt)
	}
}

func TestInsertResponse_UnknownSession(t *testing.T) {
	s := openTestStore(t)
	err := s.InsertResponse(context.Background(), "missing", answer(1, "x"))
	if err == nil {
		t.Fatal("ответ без сессии должен отклоняться внешним ключом")
	}
}

func TestUpdateAndSyncResponse(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_ = s.CreateSession(ctx, newSession("s1", "u1", time.Now(), 1))

	if err := s.UpdateResponse(ctx, "s1", answer(1, "x")); !errors.Is(err, ErrNoResponse) {
		t.Errorf("ожидалась ErrNoResponse, получено %v", err)
	}

	_ = s.InsertResponse(ctx, "s1", answer(1, "a"))
	pending, _ := s.ListPendingResponses(ctx, 10)
	if len(pending) != 1 || pending[0].UserID != "u1" {
		t.Fatalf("ожидался один ответ к отправке: %+v", pending)
	}

	if err := s.MarkResponseSynced(ctx, "s1", 1, "resp-1"); err != nil {
		t.Fatalf("MarkResponseSynced: %v", err)
	}
	if n, _ := s.CountPendingResponses(ctx, "s1"); n != 0 {
		t.Errorf("после синхронизации очередь пуста, получено %d", n)
	}

	// Правка снова ставит ответ в очередь, id сохраняется
	if err := s.UpdateResponse(ctx, "s1", answer(1, "b")); err != nil {
		t.Fatalf("UpdateResponse: %v", err)
	}
	pending, _ = s.ListPendingResponses(ctx, 10)
	if len(pending) != 1 || pending[0].Response.ResponseID != "resp-1" || pending[0].Response.AnswerText != "b" {
		t.Errorf("правка должна попасть в очередь с прежним id: %+v", pending)
	}
}

// TestFindIncomplete_SkipsUnanswered проверяет, что сессия без ответов
// не предлагается к продолжению, даже если она самая свежая.
func TestFindIncomplete_SkipsUnanswered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_ = s.CreateSession(ctx, newSession("empty", "u1", base, 1, 2))
	if _, ok, _ := s.FindIncomplete(ctx, "u1"); ok {
		t.Fatal("сессия без ответов не должна считаться незавершённой")
	}

	_ = s.CreateSession(ctx, newSession("answered", "u1", base.Add(-time.Hour), 1, 2))
	_ = s.InsertResponse(ctx, "answered", answer(1, "a"))
	_ = s.CreateSession(ctx, newSession("newest-empty", "u1", base.Add(time.Hour), 1))

	id, ok, err := s.FindIncomplete(ctx, "u1")
	if err != nil || !ok || id != "answered" {
		t.Errorf("ожидалась сессия с ответом, получено %q %v %v", id, ok, err)
	}
}

func TestSetStateAndFindIncomplete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_ = s.CreateSession(ctx, newSession("old", "u1", base, 1))
	_ = s.CreateSession(ctx, newSession("new", "u1", base.Add(time.Hour), 1))
	_ = s.CreateSession(ctx, newSession("other", "u2", base, 1))
	_ = s.InsertResponse(ctx, "old", answer(1, "a"))
	_ = s.InsertResponse(ctx, "new", answer(1, "b"))
	_ = s.InsertResponse(ctx, "other", answer(1, "c"))

	id, ok, err := s.FindIncomplete(ctx, "u1")
	if err != nil || !ok || id != "new" {
		t.Fatalf("FindIncomplete: %q %v %v", id, ok, err)
	}

	if err := s.SetState(ctx, "new", model.SessionComplete, base.Add(2*time.Hour)); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	id, ok, _ = s.FindIncomplete(ctx, "u1")
	if !ok || id != "old" {
		t.Errorf("завершённая сессия не считается незавершённой: %q %v", id, ok)
	}

	got, _ := s.GetSession(ctx, "new")
	if got.CompletedAt == nil || !got.CompletedAt.Equal(base.Add(2*time.Hour)) {
		t.Errorf("CompletedAt: %v", got.CompletedAt)
	}

	ids, _ := s.ListByState(ctx, model.SessionComplete)
	if len(ids) != 1 || ids[0] != "new" {
		t.Errorf("ListByState: %v", ids)
	}

	if _, ok, _ := s.FindIncomplete(ctx, "nobody"); ok {
		t.Error("у пользователя без сессий нечего возобновлять")
	}
	if err := s.SetState(ctx, "missing", model.SessionSynced, base); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

func TestDeleteSyncedBefore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_ = s.CreateSession(ctx, newSession("a", "u", base, 1))
	_ = s.InsertResponse(ctx, "a", answer(1, "x"))
	_ = s.SetState(ctx, "a", model.SessionComplete, base)
	_ = s.SetState(ctx, "a", model.SessionSynced, base)

	_ = s.CreateSession(ctx, newSession("b", "u", base, 1))
	_ = s.SetState(ctx, "b", model.SessionSynced, base.Add(48*time.Hour))

	_ = s.CreateSession(ctx, newSession("c", "u", base, 1))

	n, err := s.DeleteSyncedBefore(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteSyncedBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("ожидалось удаление 1 сессии, получено %d", n)
	}
	if _, err := s.GetSession(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Error("сессия a должна быть удалена")
	}
	if pending, _ := s.ListPendingResponses(ctx, 10); len(pending) != 0 {
		t.Errorf("ответы удалённой сессии удаляются каскадно: %+v", pending)
	}
	for _, id := range []string{"b", "c"} {
		if _, err := s.GetSession(ctx, id); err != nil {
			t.Errorf("сессия %s должна остаться: %v", id, err)
		}
	}
}

func TestCreateSession_WithResponses(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess := newSession("h", "u", time.Now(), 1, 2)
	r1 := answer(1, "синхр")
	r1.ResponseID = "remote-1"
	r2 := answer(2, "локальный")
	sess.Responses[1] = &r1
	sess.Responses[2] = &r2

	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	got, _ := s.GetSession(ctx, "h")
	if len(got.Responses) != 2 || got.Responses[1].ResponseID != "remote-1" {
		t.Errorf("ответы: %+v", got.Responses)
	}
	// Ответ с идентификатором уже синхронизирован
	pending, _ := s.ListPendingResponses(ctx, 10)
	if len(pending) != 1 || pending[0].Response.QuestionID != 2 {
		t.Errorf("в очереди только ответ без id: %+v", pending)
	}
}
