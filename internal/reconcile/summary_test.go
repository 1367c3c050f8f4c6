package reconcile

import (
	"testing"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
)

func ptr(f float64) *float64 { return &f }

// TestReconcileSummary_RemoteWins проверяет приоритет серверных полей.
func TestReconcileSummary_RemoteWins(t *testing.T) {
	local := &model.AggregateFeedback{
		OverallScore:     ptr(55),
		ContentScore:     ptr(50),
		Strengths:        []string{"локальная"},
		DetailedFeedback: "предварительно",
		Provisional:      true,
	}
	remote := &model.AggregateFeedback{
		OverallScore: ptr(81),
		Strengths:    []string{"серверная"},
	}

	got := ReconcileSummary(local, remote)
	if *got.OverallScore != 81 {
		t.Errorf("OverallScore: ожидалось 81, получено %v", *got.OverallScore)
	}
	if got.Strengths[0] != "серверная" {
		t.Errorf("Strengths: %v", got.Strengths)
	}
	// Поля, которых нет на сервере, остаются локальными
	if got.ContentScore == nil || *got.ContentScore != 50 {
		t.Errorf("ContentScore: ожидалось локальное 50, получено %v", got.ContentScore)
	}
	if got.DetailedFeedback != "предварительно" {
		t.Errorf("DetailedFeedback: %q", got.DetailedFeedback)
	}
	if got.Provisional {
		t.Error("при наличии серверной сводки результат не предварительный")
	}

	// Входные данные не изменены
	*got.ContentScore = 0
	if *local.ContentScore != 50 {
		t.Error("результат делит указатели с локальной сводкой")
	}
}

// TestReconcileSummary_NoRemote проверяет заглушку до прихода сервера.
func TestReconcileSummary_NoRemote(t *testing.T) {
	local := &model.AggregateFeedback{OverallScore: ptr(40)}

	got := ReconcileSummary(local, nil)
	if !got.Provisional || *got.OverallScore != 40 {
		t.Errorf("ожидалась предварительная локальная сводка: %+v", got)
	}

	empty := ReconcileSummary(nil, nil)
	if !empty.Provisional || empty.OverallScore != nil {
		t.Errorf("без данных ожидалась пустая предварительная сводка: %+v", empty)
	}
}

// TestProvisionalSummary проверяет агрегирование по ответам.
func TestProvisionalSummary(t *testing.T) {
	responses := []model.ReconciledResponse{
		{Score: 60, Strengths: []string{"a", "b"}, CommunicationScores: &model.CommunicationScores{Clarity: 80, Confidence: 80, Pacing: 80, Engagement: 80}},
		{Score: 80, Strengths: []string{"b", "c"}, Improvements: []string{"x"}},
	}

	got := ProvisionalSummary(responses)
	if !got.Provisional {
		t.Error("сводка должна быть предварительной")
	}
	if *got.OverallScore != 70 {
		t.Errorf("OverallScore: ожидалось 70, получено %v", *got.OverallScore)
	}
	if got.CommunicationScore == nil || *got.CommunicationScore != 80 {
		t.Errorf("CommunicationScore: %v", got.CommunicationScore)
	}
	if got.ContentScore != nil {
		t.Error("ContentScore должен отсутствовать")
	}
	if len(got.Strengths) != 3 || len(got.Improvements) != 1 {
		t.Errorf("Strengths=%v Improvements=%v", got.Strengths, got.Improvements)
	}

	if s := ProvisionalSummary(nil); s.OverallScore != nil || !s.Provisional {
		t.Errorf("пустой вход: %+v", s)
	}
}
