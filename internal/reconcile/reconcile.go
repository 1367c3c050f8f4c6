// Пакет reconcile — сопоставление локальных ответов с серверными анализами.
//
// Анализы приходят асинхронно, в произвольном порядке и не всегда
// содержат ссылку на ответ. Сопоставление выполняется в порядке приоритета:
//
//  1. по идентификатору ответа (interview_response_id == response_id);
//  2. по идентификатору вопроса;
//  3. по позиции в списке (только если включено в Options);
//  4. без сопоставления: ответ остаётся с локальной предварительной оценкой.
//
// Каждый уровень — отдельный проход по всем ответам, поэтому совпадение
// более высокого уровня у одного ответа не может быть перехвачено
// совпадением более низкого уровня у другого. Каждый анализ используется
// не более одного раза. Индексы строятся один раз за вызов.
package reconcile

import (
	"math"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
)

// Options — параметры сопоставления.
type Options struct {
	// PositionalFallback включает сопоставление по позиции.
	// Позиционное сопоставление может дать неверную пару, если порядок
	// анализов не совпадает с порядком ответов; такие пары возвращаются
	// в Result.Positional для логирования.
	PositionalFallback bool
}

// PositionalPair — пара, полученная сопоставлением по позиции.
type PositionalPair struct {
	Position           int
	ResponseQuestionID int
	AnalysisID         string
	AnalysisQuestionID int
}

// Result — результат сопоставления.
type Result struct {
	// Responses — ответы в исходном порядке
	Responses []model.ReconciledResponse
	// Matches — количество ответов по способу сопоставления
	Matches map[model.MatchTier]int
	// Positional — пары, полученные по позиции
	Positional []PositionalPair
	// UnusedAnalyses — анализы, не сопоставленные ни с одним ответом
	UnusedAnalyses int
}

// Reconcile сопоставляет ответы с анализами. Чистая функция:
// при одинаковых входных последовательностях результат одинаков.
// Порядок responses значим для позиционного сопоставления.
// Никогда не завершается ошибкой: без анализов все ответы
// возвращаются с предварительными данными.
func Reconcile(responses []model.QuestionResponse, analyses []model.AnalysisRecord, opts Options) Result {
	assigned := make([]int, len(responses)) // индекс анализа или -1
	tiers := make([]model.MatchTier, len(responses))
	for i := range assigned {
		assigned[i] = -1
		tiers[i] = model.MatchNone
	}
	consumed := make([]bool, len(analyses))

	byResponseID := make(map[string][]int, len(analyses))
	byQuestionID := make(map[int][]int, len(analyses))
	for i, a := range analyses {
		if a.InterviewResponseID != "" {
			byResponseID[a.InterviewResponseID] = append(byResponseID[a.InterviewResponseID], i)
		}
		byQuestionID[a.QuestionID] = append(byQuestionID[a.QuestionID], i)
	}

	// take возвращает первый неиспользованный анализ из очереди.
	// Очередь сдвигается, поэтому суммарная работа линейна.
	take := func(queue []int) (int, []int) {
		for len(queue) > 0 {
			ai := queue[0]
			queue = queue[1:]
			if !consumed[ai] {
				return ai, queue
			}
		}
		return -1, queue
	}

	// 1. По идентификатору ответа
	for ri, r := range responses {
		if r.ResponseID == "" {
			continue
		}
		queue, ok := byResponseID[r.ResponseID]
		if !ok {
			continue
		}
		ai, rest := take(queue)
		byResponseID[r.ResponseID] = rest
		if ai >= 0 {
			consumed[ai] = true
			assigned[ri] = ai
			tiers[ri] = model.MatchByResponseID
		}
	}

	// 2. По идентификатору вопроса
	for ri, r := range responses {
		if assigned[ri] >= 0 {
			continue
		}
		queue, ok := byQuestionID[r.QuestionID]
		if !ok {
			continue
		}
		ai, rest := take(queue)
		byQuestionID[r.QuestionID] = rest
		if ai >= 0 {
			consumed[ai] = true
			assigned[ri] = ai
			tiers[ri] = model.MatchByQuestionID
		}
	}

	result := Result{
		Responses: make([]model.ReconciledResponse, len(responses)),
		Matches:   make(map[model.MatchTier]int, 4),
	}

	// 3. По позиции
	if opts.PositionalFallback {
		for ri, r := range responses {
			if assigned[ri] >= 0 || ri >= len(analyses) || consumed[ri] {
				continue
			}
			consumed[ri] = true
			assigned[ri] = ri
			tiers[ri] = model.MatchByPosition
			result.Positional = append(result.Positional, PositionalPair{
				Position:           ri,
				ResponseQuestionID: r.QuestionID,
				AnalysisID:         analyses[ri].ID,
				AnalysisQuestionID: analyses[ri].QuestionID,
			})
		}
	}

	for ri, r := range responses {
		if ai := assigned[ri]; ai >= 0 {
			result.Responses[ri] = merge(r, &analyses[ai], tiers[ri])
		} else {
			result.Responses[ri] = provisional(r)
		}
		result.Matches[tiers[ri]]++
	}

	for _, used := range consumed {
		if !used {
			result.UnusedAnalyses++
		}
	}

	return result
}

// merge дополняет ответ данными анализа. Срезы копируются.
func merge(r model.QuestionResponse, a *model.AnalysisRecord, tier model.MatchTier) model.ReconciledResponse {
	out := model.ReconciledResponse{
		QuestionResponse:   r,
		Score:              clampScore(a.OverallScore),
		Strengths:          cloneStrings(a.Strengths),
		Improvements:       cloneStrings(a.Improvements),
		ActionableFeedback: a.ActionableFeedback,
		ImprovedExample:    a.ImprovedExample,
		AnalysisID:         a.ID,
		MatchedBy:          tier,
	}
	if a.CommunicationScores != nil {
		cs := *a.CommunicationScores
		out.CommunicationScores = &cs
	}
	if a.ContentScores != nil {
		cs := *a.ContentScores
		out.ContentScores = &cs
	}
	return out
}

// provisional возвращает ответ без изменений с предварительной оценкой
// из локальной подсказки: confidence (0..1) переводится в шкалу 0..100.
func provisional(r model.QuestionResponse) model.ReconciledResponse {
	return model.ReconciledResponse{
		QuestionResponse: r,
		Score:            ProvisionalScore(r.AnalysisHint),
		Strengths:        []string{},
		Improvements:     []string{},
		MatchedBy:        model.MatchNone,
		Provisional:      true,
	}
}

// ProvisionalScore переводит локальную уверенность в оценку 0..100.
// Значения больше 1 считаются уже заданными в шкале 0..100.
func ProvisionalScore(h model.AnalysisHint) int {
	c := h.Confidence
	if math.IsNaN(c) || c <= 0 {
		return 0
	}
	if c <= 1 {
		c *= 100
	}
	return clampScore(int(math.Round(c)))
}

func clampScore(s int) int {
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	default:
		return s
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}
