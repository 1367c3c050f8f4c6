package reconcile

import (
	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
)

// maxSummaryItems — сколько сильных сторон и зон роста попадает
// в предварительную сводку.
const maxSummaryItems = 5

// ReconcileSummary объединяет локальную предварительную сводку с серверной.
// Каждое поле серверной сводки, если оно задано, заменяет локальное;
// локальные значения используются только как заглушка до прихода
// серверных данных. Результат предварительный, если серверной сводки нет.
func ReconcileSummary(local, remote *model.AggregateFeedback) model.AggregateFeedback {
	var out model.AggregateFeedback
	if local != nil {
		out = cloneFeedback(local)
	}
	if remote == nil {
		out.Provisional = true
		return out
	}

	if remote.OverallScore != nil {
		out.OverallScore = cloneFloat(remote.OverallScore)
	}
	if remote.CommunicationScore != nil {
		out.CommunicationScore = cloneFloat(remote.CommunicationScore)
	}
	if remote.ContentScore != nil {
		out.ContentScore = cloneFloat(remote.ContentScore)
	}
	if len(remote.Strengths) > 0 {
		out.Strengths = append([]string(nil), remote.Strengths...)
	}
	if len(remote.Improvements) > 0 {
		out.Improvements = append([]string(nil), remote.Improvements...)
	}
	if remote.DetailedFeedback != "" {
		out.DetailedFeedback = remote.DetailedFeedback
	}
	if len(remote.Recommendations) > 0 {
		out.Recommendations = append([]string(nil), remote.Recommendations...)
	}
	out.Provisional = false
	return out
}

// ProvisionalSummary строит предварительную сводку по сопоставленным ответам:
// средние оценки и первые уникальные сильные стороны и зоны роста.
func ProvisionalSummary(responses []model.ReconciledResponse) *model.AggregateFeedback {
	out := &model.AggregateFeedback{Provisional: true}
	if len(responses) == 0 {
		return out
	}

	var total float64
	var comm, content []float64
	seenS := map[string]bool{}
	seenI := map[string]bool{}

	for _, r := range responses {
		total += float64(r.Score)
		if c := r.CommunicationScores; c != nil {
			comm = append(comm, (c.Clarity+c.Confidence+c.Pacing+c.Engagement)/4)
		}
		if c := r.ContentScores; c != nil {
			content = append(content, (c.Relevance+c.Depth+c.Structure+c.Examples)/4)
		}
		out.Strengths = appendUnique(out.Strengths, seenS, r.Strengths)
		out.Improvements = appendUnique(out.Improvements, seenI, r.Improvements)
	}

	overall := total / float64(len(responses))
	out.OverallScore = &overall
	out.CommunicationScore = mean(comm)
	out.ContentScore = mean(content)
	return out
}

func appendUnique(dst []string, seen map[string]bool, items []string) []string {
	for _, s := range items {
		if len(dst) >= maxSummaryItems {
			break
		}
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		dst = append(dst, s)
	}
	return dst
}

func mean(v []float64) *float64 {
	if len(v) == 0 {
		return nil
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	m := sum / float64(len(v))
	return &m
}

func cloneFloat(f *float64) *float64 {
	v := *f
	return &v
}

func cloneFeedback(f *model.AggregateFeedback) model.AggregateFeedback {
	out := *f
	if f.OverallScore != nil {
		out.OverallScore = cloneFloat(f.OverallScore)
	}
	if f.CommunicationScore != nil {
		out.CommunicationScore = cloneFloat(f.CommunicationScore)
	}
	if f.ContentScore != nil {
		out.ContentScore = cloneFloat(f.ContentScore)
	}
	out.Strengths = append([]string(nil), f.Strengths...)
	out.Improvements = append([]string(nil), f.Improvements...)
	out.Recommendations = append([]string(nil), f.Recommendations...)
	return out
}
