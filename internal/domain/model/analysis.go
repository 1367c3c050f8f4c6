package model

// CommunicationScores — оценки коммуникации (0..100).
type CommunicationScores struct {
	Clarity    float64 `json:"clarity"`
	Confidence float64 `json:"confidence"`
	Pacing     float64 `json:"pacing"`
	Engagement float64 `json:"engagement"`
}

// ContentScores — оценки содержания ответа (0..100).
type ContentScores struct {
	Relevance float64 `json:"relevance"`
	Depth     float64 `json:"depth"`
	Structure float64 `json:"structure"`
	Examples  float64 `json:"examples"`
}

// FillerWords — статистика слов-паразитов.
type FillerWords struct {
	Count int            `json:"count"`
	Words map[string]int `json:"words,omitempty"`
}

// AnalysisRecord — серверный анализ ответа. Только для чтения.
type AnalysisRecord struct {
	ID string `json:"id"`
	// InterviewResponseID — ссылка на ответ; может отсутствовать
	InterviewResponseID string               `json:"interview_response_id,omitempty"`
	QuestionID          int                  `json:"question_id"`
	OverallScore        int                  `json:"overall_score"`
	Strengths           []string             `json:"strengths"`
	Improvements        []string             `json:"improvements"`
	CommunicationScores *CommunicationScores `json:"communication_scores,omitempty"`
	ContentScores       *ContentScores       `json:"content_scores,omitempty"`
	ActionableFeedback  string               `json:"actionable_feedback,omitempty"`
	ImprovedExample     string               `json:"improved_example,omitempty"`
	ConfidenceScore     *float64             `json:"confidence_score,omitempty"`
	FillerWords         *FillerWords         `json:"filler_words,omitempty"`
}

// MatchTier — каким способом ответ сопоставлен с анализом.
type MatchTier string

const (
	MatchByResponseID MatchTier = "response_id"
	MatchByQuestionID MatchTier = "question_id"
	MatchByPosition   MatchTier = "position"
	MatchNone         MatchTier = "none"
)

// ReconciledResponse — ответ, дополненный серверным анализом.
// Не персистентный, собирается на каждый запрос результатов.
type ReconciledResponse struct {
	QuestionResponse

	Score               int                  `json:"score"`
	Strengths           []string             `json:"strengths"`
	Improvements        []string             `json:"improvements"`
	CommunicationScores *CommunicationScores `json:"communication_scores,omitempty"`
	ContentScores       *ContentScores       `json:"content_scores,omitempty"`
	ActionableFeedback  string               `json:"actionable_feedback,omitempty"`
	ImprovedExample     string               `json:"improved_example,omitempty"`

	// AnalysisID — идентификатор сопоставленного анализа
	AnalysisID string    `json:"analysis_id,omitempty"`
	MatchedBy  MatchTier `json:"matched_by"`
	// Provisional — true, если данные только локальные
	Provisional bool `json:"provisional"`
}

// AggregateFeedback — сводная оценка сессии.
// Указатели позволяют отличить «нет значения» от нуля.
type AggregateFeedback struct {
	OverallScore       *float64 `json:"overall_score,omitempty"`
	CommunicationScore *float64 `json:"communication_score,omitempty"`
	ContentScore       *float64 `json:"content_score,omitempty"`
	Strengths          []string `json:"strengths,omitempty"`
	Improvements       []string `json:"improvements,omitempty"`
	DetailedFeedback   string   `json:"detailed_feedback,omitempty"`
	Recommendations    []string `json:"recommendations,omitempty"`
	// Provisional — true, если ни одно поле не пришло с сервера
	Provisional bool `json:"provisional"`
}
