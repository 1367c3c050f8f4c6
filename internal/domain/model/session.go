package model

import (
	"time"
)

// SessionState — состояние сессии интервью.
type SessionState string

const (
	// SessionActive — идут ответы на вопросы
	SessionActive SessionState = "active"
	// SessionComplete — на все вопросы есть ответы, ждём подтверждения сервера
	SessionComplete SessionState = "complete"
	// SessionSynced — сервер подтвердил завершение сессии
	SessionSynced SessionState = "synced"
)

// AnalysisHint — локальная предварительная оценка ответа.
type AnalysisHint struct {
	Confidence      float64 `json:"confidence"`
	SpeakingRate    float64 `json:"speaking_rate"`
	FillerWordCount int     `json:"filler_word_count"`
}

// QuestionResponse — ответ на один вопрос интервью.
type QuestionResponse struct {
	// ResponseID назначается удалённым хранилищем; пустой для несинхронизированных ответов
	ResponseID      string       `json:"response_id,omitempty"`
	QuestionID      int          `json:"question_id"`
	QuestionText    string       `json:"question_text"`
	AnswerText      string       `json:"answer_text"`
	DurationSeconds float64      `json:"duration_seconds"`
	AnalysisHint    AnalysisHint `json:"analysis_hint"`
	AnsweredAt      time.Time    `json:"answered_at"`
}

// InterviewSession — локальное состояние сессии интервью.
type InterviewSession struct {
	SessionID   string                    `json:"session_id"`
	UserID      string                    `json:"user_id"`
	QuestionIDs []int                     `json:"question_ids"`
	Responses   map[int]*QuestionResponse `json:"responses"`
	State       SessionState              `json:"state"`
	CreatedAt   time.Time                 `json:"created_at"`
	CompletedAt *time.Time                `json:"completed_at,omitempty"`
	SyncedAt    *time.Time                `json:"synced_at,omitempty"`
}

// IsComplete — true только когда на каждый вопрос есть ответ.
func (s *InterviewSession) IsComplete() bool {
	if len(s.QuestionIDs) == 0 {
		return false
	}
	for _, qid := range s.QuestionIDs {
		if _, ok := s.Responses[qid]; !ok {
			return false
		}
	}
	return true
}

// HasQuestion проверяет, входит ли вопрос в сессию.
func (s *InterviewSession) HasQuestion(questionID int) bool {
	for _, qid := range s.QuestionIDs {
		if qid == questionID {
			return true
		}
	}
	return false
}

// OrderedResponses возвращает ответы в порядке вопросов сессии.
// Порядок важен для позиционного сопоставления анализов.
func (s *InterviewSession) OrderedResponses() []QuestionResponse {
	result := make([]QuestionResponse, 0, len(s.Responses))
	for _, qid := range s.QuestionIDs {
		if r, ok := s.Responses[qid]; ok {
			result = append(result, *r)
		}
	}
	return result
}

// MissingQuestions возвращает вопросы без ответа.
func (s *InterviewSession) MissingQuestions() []int {
	var missing []int
	for _, qid := range s.QuestionIDs {
		if _, ok := s.Responses[qid]; !ok {
			missing = append(missing, qid)
		}
	}
	return missing
}
