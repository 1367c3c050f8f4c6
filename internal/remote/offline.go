package remote

import (
	"context"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
)

// Offline — Store без удалённого хранилища.
// Чтения возвращают пустые результаты, записи — ErrUnavailable.
type Offline struct{}

// NewOffline создаёт автономную реализацию Store.
func NewOffline() *Offline {
	return &Offline{}
}

func (Offline) FetchInterviewSession(context.Context, string) (*Session, error) {
	return nil, ErrUnavailable
}

func (Offline) GetSessionAnalyses(context.Context, string) ([]model.AnalysisRecord, error) {
	return nil, nil
}

func (Offline) GetSummaryBySession(context.Context, string) (*model.AggregateFeedback, error) {
	return nil, nil
}

func (Offline) RegisterSession(context.Context, string, string, []int) error {
	return ErrUnavailable
}

func (Offline) SaveResponse(context.Context, string, string, model.QuestionResponse) (string, error) {
	return "", ErrUnavailable
}

func (Offline) CompleteSession(context.Context, string) error {
	return ErrUnavailable
}

// CheckReady — автономный режим всегда готов.
func (Offline) CheckReady() (status string, message string) {
	return "ok", "автономный режим, удалённое хранилище не настроено"
}

var _ Store = (*Offline)(nil)
