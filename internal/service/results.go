// results.go — сборка результатов сессии интервью.
//
// Локальные ответы сопоставляются с серверными анализами, локальная
// предварительная сводка объединяется с серверной. Анализы и сводка
// запрашиваются параллельно; при любой ошибке запроса результат
// деградирует до предварительных локальных данных.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/reconcile"
)

var (
	reconcileMatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "im_reconcile_matches_total",
		Help: "Количество ответов по способу сопоставления с анализом",
	}, []string{"tier"})

	resultsDegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "im_results_degraded_total",
		Help: "Количество запросов результатов, деградировавших до локальных данных",
	}, []string{"source"})
)

// SessionLoader загружает локальную или восстановленную с сервера сессию.
type SessionLoader interface {
	ResumeSession(ctx context.Context, sessionID string) (*model.InterviewSession, error)
}

// AnalysisSource — чтение серверных анализов.
type AnalysisSource interface {
	GetSessionAnalyses(ctx context.Context, sessionID string) ([]model.AnalysisRecord, error)
	GetSummaryBySession(ctx context.Context, sessionID string) (*model.AggregateFeedback, error)
}

// defaultRemoteTimeout — таймаут чтения анализов, если не задан.
const defaultRemoteTimeout = 10 * time.Second

// ResultsOptions — параметры сервиса результатов.
type ResultsOptions struct {
	RemoteTimeout      time.Duration
	PositionalFallback bool
	CacheSize          int
	CacheTTL           time.Duration
}

// SessionResults — результаты сессии.
type SessionResults struct {
	SessionID string                     `json:"session_id"`
	State     model.SessionState         `json:"state"`
	Responses []model.ReconciledResponse `json:"responses"`
	Summary   model.AggregateFeedback    `json:"summary"`
	Matches   map[model.MatchTier]int    `json:"matches"`
	// Degraded — true, если серверные данные получить не удалось
	Degraded bool `json:"degraded"`
}

type remoteData struct {
	analyses    []model.AnalysisRecord
	summary     *model.AggregateFeedback
	analysesErr error
	summaryErr  error
}

// ResultsService собирает результаты сессий.
type ResultsService struct {
	sessions SessionLoader
	source   AnalysisSource
	cache    *AnalysisCache
	group    singleflight.Group
	opts     ResultsOptions
	logger   *slog.Logger
}

// NewResultsService создаёт сервис результатов.
func NewResultsService(sessions SessionLoader, source AnalysisSource, opts ResultsOptions, logger *slog.Logger) *ResultsService {
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = defaultRemoteTimeout
	}
	return &ResultsService{
		sessions: sessions,
		source:   source,
		cache:    NewAnalysisCache(opts.CacheSize, opts.CacheTTL),
		opts:     opts,
		logger:   logger.With(slog.String("component", "results")),
	}
}

// Results возвращает результаты сессии. Ошибка возвращается только
// если сессию не удалось загрузить; сбои получения анализов
// приводят к предварительным данным.
func (s *ResultsService) Results(ctx context.Context, sessionID string) (*SessionResults, error) {
	sess, err := s.sessions.ResumeSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	data := s.fetch(ctx, sessionID)

	res := reconcile.Reconcile(sess.OrderedResponses(), data.analyses, reconcile.Options{
		PositionalFallback: s.opts.PositionalFallback,
	})
	for tier, n := range res.Matches {
		reconcileMatchesTotal.WithLabelValues(string(tier)).Add(float64(n))
	}
	for _, p := range res.Positional {
		s.logger.Warn("Анализ сопоставлен по позиции",
			slog.String("session_id", sessionID),
			slog.Int("position", p.Position),
			slog.Int("response_question_id", p.ResponseQuestionID),
			slog.String("analysis_id", p.AnalysisID),
			slog.Int("analysis_question_id", p.AnalysisQuestionID),
		)
	}

	summary := reconcile.ReconcileSummary(reconcile.ProvisionalSummary(res.Responses), data.summary)

	return &SessionResults{
		SessionID: sess.SessionID,
		State:     sess.State,
		Responses: res.Responses,
		Summary:   summary,
		Matches:   res.Matches,
		Degraded:  data.analysesErr != nil || data.summaryErr != nil,
	}, nil
}

// Invalidate сбрасывает кэш анализов сессии.
func (s *ResultsService) Invalidate(sessionID string) {
	s.cache.Delete(sessionID)
}

// fetch запрашивает анализы и сводку. Параллельные запросы одной
// сессии объединяются; общий запрос не зависит от отмены вызывающего.
func (s *ResultsService) fetch(ctx context.Context, sessionID string) remoteData {
	ch := s.group.DoChan(sessionID, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RemoteTimeout)
		defer cancel()
		return s.fetchRemote(fctx, sessionID), nil
	})

	select {
	case <-ctx.Done():
		resultsDegradedTotal.WithLabelValues("canceled").Inc()
		return remoteData{analysesErr: ctx.Err(), summaryErr: ctx.Err()}
	case r := <-ch:
		return r.Val.(remoteData)
	}
}

func (s *ResultsService) fetchRemote(ctx context.Context, sessionID string) remoteData {
	var data remoteData
	cached, hit := s.cache.Get(sessionID)
	if hit {
		data.analyses = cached
	}

	var g errgroup.Group
	if !hit {
		g.Go(func() error {
			analyses, err := s.source.GetSessionAnalyses(ctx, sessionID)
			if err != nil {
				data.analysesErr = fmt.Errorf("получение анализов: %w", err)
				return data.analysesErr
			}
			data.analyses = analyses
			s.cache.Set(sessionID, analyses)
			return nil
		})
	}
	g.Go(func() error {
		summary, err := s.source.GetSummaryBySession(ctx, sessionID)
		if err != nil {
			data.summaryErr = fmt.Errorf("получение сводки: %w", err)
			return data.summaryErr
		}
		data.summary = summary
		return nil
	})
	_ = g.Wait()

	if data.analysesErr != nil {
		resultsDegradedTotal.WithLabelValues("analyses").Inc()
		s.logger.Warn("Анализы недоступны, используются локальные данные",
			slog.String("session_id", sessionID),
			slog.String("error", data.analysesErr.Error()),
		)
	}
	if data.summaryErr != nil {
		resultsDegradedTotal.WithLabelValues("summary").Inc()
		s.logger.Warn("Сводка недоступна, используется предварительная",
			slog.String("session_id", sessionID),
			slog.String("error", data.summaryErr.Error()),
		)
	}
	return data
}
