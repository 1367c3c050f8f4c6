// sync.go — фоновая синхронизация сессий с удалённым хранилищем.
//
// Каждый проход:
//  1. Досылает ответы, не подтверждённые удалённым хранилищем
//  2. Подтверждает завершение complete-сессий (переводит в synced)
//  3. Удаляет из локального хранилища synced-сессии старше retention
//
// Запускается как горутина с периодическим тикером (IM_SYNC_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/session"
)

// Prometheus метрики синхронизации
var (
	syncRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "im_sync_runs_total",
		Help: "Общее количество проходов синхронизации",
	})

	syncItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "im_sync_items_total",
		Help: "Результаты синхронизации по типу объекта",
	}, []string{"kind", "result"})

	syncDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "im_sync_duration_seconds",
		Help:    "Длительность прохода синхронизации в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// Syncer — операции синхронизации менеджера сессий.
type Syncer interface {
	SyncPending(ctx context.Context) (session.SyncResult, error)
	PurgeSynced(ctx context.Context, retention time.Duration) (int, error)
}

// SyncRunResult — результат одного прохода.
type SyncRunResult struct {
	session.SyncResult
	Errors   int
	Duration time.Duration
}

// SyncService — сервис фоновой синхронизации.
type SyncService struct {
	syncer    Syncer
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSyncService создаёт сервис синхронизации.
func NewSyncService(syncer Syncer, interval, retention time.Duration, logger *slog.Logger) *SyncService {
	return &SyncService{
		syncer:    syncer,
		interval:  interval,
		retention: retention,
		logger:    logger.With(slog.String("component", "sync")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
func (s *SyncService) Start(ctx context.Context) {
	sCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(sCtx)

	s.logger.Info("Синхронизация запущена",
		slog.String("interval", s.interval.String()),
		slog.String("retention", s.retention.String()),
	)
}

// Stop останавливает синхронизацию и ждёт завершения текущего прохода.
func (s *SyncService) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.logger.Info("Синхронизация остановлена")
}

func (s *SyncService) run(ctx context.Context) {
	defer close(s.done)

	// Первый проход сразу после старта
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход синхронизации.
func (s *SyncService) RunOnce(ctx context.Context) *SyncRunResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &SyncRunResult{}

	res, err := s.syncer.SyncPending(ctx)
	result.SyncResult = res
	if err != nil {
		result.Errors++
		s.logger.Error("Ошибка синхронизации",
			slog.String("error", err.Error()),
		)
	}

	purged, err := s.syncer.PurgeSynced(ctx, s.retention)
	result.SessionsPurged = purged
	if err != nil {
		result.Errors++
		s.logger.Error("Ошибка очистки синхронизированных сессий",
			slog.String("error", err.Error()),
		)
	}

	result.Duration = time.Since(start)

	syncRunsTotal.Inc()
	syncDurationSeconds.Observe(result.Duration.Seconds())
	syncItemsTotal.WithLabelValues("response", "ok").Add(float64(result.ResponsesSynced))
	syncItemsTotal.WithLabelValues("response", "error").Add(float64(result.ResponsesFailed))
	syncItemsTotal.WithLabelValues("session", "ok").Add(float64(result.SessionsSynced))
	syncItemsTotal.WithLabelValues("session", "error").Add(float64(result.SessionsFailed))
	syncItemsTotal.WithLabelValues("session", "purged").Add(float64(result.SessionsPurged))

	if result.ResponsesSynced+result.ResponsesFailed+result.SessionsSynced+result.SessionsFailed+result.SessionsPurged > 0 {
		s.logger.Info("Проход синхронизации завершён",
			slog.Int("responses_synced", result.ResponsesSynced),
			slog.Int("responses_failed", result.ResponsesFailed),
			slog.Int("sessions_synced", result.SessionsSynced),
			slog.Int("sessions_failed", result.SessionsFailed),
			slog.Int("sessions_purged", result.SessionsPurged),
			slog.Duration("duration", result.Duration),
		)
	} else {
		s.logger.Debug("Проход синхронизации: изменений нет",
			slog.Duration("duration", result.Duration),
		)
	}

	return result
}
