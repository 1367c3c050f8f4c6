// integrity.go — фоновая проверка целостности хранилища видеозаписей.
//
// Сравнивает:
//   - файлы видео на диске с sidecar attr.json
//   - attr.json с физическими файлами
//   - размеры и SHA-256 содержимого
//
// Обнаруживает проблемы:
//   - orphaned_file: файл на диске без attr.json
//   - missing_file: attr.json без файла на диске
//   - size_mismatch: размер не совпадает с метаданными
//   - checksum_mismatch: не совпадает checksum
//
// После проверки индекс пересобирается, а учёт занятого места
// сверяется с полным сканированием.
package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/attr"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/blobstore"
)

// Prometheus метрики проверки целостности
var (
	integrityRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "im_integrity_runs_total",
		Help: "Общее количество запусков проверки целостности",
	})

	integrityIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "im_integrity_issues_total",
		Help: "Общее количество проблем, обнаруженных проверкой целостности",
	}, []string{"type"})

	integrityDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "im_integrity_duration_seconds",
		Help:    "Длительность проверки целостности в секундах",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)

// IssueType — тип проблемы целостности.
type IssueType string

const (
	IssueOrphanedFile     IssueType = "orphaned_file"
	IssueMissingFile      IssueType = "missing_file"
	IssueSizeMismatch     IssueType = "size_mismatch"
	IssueChecksumMismatch IssueType = "checksum_mismatch"
)

// IntegrityIssue — одна обнаруженная проблема.
type IntegrityIssue struct {
	Type        IssueType `json:"type"`
	SessionID   string    `json:"session_id,omitempty"`
	Path        string    `json:"path"`
	Description string    `json:"description"`
}

// IntegritySummary — сводка по типам проблем.
type IntegritySummary struct {
	OK                 int `json:"ok"`
	OrphanedFiles      int `json:"orphaned_files"`
	MissingFiles       int `json:"missing_files"`
	SizeMismatches     int `json:"size_mismatches"`
	ChecksumMismatches int `json:"checksum_mismatches"`
}

// IntegrityReport — результат одной проверки.
type IntegrityReport struct {
	StartedAt    time.Time        `json:"started_at"`
	CompletedAt  time.Time        `json:"completed_at"`
	FilesChecked int              `json:"files_checked"`
	Issues       []IntegrityIssue `json:"issues"`
	Summary      IntegritySummary `json:"summary"`
	UsedBytes    int64            `json:"used_bytes"`
}

// IntegrityService — сервис фоновой проверки целостности.
type IntegrityService struct {
	store    *blobstore.Store
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool
	cancel    context.CancelFunc
}

// NewIntegrityService создаёт сервис проверки целостности.
func NewIntegrityService(store *blobstore.Store, interval time.Duration, logger *slog.Logger) *IntegrityService {
	return &IntegrityService{
		store:    store,
		interval: interval,
		logger:   logger.With(slog.String("component", "integrity")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
func (s *IntegrityService) Start(ctx context.Context) {
	sCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.run(sCtx)

	s.logger.Info("Проверка целостности запущена",
		slog.String("interval", s.interval.String()),
	)
}

// Stop останавливает фоновую проверку.
func (s *IntegrityService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("Проверка целостности остановлена")
}

// IsInProgress возвращает true, если проверка выполняется.
func (s *IntegrityService) IsInProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inProcess
}

func (s *IntegrityService) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce()
		}
	}
}

// RunOnce выполняет одну проверку.
// Если проверка уже выполняется, возвращает nil, true.
func (s *IntegrityService) RunOnce() (*IntegrityReport, bool) {
	s.mu.Lock()
	if s.inProcess {
		s.mu.Unlock()
		s.logger.Warn("Проверка целостности уже выполняется, пропуск")
		return nil, true
	}
	s.inProcess = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inProcess = false
		s.mu.Unlock()
	}()

	startedAt := time.Now().UTC()
	s.logger.Info("Проверка целостности начата")

	issues, checked := s.check()

	if err := s.store.Reload(); err != nil {
		s.logger.Error("Ошибка пересборки индекса",
			slog.String("error", err.Error()),
		)
	}

	completedAt := time.Now().UTC()
	duration := completedAt.Sub(startedAt)

	summary := IntegritySummary{}
	for _, issue := range issues {
		switch issue.Type {
		case IssueOrphanedFile:
			summary.OrphanedFiles++
		case IssueMissingFile:
			summary.MissingFiles++
		case IssueSizeMismatch:
			summary.SizeMismatches++
		case IssueChecksumMismatch:
			summary.ChecksumMismatches++
		}
	}
	summary.OK = checked - len(issues)
	if summary.OK < 0 {
		summary.OK = 0
	}

	integrityRunsTotal.Inc()
	integrityDurationSeconds.Observe(duration.Seconds())
	for _, issue := range issues {
		integrityIssuesTotal.WithLabelValues(string(issue.Type)).Inc()
	}

	used, _ := s.store.Usage()

	s.logger.Info("Проверка целостности завершена",
		slog.Int("files_checked", checked),
		slog.Int("issues", len(issues)),
		slog.Int("ok", summary.OK),
		slog.String("used", blobstore.FormatBytes(used)),
		slog.Duration("duration", duration),
	)

	if issues == nil {
		issues = []IntegrityIssue{}
	}
	return &IntegrityReport{
		StartedAt:    startedAt,
		CompletedAt:  completedAt,
		FilesChecked: checked,
		Issues:       issues,
		Summary:      summary,
		UsedBytes:    used,
	}, false
}

// check сверяет содержимое директории данных.
// Возвращает проблемы и количество проверенных attr.json.
func (s *IntegrityService) check() ([]IntegrityIssue, int) {
	var issues []IntegrityIssue
	files := s.store.Files()

	listing, err := files.List(attr.AttrSuffix)
	if err != nil {
		s.logger.Error("Ошибка чтения директории данных",
			slog.String("error", err.Error()),
		)
		return issues, 0
	}

	dataFiles := make(map[string]bool, len(listing.DataFiles))
	for _, name := range listing.DataFiles {
		dataFiles[name] = true
	}
	attrFiles := make(map[string]bool, len(listing.AttrFiles))
	for _, name := range listing.AttrFiles {
		attrFiles[name] = true
	}

	// 1. Файл данных без attr.json
	for dataFile := range dataFiles {
		if !attrFiles[dataFile+attr.AttrSuffix] {
			issues = append(issues, IntegrityIssue{
				Type:        IssueOrphanedFile,
				Path:        dataFile,
				Description: "Файл на диске без attr.json",
			})
		}
	}

	// 2. attr.json: наличие файла, размер, checksum
	for attrFile := range attrFiles {
		dataFile := strings.TrimSuffix(attrFile, attr.AttrSuffix)
		meta, readErr := attr.Read(filepath.Join(files.DataDir(), attrFile))
		sessionID := ""
		if readErr == nil {
			sessionID = meta.SessionID
		}

		if !dataFiles[dataFile] {
			issues = append(issues, IntegrityIssue{
				Type:        IssueMissingFile,
				SessionID:   sessionID,
				Path:        dataFile,
				Description: "attr.json без соответствующего файла на диске",
			})
			continue
		}
		if readErr != nil {
			s.logger.Warn("Ошибка чтения attr.json при проверке целостности",
				slog.String("attr_file", attrFile),
				slog.String("error", readErr.Error()),
			)
			continue
		}

		actualSize, sizeErr := files.FileSize(dataFile)
		if sizeErr != nil {
			s.logger.Warn("Ошибка получения размера файла",
				slog.String("file", dataFile),
				slog.String("error", sizeErr.Error()),
			)
			continue
		}
		if actualSize != meta.SizeBytes {
			issues = append(issues, IntegrityIssue{
				Type:        IssueSizeMismatch,
				SessionID:   sessionID,
				Path:        dataFile,
				Description: "Размер файла на диске не совпадает с attr.json",
			})
			continue // при разных размерах checksum заведомо не совпадёт
		}

		actualChecksum, csErr := files.ComputeChecksum(dataFile)
		if csErr != nil {
			s.logger.Warn("Ошибка вычисления checksum",
				slog.String("file", dataFile),
				slog.String("error", csErr.Error()),
			)
			continue
		}
		if actualChecksum != meta.Checksum {
			issues = append(issues, IntegrityIssue{
				Type:        IssueChecksumMismatch,
				SessionID:   sessionID,
				Path:        dataFile,
				Description: "Checksum файла на диске не совпадает с attr.json",
			})
		}
	}

	return issues, len(attrFiles)
}
