// Пакет index — потокобезопасный in-memory индекс метаданных видео.
//
// Индекс строится при старте из attr.json файлов (BuildFromDir)
// и обновляется синхронно при операциях записи (Add, Update, Remove).
// Ключ индекса — session_id. Список и статистика считаются без
// обращения к диску.
//
// Не персистентный: при рестарте пересобирается из attr.json.
package index

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/attr"
)

// Index — потокобезопасный in-memory индекс метаданных.
type Index struct {
	mu     sync.RWMutex
	videos map[string]*model.VideoMetadata // session_id → metadata
	ready  bool
	logger *slog.Logger
}

// New создаёт пустой индекс. Для заполнения вызовите BuildFromDir.
func New(logger *slog.Logger) *Index {
	return &Index{
		videos: make(map[string]*model.VideoMetadata),
		logger: logger.With(slog.String("component", "index")),
	}
}

// BuildFromDir строит индекс из attr.json файлов в указанной директории.
// Заменяет текущее содержимое индекса и помечает его как ready.
// Невалидные attr.json пропускаются с предупреждением.
func (idx *Index) BuildFromDir(dataDir string) error {
	scan, err := attr.ScanDir(dataDir)
	if err != nil {
		return fmt.Errorf("ошибка сканирования директории %s: %w", dataDir, err)
	}

	for _, path := range scan.Invalid {
		idx.logger.Warn("Пропущен невалидный attr.json",
			slog.String("path", path),
		)
	}

	videos := make(map[string]*model.VideoMetadata, len(scan.Items))
	for _, meta := range scan.Items {
		if prev, ok := videos[meta.SessionID]; ok {
			idx.logger.Warn("Дублирующаяся запись для сессии, оставлена более новая",
				slog.String("session_id", meta.SessionID),
				slog.String("kept", newer(prev, meta).StoragePath),
			)
			meta = newer(prev, meta)
		}
		videos[meta.SessionID] = meta
	}

	idx.mu.Lock()
	idx.videos = videos
	idx.ready = true
	idx.mu.Unlock()

	idx.logger.Info("Индекс метаданных построен",
		slog.Int("videos", len(videos)),
		slog.String("data_dir", dataDir),
	)

	return nil
}

// IsReady возвращает true, если индекс построен.
func (idx *Index) IsReady() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.ready
}

// Add добавляет метаданные в индекс (с перезаписью).
func (idx *Index) Add(meta *model.VideoMetadata) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.videos[meta.SessionID] = meta.Clone()
}

// Update обновляет метаданные. Возвращает ошибку, если записи нет.
func (idx *Index) Update(meta *model.VideoMetadata) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.videos[meta.SessionID]; !ok {
		return fmt.Errorf("сессия %s не найдена в индексе", meta.SessionID)
	}
	idx.videos[meta.SessionID] = meta.Clone()
	return nil
}

// Remove удаляет запись. Возвращает true, если запись была.
func (idx *Index) Remove(sessionID string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.videos[sessionID]; !ok {
		return false
	}
	delete(idx.videos, sessionID)
	return true
}

// Clear удаляет все записи и возвращает их количество.
func (idx *Index) Clear() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n := len(idx.videos)
	idx.videos = make(map[string]*model.VideoMetadata)
	return n
}

// Get возвращает копию метаданных или nil.
func (idx *Index) Get(sessionID string) *model.VideoMetadata {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	meta, ok := idx.videos[sessionID]
	if !ok {
		return nil
	}
	return meta.Clone()
}

// Has проверяет наличие записи для сессии.
func (idx *Index) Has(sessionID string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.videos[sessionID]
	return ok
}

// List возвращает копии всех метаданных, отсортированные по времени
// записи (новые первые). При равном времени порядок по session_id.
func (idx *Index) List() []*model.VideoMetadata {
	idx.mu.RLock()
	result := make([]*model.VideoMetadata, 0, len(idx.videos))
	for _, meta := range idx.videos {
		result = append(result, meta.Clone())
	}
	idx.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.After(result[j].Timestamp)
		}
		return result[i].SessionID < result[j].SessionID
	})
	return result
}

// Count возвращает количество записей.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.videos)
}

// TotalBytes возвращает суммарный размер записей по метаданным.
func (idx *Index) TotalBytes() int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var total int64
	for _, meta := range idx.videos {
		total += meta.SizeBytes
	}
	return total
}

// Stats возвращает сводную статистику. Для пустого индекса
// все значения нулевые, Oldest и Newest отсутствуют.
func (idx *Index) Stats() model.StorageStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var stats model.StorageStats
	var oldest, newest time.Time
	for _, meta := range idx.videos {
		stats.Count++
		stats.TotalBytes += meta.SizeBytes
		if oldest.IsZero() || meta.Timestamp.Before(oldest) {
			oldest = meta.Timestamp
		}
		if newest.IsZero() || meta.Timestamp.After(newest) {
			newest = meta.Timestamp
		}
	}

	if stats.Count > 0 {
		stats.AverageBytes = stats.TotalBytes / int64(stats.Count)
		stats.Oldest = &oldest
		stats.Newest = &newest
	}
	return stats
}

func newer(a, b *model.VideoMetadata) *model.VideoMetadata {
	if b.Timestamp.After(a.Timestamp) {
		return b
	}
	return a
}
