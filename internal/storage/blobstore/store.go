// Пакет blobstore — локальное хранилище видеозаписей с квотой.
//
// Одна запись на сессию интервью: файл видео и sidecar с метаданными
// (attr.json). Запись однократная, изменяются только вложения
// (транскрипция, AI-отзыв). Операции над одной сессией выполняются
// последовательно, над разными сессиями параллельно. Учёт занятого
// места ведётся инкрементально и сверяется с полным сканированием
// при открытии.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/keylock"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/media/format"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/attr"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/filestore"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/index"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/wal"
)

// ClearConfirmation — подтверждение массового удаления.
const ClearConfirmation = "clear-all-videos"

// DefaultCapacity — ёмкость хранилища по умолчанию (1 GiB).
const DefaultCapacity int64 = 1 << 30

// Options — параметры хранилища.
type Options struct {
	// DataDir — директория файлов видео и attr.json
	DataDir string
	// WALDir — директория WAL
	WALDir string
	// CapacityBytes — ёмкость, 0 = DefaultCapacity
	CapacityBytes int64
	// MaxOpenHandles — размер пула дескрипторов воспроизведения
	MaxOpenHandles int
	// LoadTimeout — предельное ожидание блокировки сессии и дескриптора
	LoadTimeout time.Duration
}

// Metadata — метаданные, передаваемые при сохранении записи.
// SizeBytes вычисляется хранилищем.
type Metadata struct {
	Timestamp       time.Time
	DurationSeconds float64
	DeclaredFormat  string
	HasAudio        bool
}

// Export — независимая копия записи для передачи потребителю.
type Export struct {
	Blob              []byte
	SuggestedFilename string
	Format            format.Format
	Metadata          *model.VideoMetadata
}

// Store — хранилище видеозаписей.
type Store struct {
	// mu упорядочивает точки фиксации операций с пересборкой индекса:
	// операции держат RLock на время изменения attr.json, индекса и
	// счётчика, Reload держит Lock.
	mu sync.RWMutex

	files       *filestore.FileStore
	idx         *index.Index
	wal         *wal.WAL
	quota       *Quota
	locks       *keylock.Locker
	handles     *semaphore.Weighted
	maxHandles  int
	loadTimeout time.Duration
	logger      *slog.Logger
}

// Open открывает хранилище: восстанавливает прерванные операции по WAL,
// строит индекс из attr.json и пересчитывает занятое место полным сканированием.
func Open(opts Options, logger *slog.Logger) (*Store, error) {
	if opts.CapacityBytes <= 0 {
		opts.CapacityBytes = DefaultCapacity
	}
	if opts.MaxOpenHandles <= 0 {
		opts.MaxOpenHandles = 16
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}

	files, err := filestore.New(opts.DataDir)
	if err != nil {
		return nil, err
	}

	walEngine, err := wal.New(opts.WALDir, logger)
	if err != nil {
		return nil, err
	}

	s := &Store{
		files:       files,
		idx:         index.New(logger),
		wal:         walEngine,
		quota:       NewQuota(opts.CapacityBytes),
		locks:       keylock.New(),
		handles:     semaphore.NewWeighted(int64(opts.MaxOpenHandles)),
		maxHandles:  opts.MaxOpenHandles,
		loadTimeout: opts.LoadTimeout,
		logger:      logger.With(slog.String("component", "blobstore")),
	}

	if err := s.recoverPending(); err != nil {
		return nil, fmt.Errorf("ошибка восстановления WAL: %w", err)
	}

	if err := s.idx.BuildFromDir(opts.DataDir); err != nil {
		return nil, fmt.Errorf("ошибка построения индекса: %w", err)
	}

	if err := s.verifyUsage(); err != nil {
		return nil, err
	}

	storageCapacityBytes.Set(float64(opts.CapacityBytes))
	s.updateGauges()

	return s, nil
}

// Close сохраняет снимок счётчика занятого места.
func (s *Store) Close() error {
	return s.saveSnapshot()
}

// Put сохраняет запись для сессии. size — заявленная длина данных.
//
// Ошибки: ErrAlreadyExists (запись уже есть), *QuotaError (ErrQuotaExceeded),
// ErrSizeMismatch (поток короче или длиннее заявленного), ErrLoadTimeout.
// При любой ошибке на диске не остаётся частичных данных, счётчик не меняется.
func (s *Store) Put(ctx context.Context, sessionID string, r io.Reader, size int64, meta Metadata) (*model.VideoMetadata, error) {
	result, err := s.put(ctx, sessionID, r, size, meta)
	observe("put", err)
	return result, err
}

func (s *Store) put(ctx context.Context, sessionID string, r io.Reader, size int64, meta Metadata) (*model.VideoMetadata, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: отрицательный размер %d", ErrSizeMismatch, size)
	}

	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if s.idx.Has(sessionID) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, sessionID)
	}

	if err := s.quota.reserve(size); err != nil {
		s.logger.Warn("Запись отклонена по квоте",
			slog.String("session_id", sessionID),
			slog.Int64("size", size),
			slog.Int64("used", s.quota.Used()),
			slog.Int64("capacity", s.quota.Capacity()),
		)
		return nil, err
	}

	walEntry, err := s.wal.StartTransaction(wal.OpVideoCreate, sessionID, "")
	if err != nil {
		s.quota.cancel(size)
		return nil, fmt.Errorf("ошибка создания WAL-транзакции: %w", err)
	}

	var saved *filestore.SaveResult
	rollback := func() {
		if saved != nil {
			_ = s.files.DeleteFile(saved.StoragePath)
			_ = attr.Delete(attr.AttrFilePath(saved.FullPath))
		}
		s.quota.cancel(size)
		if rbErr := s.wal.Rollback(walEntry.TransactionID); rbErr != nil {
			s.logger.Error("Ошибка отката WAL",
				slog.String("tx_id", walEntry.TransactionID),
				slog.String("error", rbErr.Error()),
			)
		}
	}

	// Читаем на один байт больше заявленного, чтобы обнаружить лишние данные
	limited := io.LimitReader(r, size+1)
	saved, err = s.files.SaveFile(limited, sessionID, format.Detect(meta.DeclaredFormat, "").Extension())
	if err != nil {
		rollback()
		return nil, fmt.Errorf("ошибка сохранения видео: %w", err)
	}
	if saved.Size != size {
		actual := saved.Size
		rollback()
		return nil, fmt.Errorf("%w: заявлено %d, получено не менее %d", ErrSizeMismatch, size, actual)
	}

	if err := s.wal.SetStoragePath(walEntry.TransactionID, saved.StoragePath); err != nil {
		rollback()
		return nil, err
	}

	ts := meta.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	metadata := &model.VideoMetadata{
		SessionID:       sessionID,
		Timestamp:       ts.UTC(),
		DurationSeconds: meta.DurationSeconds,
		DeclaredFormat:  meta.DeclaredFormat,
		SizeBytes:       saved.Size,
		HasAudio:        meta.HasAudio,
		StoragePath:     saved.StoragePath,
		Checksum:        saved.Checksum,
	}

	s.mu.RLock()
	if err := attr.Write(attr.AttrFilePath(saved.FullPath), metadata); err != nil {
		s.mu.RUnlock()
		rollback()
		return nil, fmt.Errorf("ошибка записи метаданных: %w", err)
	}
	s.idx.Add(metadata)
	s.quota.commit(size)
	s.mu.RUnlock()

	if err := s.wal.Commit(walEntry.TransactionID); err != nil {
		s.logger.Error("Ошибка коммита WAL (данные сохранены)",
			slog.String("tx_id", walEntry.TransactionID),
			slog.String("error", err.Error()),
		)
	}

	s.updateGauges()
	s.logger.Info("Видеозапись сохранена",
		slog.String("session_id", sessionID),
		slog.Int64("size", saved.Size),
		slog.String("checksum", saved.Checksum),
		slog.String("declared_format", meta.DeclaredFormat),
	)

	return metadata.Clone(), nil
}

// Get возвращает запись с независимой копией данных.
// Отсутствие записи не является ошибкой: возвращается nil, nil.
func (s *Store) Get(ctx context.Context, sessionID string) (*model.VideoRecord, error) {
	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	meta := s.idx.Get(sessionID)
	if meta == nil {
		return nil, nil
	}

	blob, err := s.files.ReadAll(meta.StoragePath)
	if err != nil {
		if errors.Is(err, filestore.ErrFileNotFound) {
			s.logger.Warn("Файл видео отсутствует на диске",
				slog.String("session_id", sessionID),
				slog.String("storage_path", meta.StoragePath),
			)
			return nil, nil
		}
		return nil, err
	}

	return &model.VideoRecord{Metadata: meta, Blob: blob}, nil
}

// Metadata возвращает метаданные записи без чтения данных или nil.
func (s *Store) Metadata(sessionID string) *model.VideoMetadata {
	return s.idx.Get(sessionID)
}

// Delete удаляет запись. Удаление отсутствующей записи успешно.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	_, err = s.deleteLocked(sessionID)
	observe("delete", err)
	return err
}

// deleteLocked удаляет запись под уже захваченной блокировкой ключа.
// Возвращает true, если запись существовала.
//
// Точка фиксации — удаление attr.json. Если оно не удалось, счётчик
// и индекс не меняются.
func (s *Store) deleteLocked(sessionID string) (bool, error) {
	meta := s.idx.Get(sessionID)
	if meta == nil {
		return false, nil
	}

	walEntry, err := s.wal.StartTransaction(wal.OpVideoDelete, sessionID, meta.StoragePath)
	if err != nil {
		return false, fmt.Errorf("ошибка создания WAL-транзакции: %w", err)
	}

	fullPath := s.files.FullPath(meta.StoragePath)
	s.mu.RLock()
	if err := attr.Delete(attr.AttrFilePath(fullPath)); err != nil {
		s.mu.RUnlock()
		_ = s.wal.Rollback(walEntry.TransactionID)
		return false, err
	}
	s.idx.Remove(sessionID)
	s.quota.free(meta.SizeBytes)
	s.mu.RUnlock()

	if err := s.files.DeleteFile(meta.StoragePath); err != nil {
		s.logger.Warn("Не удалось удалить файл видео, будет обнаружен проверкой целостности",
			slog.String("session_id", sessionID),
			slog.String("storage_path", meta.StoragePath),
			slog.String("error", err.Error()),
		)
	}

	if err := s.wal.Commit(walEntry.TransactionID); err != nil {
		s.logger.Error("Ошибка коммита WAL (запись удалена)",
			slog.String("tx_id", walEntry.TransactionID),
			slog.String("error", err.Error()),
		)
	}

	s.updateGauges()
	s.logger.Info("Видеозапись удалена",
		slog.String("session_id", sessionID),
		slog.Int64("size", meta.SizeBytes),
	)
	return true, nil
}

// List возвращает метаданные всех записей, новые первыми.
func (s *Store) List() []*model.VideoMetadata {
	return s.idx.List()
}

// Stats возвращает сводную статистику хранилища.
func (s *Store) Stats() model.StorageStats {
	return s.idx.Stats()
}

// ClearAll удаляет все записи. confirmation должен совпадать с
// ClearConfirmation, иначе возвращается ErrClearNotConfirmed.
// Возвращает количество удалённых записей.
func (s *Store) ClearAll(ctx context.Context, confirmation string) (int, error) {
	if confirmation != ClearConfirmation {
		observe("clear_all", ErrClearNotConfirmed)
		return 0, ErrClearNotConfirmed
	}

	removed := 0
	var errs []error
	for _, meta := range s.idx.List() {
		unlock, err := s.lock(ctx, meta.SessionID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ok, err := s.deleteLocked(meta.SessionID)
		unlock()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			removed++
		}
	}

	err := errors.Join(errs...)
	observe("clear_all", err)

	s.logger.Warn("Хранилище очищено",
		slog.Int("removed", removed),
		slog.Int("errors", len(errs)),
	)
	if err := s.saveSnapshot(); err != nil {
		s.logger.Warn("Не удалось сохранить снимок счётчика",
			slog.String("error", err.Error()),
		)
	}
	return removed, err
}

// Export возвращает независимую копию записи и имя файла для сохранения.
// Формат определяется по содержимому, а не по заявленной метке.
func (s *Store) Export(ctx context.Context, sessionID string) (*Export, error) {
	rec, err := s.Get(ctx, sessionID)
	if err != nil {
		observe("export", err)
		return nil, err
	}
	if rec == nil {
		observe("export", ErrNotFound)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	f := format.DetectContent(rec.Metadata.DeclaredFormat, rec.Blob)
	observe("export", nil)
	return &Export{
		Blob:              rec.Blob,
		SuggestedFilename: format.ExportFilename(sessionID, f),
		Format:            f,
		Metadata:          rec.Metadata,
	}, nil
}

// AttachTranscription сохраняет транскрипцию записи.
func (s *Store) AttachTranscription(ctx context.Context, sessionID string, t model.Transcription) error {
	err := s.update(ctx, sessionID, func(meta *model.VideoMetadata) {
		meta.Transcription = &t
	})
	observe("attach_transcription", err)
	return err
}

// AttachFeedback сохраняет AI-отзыв по записи.
func (s *Store) AttachFeedback(ctx context.Context, sessionID string, f model.AIFeedback) error {
	err := s.update(ctx, sessionID, func(meta *model.VideoMetadata) {
		meta.AIFeedback = &f
	})
	observe("attach_feedback", err)
	return err
}

func (s *Store) update(ctx context.Context, sessionID string, mutate func(*model.VideoMetadata)) error {
	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	meta := s.idx.Get(sessionID)
	if meta == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	walEntry, err := s.wal.StartTransaction(wal.OpVideoUpdate, sessionID, meta.StoragePath)
	if err != nil {
		return fmt.Errorf("ошибка создания WAL-транзакции: %w", err)
	}

	mutate(meta)
	s.mu.RLock()
	if err := attr.Write(attr.AttrFilePath(s.files.FullPath(meta.StoragePath)), meta); err != nil {
		s.mu.RUnlock()
		_ = s.wal.Rollback(walEntry.TransactionID)
		return fmt.Errorf("ошибка записи метаданных: %w", err)
	}
	err = s.idx.Update(meta)
	s.mu.RUnlock()
	if err != nil {
		_ = s.wal.Rollback(walEntry.TransactionID)
		return err
	}
	if err := s.wal.Commit(walEntry.TransactionID); err != nil {
		s.logger.Error("Ошибка коммита WAL (метаданные обновлены)",
			slog.String("tx_id", walEntry.TransactionID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Debug("Метаданные видеозаписи обновлены",
		slog.String("session_id", sessionID),
	)
	return nil
}

// Usage возвращает занятое место и ёмкость в байтах.
func (s *Store) Usage() (used, capacity int64) {
	return s.quota.Used(), s.quota.Capacity()
}

// Files возвращает файловое хранилище для проверки целостности.
func (s *Store) Files() *filestore.FileStore {
	return s.files
}

// WAL возвращает движок WAL для обслуживания.
func (s *Store) WAL() *wal.WAL {
	return s.wal
}

// Reload пересобирает индекс из attr.json и сверяет счётчик.
// Используется проверкой целостности после обнаружения расхождений.
// Параллельные записи и удаления ждут окончания пересборки на своей
// точке фиксации, поэтому индекс и счётчик остаются согласованными.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.idx.BuildFromDir(s.files.DataDir()); err != nil {
		return err
	}
	if err := s.verifyUsage(); err != nil {
		return err
	}
	s.updateGauges()
	return nil
}

// IsReady сообщает, что индекс построен.
func (s *Store) IsReady() bool {
	return s.idx.IsReady()
}

// lock захватывает блокировку сессии с ограничением LoadTimeout.
func (s *Store) lock(ctx context.Context, sessionID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	defer cancel()

	unlock, err := s.locks.Lock(lockCtx, sessionID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: блокировка сессии %s", ErrLoadTimeout, sessionID)
	}
	return unlock, nil
}

func (s *Store) updateGauges() {
	videosTotal.Set(float64(s.idx.Count()))
	storageUsedBytes.Set(float64(s.quota.Used()))
}
