package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/media/format"
)

// Handle — временное представление записи для воспроизведения.
// Занимает слот пула дескрипторов до вызова Release.
type Handle struct {
	file     *os.File
	meta     *model.VideoMetadata
	format   format.Format
	modTime  time.Time
	release  func()
	once     sync.Once
	released atomic.Bool
}

var errHandleReleased = errors.New("дескриптор воспроизведения освобождён")

// Read реализует io.Reader.
func (h *Handle) Read(p []byte) (int, error) {
	if h.released.Load() {
		return 0, errHandleReleased
	}
	return h.file.Read(p)
}

// Seek реализует io.Seeker.
func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	if h.released.Load() {
		return 0, errHandleReleased
	}
	return h.file.Seek(offset, whence)
}

// Release закрывает файл и возвращает слот в пул. Повторный вызов безопасен.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.released.Store(true)
		h.file.Close()
		h.release()
	})
}

// Close — синоним Release для io.Closer.
func (h *Handle) Close() error {
	h.Release()
	return nil
}

// Metadata возвращает метаданные записи.
func (h *Handle) Metadata() *model.VideoMetadata {
	return h.meta
}

// Format возвращает фактический формат записи.
func (h *Handle) Format() format.Format {
	return h.format
}

// ModTime возвращает время изменения файла.
func (h *Handle) ModTime() time.Time {
	return h.modTime
}

var _ io.ReadSeekCloser = (*Handle)(nil)

// OpenPlayback открывает запись для воспроизведения.
// Вызывающий обязан вызвать Release. Если все дескрипторы заняты
// дольше LoadTimeout, возвращается ErrLoadTimeout (и ErrHandlesExhausted).
// Отсутствие записи — ErrNotFound.
func (s *Store) OpenPlayback(ctx context.Context, sessionID string) (*Handle, error) {
	h, err := s.openPlayback(ctx, sessionID)
	observe("open_playback", err)
	return h, err
}

func (s *Store) openPlayback(ctx context.Context, sessionID string) (*Handle, error) {
	acqCtx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	err := s.handles.Acquire(acqCtx, 1)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("Пул дескрипторов воспроизведения исчерпан",
			slog.String("session_id", sessionID),
			slog.Int("max_handles", s.maxHandles),
		)
		return nil, fmt.Errorf("%w: %w", ErrLoadTimeout, ErrHandlesExhausted)
	}

	h, err := s.openFile(ctx, sessionID)
	if err != nil {
		s.handles.Release(1)
		return nil, err
	}

	playbackHandlesOpen.Inc()
	return h, nil
}

func (s *Store) openFile(ctx context.Context, sessionID string) (*Handle, error) {
	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	meta := s.idx.Get(sessionID)
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	f, err := s.files.ReadFile(meta.StoragePath)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ошибка получения stat файла: %w", err)
	}

	head := make([]byte, 512)
	n, err := f.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, fmt.Errorf("ошибка чтения заголовка: %w", err)
	}

	return &Handle{
		file:    f,
		meta:    meta,
		format:  format.DetectContent(meta.DeclaredFormat, head[:n]),
		modTime: stat.ModTime(),
		release: func() {
			s.handles.Release(1)
			playbackHandlesOpen.Dec()
		},
	}, nil
}
