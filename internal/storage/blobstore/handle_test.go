package blobstore

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/media/format"
)

// TestOpenPlayback проверяет чтение через дескриптор и идемпотентный Release.
func TestOpenPlayback(t *testing.T) {
	s := openTestStore(t, DefaultCapacity)
	ctx := context.Background()
	putBytes(t, s, "sess-1", []byte("video-bytes"), webmMeta(1))

	h, err := s.OpenPlayback(ctx, "sess-1")
	if err != nil {
		t.Fatalf("OpenPlayback: %v", err)
	}

	data, err := io.ReadAll(h)
	if err != nil {
		t.Fatalf("чтение: %v", err)
	}
	if string(data) != "video-bytes" {
		t.Errorf("содержимое: %q", data)
	}
	if h.Format() != format.WebM {
		t.Errorf("формат: ожидался webm, получен %s", h.Format())
	}

	h.Release()
	h.Release()
	if _, err := h.Read(make([]byte, 1)); err == nil {
		t.Error("чтение после Release должно возвращать ошибку")
	}
}

// TestOpenPlayback_PoolExhausted проверяет ограничение пула и LoadTimeout.
func TestOpenPlayback_PoolExhausted(t *testing.T) {
	s := openTestStore(t, DefaultCapacity)
	ctx := context.Background()
	putBytes(t, s, "sess-1", []byte("data"), webmMeta(1))

	// MaxOpenHandles = 2
	h1, err := s.OpenPlayback(ctx, "sess-1")
	if err != nil {
		t.Fatalf("первый дескриптор: %v", err)
	}
	h2, err := s.OpenPlayback(ctx, "sess-1")
	if err != nil {
		t.Fatalf("второй дескриптор: %v", err)
	}

	_, err = s.OpenPlayback(ctx, "sess-1")
	if !errors.Is(err, ErrLoadTimeout) || !errors.Is(err, ErrHandlesExhausted) {
		t.Fatalf("ожидались ErrLoadTimeout и ErrHandlesExhausted, получено %v", err)
	}

	// После освобождения слот возвращается в пул
	h1.Release()
	h3, err := s.OpenPlayback(ctx, "sess-1")
	if err != nil {
		t.Fatalf("дескриптор после освобождения: %v", err)
	}
	h3.Close()
	h2.Close()
}

// TestOpenPlayback_NotFound проверяет, что слот не теряется при ошибке.
func TestOpenPlayback_NotFound(t *testing.T) {
	s := openTestStore(t, DefaultCapacity)
	ctx := context.Background()

	for range 5 {
		if _, err := s.OpenPlayback(ctx, "none"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("ожидалась ErrNotFound, получено %v", err)
		}
	}

	putBytes(t, s, "sess-1", []byte("data"), webmMeta(1))
	h, err := s.OpenPlayback(ctx, "sess-1")
	if err != nil {
		t.Fatalf("слоты пула утекли после ошибок: %v", err)
	}
	h.Release()
}
