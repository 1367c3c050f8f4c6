package index

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/attr"
)

// testLogger возвращает логгер для тестов (вывод подавляется).
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// createTestMetadata создаёт метаданные видео для тестов.
func createTestMetadata(sessionID string, size int64, ts time.Time) *model.VideoMetadata {
	return &model.VideoMetadata{
		SessionID:      sessionID,
		Timestamp:      ts,
		DeclaredFormat: "video/webm",
		SizeBytes:      size,
		StoragePath:    sessionID + "_00000000.webm",
	}
}

// TestNew проверяет начальное состояние индекса.
func TestNew(t *testing.T) {
	idx := New(testLogger())

	if idx.IsReady() {
		t.Error("новый индекс не должен быть ready")
	}
	if idx.Count() != 0 {
		t.Errorf("ожидалось 0 записей, получено %d", idx.Count())
	}
}

// TestAddGet проверяет добавление и получение записи.
func TestAddGet(t *testing.T) {
	idx := New(testLogger())
	idx.Add(createTestMetadata("sess-1", 100, baseTime))

	got := idx.Get("sess-1")
	if got == nil {
		t.Fatal("запись не найдена")
	}
	if got.SizeBytes != 100 {
		t.Errorf("SizeBytes: ожидалось 100, получено %d", got.SizeBytes)
	}
	if !idx.Has("sess-1") || idx.Has("sess-2") {
		t.Error("Has: неверный результат")
	}
	if idx.Get("sess-2") != nil {
		t.Error("для отсутствующей сессии ожидался nil")
	}
}

// TestGet_ReturnsCopy проверяет, что изменение результата не влияет на индекс.
func TestGet_ReturnsCopy(t *testing.T) {
	idx := New(testLogger())
	meta := createTestMetadata("sess-1", 100, baseTime)
	meta.AIFeedback = &model.AIFeedback{Strengths: []string{"a"}}
	idx.Add(meta)

	// Изменение исходного объекта после Add
	meta.SizeBytes = 999
	meta.AIFeedback.Strengths[0] = "изменено"

	got := idx.Get("sess-1")
	got.SizeBytes = 1

	again := idx.Get("sess-1")
	if again.SizeBytes != 100 {
		t.Errorf("индекс изменён снаружи: SizeBytes=%d", again.SizeBytes)
	}
	if again.AIFeedback.Strengths[0] != "a" {
		t.Errorf("индекс изменён снаружи: Strengths=%v", again.AIFeedback.Strengths)
	}
}

// TestUpdate проверяет обновление существующей записи и ошибку для отсутствующей.
func TestUpdate(t *testing.T) {
	idx := New(testLogger())
	idx.Add(createTestMetadata("sess-1", 100, baseTime))

	upd := createTestMetadata("sess-1", 100, baseTime)
	upd.Transcription = &model.Transcription{Text: "текст"}
	if err := idx.Update(upd); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if idx.Get("sess-1").Transcription == nil {
		t.Error("транскрипция не сохранена")
	}

	if err := idx.Update(createTestMetadata("none", 1, baseTime)); err == nil {
		t.Error("ожидалась ошибка для отсутствующей записи")
	}
}

// TestRemoveAndClear проверяет удаление записей.
func TestRemoveAndClear(t *testing.T) {
	idx := New(testLogger())
	idx.Add(createTestMetadata("sess-1", 100, baseTime))
	idx.Add(createTestMetadata("sess-2", 100, baseTime))

	if !idx.Remove("sess-1") {
		t.Error("Remove должен вернуть true для существующей записи")
	}
	if idx.Remove("sess-1") {
		t.Error("Remove должен вернуть false для отсутствующей записи")
	}
	if n := idx.Clear(); n != 1 {
		t.Errorf("Clear: ожидалось 1, получено %d", n)
	}
	if idx.Count() != 0 {
		t.Errorf("после Clear осталось %d записей", idx.Count())
	}
}

// TestList_SortedNewestFirst проверяет сортировку по времени записи.
func TestList_SortedNewestFirst(t *testing.T) {
	idx := New(testLogger())
	idx.Add(createTestMetadata("old", 1, baseTime))
	idx.Add(createTestMetadata("new", 1, baseTime.Add(2*time.Hour)))
	idx.Add(createTestMetadata("mid-b", 1, baseTime.Add(time.Hour)))
	idx.Add(createTestMetadata("mid-a", 1, baseTime.Add(time.Hour)))

	list := idx.List()
	want := []string{"new", "mid-a", "mid-b", "old"}
	if len(list) != len(want) {
		t.Fatalf("ожидалось %d записей, получено %d", len(want), len(list))
	}
	for i, id := range want {
		if list[i].SessionID != id {
			t.Errorf("позиция %d: ожидалось %s, получено %s", i, id, list[i].SessionID)
		}
	}
}

// TestStats проверяет сводную статистику.
func TestStats(t *testing.T) {
	idx := New(testLogger())

	empty := idx.Stats()
	if empty.Count != 0 || empty.TotalBytes != 0 || empty.AverageBytes != 0 {
		t.Errorf("пустой индекс: ожидались нули, получено %+v", empty)
	}
	if empty.Oldest != nil || empty.Newest != nil {
		t.Error("пустой индекс: Oldest и Newest должны отсутствовать")
	}

	idx.Add(createTestMetadata("a", 100, baseTime))
	idx.Add(createTestMetadata("b", 300, baseTime.Add(time.Hour)))

	stats := idx.Stats()
	if stats.Count != 2 || stats.TotalBytes != 400 || stats.AverageBytes != 200 {
		t.Errorf("неожиданная статистика: %+v", stats)
	}
	if !stats.Oldest.Equal(baseTime) || !stats.Newest.Equal(baseTime.Add(time.Hour)) {
		t.Errorf("Oldest/Newest: %v / %v", stats.Oldest, stats.Newest)
	}
	if idx.TotalBytes() != 400 {
		t.Errorf("TotalBytes: ожидалось 400, получено %d", idx.TotalBytes())
	}
}

// TestBuildFromDir проверяет построение индекса из attr.json.
func TestBuildFromDir(t *testing.T) {
	dir := t.TempDir()

	for i := range 3 {
		meta := createTestMetadata(fmt.Sprintf("sess-%d", i), 10, baseTime)
		if err := attr.Write(filepath.Join(dir, meta.StoragePath+attr.AttrSuffix), meta); err != nil {
			t.Fatalf("ошибка записи attr: %v", err)
		}
	}
	// Две записи одной сессии: остаётся более новая
	dup := createTestMetadata("sess-0", 20, baseTime.Add(time.Minute))
	dup.StoragePath = "sess-0_11111111.webm"
	attr.Write(filepath.Join(dir, dup.StoragePath+attr.AttrSuffix), dup)
	os.WriteFile(filepath.Join(dir, "junk"+attr.AttrSuffix), []byte("{"), 0o640)

	idx := New(testLogger())
	idx.Add(createTestMetadata("stale", 1, baseTime))

	if err := idx.BuildFromDir(dir); err != nil {
		t.Fatalf("BuildFromDir: %v", err)
	}
	if !idx.IsReady() {
		t.Error("индекс должен быть ready")
	}
	if idx.Count() != 3 {
		t.Errorf("ожидалось 3 записи, получено %d", idx.Count())
	}
	if idx.Has("stale") {
		t.Error("старое содержимое индекса должно быть заменено")
	}
	if got := idx.Get("sess-0"); got.SizeBytes != 20 {
		t.Errorf("для дубликата ожидалась более новая запись, получено %+v", got)
	}
}

// TestConcurrentAccess проверяет потокобезопасность индекса.
// Запускать с go test -race.
func TestConcurrentAccess(t *testing.T) {
	idx := New(testLogger())
	for i := range 10 {
		idx.Add(createTestMetadata(fmt.Sprintf("init-%d", i), 10, baseTime))
	}

	var wg sync.WaitGroup
	const goroutines = 50
	wg.Add(goroutines * 3)

	for range goroutines {
		go func() {
			defer wg.Done()
			for range 50 {
				idx.Get("init-5")
				idx.List()
			}
		}()
	}

	for range goroutines {
		go func() {
			defer wg.Done()
			for range 50 {
				idx.Stats()
				idx.TotalBytes()
			}
		}()
	}

	for i := range goroutines {
		go func(id int) {
			defer wg.Done()
			sessionID := fmt.Sprintf("concurrent-%d", id)
			idx.Add(createTestMetadata(sessionID, 1, time.Now()))
			idx.Get(sessionID)
			idx.Remove(sessionID)
		}(i)
	}

	wg.Wait()

	if idx.Count() != 10 {
		t.Errorf("ожидалось 10 записей, получено %d", idx.Count())
	}
}
