package service

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/blobstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupBlobStore открывает хранилище во временной директории.
func setupBlobStore(t *testing.T, capacity int64) *blobstore.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := blobstore.Open(blobstore.Options{
		DataDir:        filepath.Join(dir, "data"),
		WALDir:         filepath.Join(dir, "wal"),
		CapacityBytes:  capacity,
		MaxOpenHandles: 4,
		LoadTimeout:    time.Second,
	}, testLogger())
	if err != nil {
		t.Fatalf("blobstore.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// putVideo сохраняет запись с содержимым content.
func putVideo(t *testing.T, store *blobstore.Store, sessionID string, content []byte, declared string) {
	t.Helper()
	_, err := store.Put(context.Background(), sessionID, bytes.NewReader(content), int64(len(content)), blobstore.Metadata{
		Timestamp:       time.Now().UTC(),
		DurationSeconds: 60,
		DeclaredFormat:  declared,
		HasAudio:        true,
	})
	if err != nil {
		t.Fatalf("Put(%s): %v", sessionID, err)
	}
}

func TestIntegrityRunOnce_NoIssues(t *testing.T) {
	store := setupBlobStore(t, 1<<20)
	putVideo(t, store, "s1", []byte("video-one"), "video/webm")
	putVideo(t, store, "s2", []byte("video-two"), "video/webm")

	svc := NewIntegrityService(store, time.Hour, testLogger())
	report, skipped := svc.RunOnce()
	if skipped {
		t.Fatal("проверка не должна пропускаться")
	}
	if report.FilesChecked != 2 || len(report.Issues) != 0 || report.Summary.OK != 2 {
		t.Errorf("ожидалось 2 файла без проблем: %+v", report)
	}
	if report.UsedBytes != int64(len("video-one")+len("video-two")) {
		t.Errorf("UsedBytes: %d", report.UsedBytes)
	}
}

func TestIntegrityRunOnce_DetectsIssues(t *testing.T) {
	store := setupBlobStore(t, 1<<20)
	putVideo(t, store, "size", []byte("aaaa"), "video/webm")
	putVideo(t, store, "checksum", []byte("bbbb"), "video/webm")
	putVideo(t, store, "missing", []byte("cccc"), "video/webm")

	files := store.Files()
	path := func(id string) string { return files.FullPath(store.Metadata(id).StoragePath) }

	if err := os.WriteFile(path("size"), []byte("aaaaaaaa"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path("checksum"), []byte("BBBB"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path("missing")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(files.DataDir(), "stray_0000.webm"), []byte("x"), 0o640); err != nil {
		t.Fatal(err)
	}

	svc := NewIntegrityService(store, time.Hour, testLogger())
	report, _ := svc.RunOnce()

	found := map[IssueType]string{}
	for _, issue := range report.Issues {
		found[issue.Type] = issue.SessionID
	}
	if found[IssueSizeMismatch] != "size" {
		t.Errorf("ожидался size_mismatch для size: %+v", report.Issues)
	}
	if found[IssueChecksumMismatch] != "checksum" {
		t.Errorf("ожидался checksum_mismatch для checksum: %+v", report.Issues)
	}
	if found[IssueMissingFile] != "missing" {
		t.Errorf("ожидался missing_file для missing: %+v", report.Issues)
	}
	if _, ok := found[IssueOrphanedFile]; !ok {
		t.Errorf("ожидался orphaned_file: %+v", report.Issues)
	}
	s := report.Summary
	if s.SizeMismatches != 1 || s.ChecksumMismatches != 1 || s.MissingFiles != 1 || s.OrphanedFiles != 1 {
		t.Errorf("сводка: %+v", s)
	}

	// Учёт места пересчитан по фактическим файлам
	used, _ := store.Usage()
	if used != 8+4 {
		t.Errorf("после сверки занято %d, ожидалось 12", used)
	}
}

func TestIntegrityRunOnce_SkipsWhenInProgress(t *testing.T) {
	store := setupBlobStore(t, 1<<20)
	svc := NewIntegrityService(store, time.Hour, testLogger())

	svc.mu.Lock()
	svc.inProcess = true
	svc.mu.Unlock()

	if !svc.IsInProgress() {
		t.Fatal("IsInProgress должен быть true")
	}
	report, skipped := svc.RunOnce()
	if !skipped || report != nil {
		t.Error("параллельный запуск должен пропускаться")
	}
}
