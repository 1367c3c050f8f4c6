package filestore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestNew_CreatesDirectory проверяет создание директории данных.
func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "videos")

	fs, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	if fs.DataDir() != dir {
		t.Errorf("ожидался путь %s, получен %s", dir, fs.DataDir())
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("путь не является директорией")
	}
}

// TestSaveFile проверяет сохранение видео с подсчётом SHA-256.
func TestSaveFile(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	content := []byte("webm-фрагмент тестовой записи")

	result, err := fs.SaveFile(bytes.NewReader(content), "sess-1", "webm")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if result.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), result.Size)
	}

	expectedHash := sha256.Sum256(content)
	if result.Checksum != hex.EncodeToString(expectedHash[:]) {
		t.Errorf("checksum: неожиданное значение %s", result.Checksum)
	}

	if !strings.HasPrefix(result.StoragePath, "sess-1_") {
		t.Errorf("имя файла должно начинаться с идентификатора сессии: %s", result.StoragePath)
	}
	if !strings.HasSuffix(result.StoragePath, ".webm") {
		t.Errorf("имя файла должно иметь расширение .webm: %s", result.StoragePath)
	}

	data, err := os.ReadFile(result.FullPath)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое файла не совпадает")
	}
}

// TestSaveFile_NoTmpFile проверяет отсутствие .tmp после записи.
func TestSaveFile_NoTmpFile(t *testing.T) {
	dir := t.TempDir()
	fs, _ := New(dir)

	result, err := fs.SaveFile(strings.NewReader("data"), "sess-2", "mp4")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if _, err := os.Stat(result.FullPath + ".tmp"); !os.IsNotExist(err) {
		t.Error(".tmp файл не должен оставаться после записи")
	}
}

// failingReader возвращает ошибку после первой порции данных.
type failingReader struct{ sent bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.sent {
		return 0, errors.New("обрыв потока")
	}
	r.sent = true
	return copy(p, "частичные данные"), nil
}

// TestSaveFile_ReaderError проверяет, что при ошибке чтения на диске ничего не остаётся.
func TestSaveFile_ReaderError(t *testing.T) {
	dir := t.TempDir()
	fs, _ := New(dir)

	if _, err := fs.SaveFile(&failingReader{}, "sess-3", "webm"); err == nil {
		t.Fatal("ожидалась ошибка записи")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("после ошибки в директории осталось %d файлов", len(entries))
	}
}

// TestReadFile проверяет чтение сохранённого файла.
func TestReadFile(t *testing.T) {
	fs, _ := New(t.TempDir())
	content := []byte("видео")

	result, _ := fs.SaveFile(bytes.NewReader(content), "sess-1", "webm")

	f, err := fs.ReadFile(result.StoragePath)
	if err != nil {
		t.Fatalf("ошибка открытия: %v", err)
	}
	defer f.Close()

	data, _ := io.ReadAll(f)
	if !bytes.Equal(data, content) {
		t.Error("содержимое не совпадает")
	}

	all, err := fs.ReadAll(result.StoragePath)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(all, content) {
		t.Error("ReadAll: содержимое не совпадает")
	}
}

// TestReadFile_NotFound проверяет ErrFileNotFound для отсутствующего файла.
func TestReadFile_NotFound(t *testing.T) {
	fs, _ := New(t.TempDir())

	if _, err := fs.ReadFile("missing.webm"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("ReadFile: ожидалась ErrFileNotFound, получено %v", err)
	}
	if _, err := fs.ReadAll("missing.webm"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("ReadAll: ожидалась ErrFileNotFound, получено %v", err)
	}
}

// TestDeleteFile проверяет удаление и идемпотентность удаления.
func TestDeleteFile(t *testing.T) {
	fs, _ := New(t.TempDir())
	result, _ := fs.SaveFile(strings.NewReader("x"), "sess-1", "webm")

	if err := fs.DeleteFile(result.StoragePath); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if fs.FileExists(result.StoragePath) {
		t.Error("файл должен быть удалён")
	}
	if err := fs.DeleteFile(result.StoragePath); err != nil {
		t.Errorf("повторное удаление не должно возвращать ошибку: %v", err)
	}
}

// TestFileSizeAndChecksum проверяет размер и checksum существующего файла.
func TestFileSizeAndChecksum(t *testing.T) {
	fs, _ := New(t.TempDir())
	content := []byte("0123456789")
	result, _ := fs.SaveFile(bytes.NewReader(content), "sess-1", "mp4")

	size, err := fs.FileSize(result.StoragePath)
	if err != nil {
		t.Fatalf("FileSize: %v", err)
	}
	if size != 10 {
		t.Errorf("размер: ожидалось 10, получено %d", size)
	}

	sum, err := fs.ComputeChecksum(result.StoragePath)
	if err != nil {
		t.Fatalf("ComputeChecksum: %v", err)
	}
	if sum != result.Checksum {
		t.Errorf("checksum: ожидалось %s, получено %s", result.Checksum, sum)
	}
}

// TestList проверяет разделение файлов данных и метаданных.
func TestList(t *testing.T) {
	dir := t.TempDir()
	fs, _ := New(dir)

	for name, content := range map[string]string{
		"a_1.webm":           "a",
		"a_1.webm.attr.json": "{}",
		"b_2.mp4":            "b",
		".hidden":            "x",
		"c_3.webm.tmp":       "x",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o640); err != nil {
			t.Fatalf("ошибка подготовки: %v", err)
		}
	}

	listing, err := fs.List(".attr.json")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listing.DataFiles) != 2 {
		t.Errorf("файлов данных: ожидалось 2, получено %v", listing.DataFiles)
	}
	if len(listing.AttrFiles) != 1 {
		t.Errorf("файлов метаданных: ожидалось 1, получено %v", listing.AttrFiles)
	}
}

// TestGenerateStorageName проверяет формат имени файла.
func TestGenerateStorageName(t *testing.T) {
	name := generateStorageName("sess/../1", ".mp4")
	if strings.Contains(name, "/") || strings.Contains(name, "..") {
		t.Errorf("имя файла содержит небезопасные символы: %s", name)
	}
	if !strings.HasSuffix(name, ".mp4") {
		t.Errorf("ожидалось расширение .mp4: %s", name)
	}

	long := generateStorageName(strings.Repeat("s", 200), "webm")
	if len(long) > 64+1+8+5 {
		t.Errorf("имя файла слишком длинное: %d", len(long))
	}
}

// TestSanitize проверяет очистку строк для имён файлов.
func TestSanitize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"sess-1", "sess-1"},
		{"sess 1/2", "sess12"},
		{"", "video"},
		{"!!!", "video"},
		{"a_b-c", "a_b-c"},
	}

	for _, tt := range tests {
		if got := sanitize(tt.input); got != tt.expected {
			t.Errorf("sanitize(%q) = %q, ожидалось %q", tt.input, got, tt.expected)
		}
	}
}
