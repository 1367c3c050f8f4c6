// Пакет filestore — операции с файлами видеозаписей на диске.
// Обеспечивает streaming-запись с подсчётом SHA-256 на лету,
// чтение, удаление и перечисление содержимого директории данных.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrFileNotFound — файл отсутствует на диске.
var ErrFileNotFound = errors.New("файл не найден")

// FileStore — управление физическими файлами на диске.
type FileStore struct {
	// dataDir — корневая директория хранения видео (IM_DATA_DIR)
	dataDir string
}

// SaveResult — результат сохранения файла на диск.
type SaveResult struct {
	// StoragePath — относительный путь файла в dataDir
	StoragePath string
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого
	Checksum string
}

// Listing — содержимое директории данных, разделённое на
// файлы видео и файлы метаданных. Служебные и временные файлы пропускаются.
type Listing struct {
	DataFiles []string
	AttrFiles []string
}

// New создаёт новый FileStore. Создаёт директорию, если её нет.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &FileStore{dataDir: dataDir}, nil
}

// SaveFile записывает данные из reader на диск с подсчётом SHA-256 на лету.
// Формат имени файла: {session}_{uuid}.{ext}
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке temp файл удаляется, на диске не остаётся частичных данных.
func (fs *FileStore) SaveFile(reader io.Reader, sessionID, ext string) (*SaveResult, error) {
	storageName := generateStorageName(sessionID, ext)
	fullPath := filepath.Join(fs.dataDir, storageName)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		StoragePath: storageName,
		FullPath:    fullPath,
		Size:        size,
		Checksum:    hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// ReadFile открывает файл для чтения. Вызывающий код обязан закрыть файл.
func (fs *FileStore) ReadFile(storagePath string) (*os.File, error) {
	f, err := os.Open(fs.FullPath(storagePath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, storagePath)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storagePath, err)
	}

	return f, nil
}

// ReadAll читает файл целиком в новый срез байт.
func (fs *FileStore) ReadAll(storagePath string) ([]byte, error) {
	data, err := os.ReadFile(fs.FullPath(storagePath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, storagePath)
		}
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", storagePath, err)
	}
	return data, nil
}

// FullPath возвращает абсолютный путь к файлу на диске.
func (fs *FileStore) FullPath(storagePath string) string {
	return filepath.Join(fs.dataDir, storagePath)
}

// DeleteFile удаляет файл с диска. Отсутствие файла ошибкой не считается.
func (fs *FileStore) DeleteFile(storagePath string) error {
	err := os.Remove(fs.FullPath(storagePath))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storagePath, err)
	}
	return nil
}

// FileExists проверяет существование файла на диске.
func (fs *FileStore) FileExists(storagePath string) bool {
	_, err := os.Stat(fs.FullPath(storagePath))
	return err == nil
}

// FileSize возвращает размер файла на диске.
func (fs *FileStore) FileSize(storagePath string) (int64, error) {
	info, err := os.Stat(fs.FullPath(storagePath))
	if err != nil {
		return 0, fmt.Errorf("ошибка получения информации о файле %s: %w", storagePath, err)
	}
	return info.Size(), nil
}

// ComputeChecksum вычисляет SHA-256 хэш существующего файла.
// Используется проверкой целостности.
func (fs *FileStore) ComputeChecksum(storagePath string) (string, error) {
	f, err := os.Open(fs.FullPath(storagePath))
	if err != nil {
		return "", fmt.Errorf("ошибка открытия файла %s: %w", storagePath, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("ошибка вычисления checksum %s: %w", storagePath, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// List перечисляет содержимое директории данных.
// attrSuffix — суффикс файлов метаданных.
func (fs *FileStore) List(attrSuffix string) (*Listing, error) {
	entries, err := os.ReadDir(fs.dataDir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории данных %s: %w", fs.dataDir, err)
	}

	listing := &Listing{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
			continue
		}
		if strings.HasSuffix(name, attrSuffix) {
			listing.AttrFiles = append(listing.AttrFiles, name)
		} else {
			listing.DataFiles = append(listing.DataFiles, name)
		}
	}
	return listing, nil
}

// DataDir возвращает путь к директории данных.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

// generateStorageName генерирует имя файла для хранения на диске.
// Формат: {session}_{uuid}.{ext}
// Пример: sess-1_a1b2c3d4.webm
func generateStorageName(sessionID, ext string) string {
	name := sanitize(sessionID)
	if len(name) > 64 {
		name = name[:64]
	}

	uid := uuid.New().String()[:8]

	ext = strings.TrimPrefix(ext, ".")
	if ext != "" {
		return fmt.Sprintf("%s_%s.%s", name, uid, sanitize(ext))
	}
	return fmt.Sprintf("%s_%s", name, uid)
}

// sanitize оставляет только буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "video"
	}
	return result.String()
}
