// Пакет attr — чтение и запись файлов метаданных видео (attr.json).
// Каждая запись в хранилище имеет сопутствующий *.attr.json,
// который является единственным источником истины для метаданных.
// Все операции записи выполняются атомарно: temp → fsync → rename.
package attr

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
)

// AttrSuffix — суффикс файла метаданных.
const AttrSuffix = ".attr.json"

// maxAttrFileSize — максимальный допустимый размер attr.json (256 КБ).
// Транскрипция и AI-отзыв хранятся вместе с метаданными.
const maxAttrFileSize = 256 * 1024

// AttrFilePath возвращает путь к attr.json для данного файла видео.
// Пример: "/data/sess-1_a1b2.webm" → "/data/sess-1_a1b2.webm.attr.json"
func AttrFilePath(dataFilePath string) string {
	return dataFilePath + AttrSuffix
}

// DataFilePathFromAttr возвращает путь к файлу видео из пути attr.json.
func DataFilePathFromAttr(attrPath string) string {
	return strings.TrimSuffix(attrPath, AttrSuffix)
}

// IsAttrFile проверяет, является ли путь файлом метаданных.
func IsAttrFile(path string) bool {
	return strings.HasSuffix(path, AttrSuffix)
}

// Write атомарно записывает метаданные в attr.json.
// Паттерн: JSON → temp файл → fsync → atomic rename.
func Write(path string, meta *model.VideoMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	if len(data) > maxAttrFileSize {
		return fmt.Errorf("размер attr.json (%d байт) превышает максимум (%d байт)", len(data), maxAttrFileSize)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// Read читает и десериализует метаданные из attr.json.
func Read(path string) (*model.VideoMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения attr.json %s: %w", path, err)
	}

	var meta model.VideoMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("ошибка десериализации attr.json %s: %w", path, err)
	}
	if meta.SessionID == "" {
		return nil, fmt.Errorf("attr.json %s не содержит session_id", path)
	}

	return &meta, nil
}

// Delete удаляет attr.json. Отсутствие файла ошибкой не считается.
func Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления attr.json %s: %w", path, err)
	}
	return nil
}

// ScanResult — результат сканирования директории метаданных.
type ScanResult struct {
	// Items — успешно прочитанные метаданные
	Items []*model.VideoMetadata
	// Invalid — пути attr.json, которые не удалось прочитать
	Invalid []string
}

// ScanDir сканирует директорию (не рекурсивно) и читает все attr.json.
// Невалидные файлы не прерывают сканирование и возвращаются в Invalid.
func ScanDir(dir string) (*ScanResult, error) {
	pattern := filepath.Join(dir, "*"+AttrSuffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования директории %s: %w", dir, err)
	}

	result := &ScanResult{}
	for _, path := range matches {
		meta, err := Read(path)
		if err != nil {
			result.Invalid = append(result.Invalid, path)
			continue
		}
		result.Items = append(result.Items, meta)
	}

	return result, nil
}
