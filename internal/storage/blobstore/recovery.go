package blobstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/attr"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/wal"
)

// snapshotFile — снимок счётчика занятого места. Начинается с точки,
// поэтому не попадает в перечисление файлов данных.
const snapshotFile = ".usage.json"

type usageSnapshot struct {
	UsedBytes int64     `json:"used_bytes"`
	Count     int       `json:"count"`
	SavedAt   time.Time `json:"saved_at"`
}

// recoverPending обрабатывает незавершённые WAL-транзакции.
//
// Точка фиксации записи и удаления — attr.json, поэтому решение
// принимается по его наличию, а не по статусу транзакции:
//   - video_create: валидный attr.json этой сессии означает, что запись
//     подтверждена вызывающему (не удалось записать только коммит WAL),
//     транзакция доводится до коммита; без attr.json удаляется только
//     частично записанный файл данных;
//   - video_delete: если attr.json ещё на месте, удаление не состоялось
//     и откатывается; иначе удаляется оставшийся файл данных;
//   - video_update: attr.json пишется атомарно, действий не требуется.
func (s *Store) recoverPending() error {
	pending, err := s.wal.RecoverPending()
	if err != nil {
		return err
	}

	for _, entry := range pending {
		committed := false
		if entry.StoragePath != "" {
			attrPath := attr.AttrFilePath(s.files.FullPath(entry.StoragePath))
			meta, readErr := attr.Read(attrPath)
			hasAttr := readErr == nil && meta.SessionID == entry.SessionID

			switch entry.Operation {
			case wal.OpVideoCreate:
				if hasAttr {
					committed = true
					break
				}
				if err := attr.Delete(attrPath); err != nil {
					return err
				}
				if err := s.files.DeleteFile(entry.StoragePath); err != nil {
					return err
				}
			case wal.OpVideoDelete:
				if !hasAttr {
					if err := s.files.DeleteFile(entry.StoragePath); err != nil {
						return err
					}
					committed = true
				}
			}
		}

		if committed {
			if err := s.wal.Commit(entry.TransactionID); err != nil {
				return err
			}
			s.logger.Warn("Незавершённая операция доведена до конца при открытии хранилища",
				slog.String("tx_id", entry.TransactionID),
				slog.String("operation", string(entry.Operation)),
				slog.String("session_id", entry.SessionID),
				slog.String("storage_path", entry.StoragePath),
			)
			continue
		}

		if err := s.wal.Rollback(entry.TransactionID); err != nil {
			return err
		}
		s.logger.Warn("Незавершённая операция отменена при открытии хранилища",
			slog.String("tx_id", entry.TransactionID),
			slog.String("operation", string(entry.Operation)),
			slog.String("session_id", entry.SessionID),
			slog.String("storage_path", entry.StoragePath),
		)
	}

	if _, err := s.wal.CleanCommitted(); err != nil {
		s.logger.Warn("Ошибка очистки WAL",
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// verifyUsage пересчитывает занятое место полным сканированием файлов
// записей и сравнивает результат с сохранённым снимком счётчика.
// Расхождение размеров с метаданными и со снимком логируется.
// Превышение ёмкости не приводит к удалению записей: квота
// проверяется только при записи.
func (s *Store) verifyUsage() error {
	var scanned int64
	for _, meta := range s.idx.List() {
		size, err := s.files.FileSize(meta.StoragePath)
		if err != nil {
			s.logger.Warn("Файл записи отсутствует при сканировании",
				slog.String("session_id", meta.SessionID),
				slog.String("storage_path", meta.StoragePath),
			)
			continue
		}
		if size != meta.SizeBytes {
			s.logger.Warn("Размер файла не совпадает с метаданными",
				slog.String("session_id", meta.SessionID),
				slog.Int64("expected", meta.SizeBytes),
				slog.Int64("actual", size),
			)
		}
		scanned += size
	}

	if snap, err := s.loadSnapshot(); err == nil && snap.UsedBytes != scanned {
		s.logger.Warn("Счётчик занятого места расходится со сканированием",
			slog.Int64("snapshot_bytes", snap.UsedBytes),
			slog.Int64("scanned_bytes", scanned),
			slog.Time("snapshot_at", snap.SavedAt),
		)
	}

	s.quota.reset(scanned)

	if scanned > s.quota.Capacity() {
		s.logger.Warn("Занятое место превышает ёмкость, новые записи будут отклонены",
			slog.String("used", FormatBytes(scanned)),
			slog.String("capacity", FormatBytes(s.quota.Capacity())),
		)
	}

	s.logger.Info("Учёт занятого места сверен",
		slog.Int("videos", s.idx.Count()),
		slog.String("used", FormatBytes(scanned)),
		slog.String("capacity", FormatBytes(s.quota.Capacity())),
	)
	return nil
}

func (s *Store) snapshotPath() string {
	return filepath.Join(s.files.DataDir(), snapshotFile)
}

func (s *Store) loadSnapshot() (*usageSnapshot, error) {
	data, err := os.ReadFile(s.snapshotPath())
	if err != nil {
		return nil, err
	}
	var snap usageSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// saveSnapshot атомарно записывает снимок счётчика: temp → rename.
func (s *Store) saveSnapshot() error {
	data, err := json.Marshal(usageSnapshot{
		UsedBytes: s.quota.Used(),
		Count:     s.idx.Count(),
		SavedAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	path := s.snapshotPath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("ошибка записи снимка счётчика: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	return nil
}
