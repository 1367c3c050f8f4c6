// disk_usage.go — проверка свободного места под хранилище записей.
// Платформозависимый код для Unix-подобных систем.
package main

import (
	"fmt"
	"log/slog"
	"syscall"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/blobstore"
)

// getDiskUsage возвращает информацию о дисковом пространстве в директории.
// Возвращает total, used, available в байтах.
func getDiskUsage(path string) (total, used, available int64, err error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, 0, 0, fmt.Errorf("ошибка statfs %s: %w", path, err)
	}

	total = int64(stat.Blocks) * int64(stat.Bsize)
	available = int64(stat.Bavail) * int64(stat.Bsize)
	used = total - available

	return total, used, available, nil
}

// checkDiskCapacity предупреждает, если на диске меньше места,
// чем заявленная ёмкость хранилища.
func checkDiskCapacity(dataDir string, capacity int64, logger *slog.Logger) {
	total, _, available, err := getDiskUsage(dataDir)
	if err != nil {
		logger.Warn("Не удалось получить информацию о диске", slog.String("error", err.Error()))
		return
	}

	logger.Info("Дисковое пространство",
		slog.String("data_dir", dataDir),
		slog.String("total", blobstore.FormatBytes(total)),
		slog.String("available", blobstore.FormatBytes(available)),
		slog.String("capacity", blobstore.FormatBytes(capacity)),
	)
	if available < capacity {
		logger.Warn("Свободного места на диске меньше ёмкости хранилища",
			slog.Int64("available_bytes", available),
			slog.Int64("capacity_bytes", capacity),
		)
	}
}
