// Пакет wal — файловый Write-Ahead Log для атомарности операций
// с видеозаписями. Каждая транзакция — отдельный файл
// {tx_id}.wal.json в IM_WAL_DIR.
package wal

import (
	"time"
)

// OperationType — тип операции, записываемой в WAL.
type OperationType string

const (
	// OpVideoCreate — сохранение новой записи (put)
	OpVideoCreate OperationType = "video_create"
	// OpVideoUpdate — дополнение метаданных (транскрипция, отзыв)
	OpVideoUpdate OperationType = "video_update"
	// OpVideoDelete — удаление записи
	OpVideoDelete OperationType = "video_delete"
)

// TransactionStatus — статус транзакции WAL.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusCommitted  TransactionStatus = "committed"
	StatusRolledBack TransactionStatus = "rolled_back"
)

// Entry — запись WAL. Хранится как JSON-файл {tx_id}.wal.json.
type Entry struct {
	TransactionID string            `json:"transaction_id"`
	Operation     OperationType     `json:"operation"`
	Status        TransactionStatus `json:"status"`

	// SessionID — сессия, над записью которой выполняется операция
	SessionID string `json:"session_id"`

	// StoragePath — файл данных, затронутый операцией.
	// Для video_create заполняется после записи файла на диск.
	StoragePath string `json:"storage_path,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// walFileName возвращает имя файла WAL для данной транзакции.
func walFileName(txID string) string {
	return txID + ".wal.json"
}
