// Пакет model — доменные модели ядра интервью-медиа.
// VideoMetadata — единая структура метаданных видеозаписи, используется
// как in-memory представление и как формат sidecar-файла на диске.
package model

import (
	"time"
)

// Transcription — результат транскрибации записи.
type Transcription struct {
	Text            string  `json:"text"`
	Confidence      float64 `json:"confidence"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// AIFeedback — итоговая AI-оценка записи.
type AIFeedback struct {
	OverallScore     float64  `json:"overall_score"`
	Strengths        []string `json:"strengths"`
	Improvements     []string `json:"improvements"`
	DetailedFeedback string   `json:"detailed_feedback"`
}

// VideoMetadata — метаданные видеозаписи. Соответствует содержимому sidecar.
// Поля StoragePath и Checksum не входят в публичный контракт, но
// сохраняются для привязки к физическому файлу и проверки целостности.
type VideoMetadata struct {
	// SessionID — ключ записи, одна запись на сессию интервью
	SessionID string `json:"session_id"`

	// Timestamp — момент завершения интервью (UTC)
	Timestamp time.Time `json:"timestamp"`

	DurationSeconds float64 `json:"duration_seconds"`

	// DeclaredFormat — MIME-тип, заявленный при записи (не доверяем)
	DeclaredFormat string `json:"declared_format"`

	// SizeBytes — всегда равен фактической длине blob
	SizeBytes int64 `json:"size_bytes"`

	HasAudio bool `json:"has_audio"`

	// StoragePath — имя файла данных относительно директории хранения
	StoragePath string `json:"storage_path"`

	// Checksum — SHA-256 содержимого blob
	Checksum string `json:"checksum"`

	Transcription *Transcription `json:"transcription,omitempty"`
	AIFeedback    *AIFeedback    `json:"ai_feedback,omitempty"`
}

// Clone возвращает глубокую копию метаданных.
func (m *VideoMetadata) Clone() *VideoMetadata {
	c := *m
	if m.Transcription != nil {
		t := *m.Transcription
		c.Transcription = &t
	}
	if m.AIFeedback != nil {
		f := *m.AIFeedback
		f.Strengths = append([]string(nil), m.AIFeedback.Strengths...)
		f.Improvements = append([]string(nil), m.AIFeedback.Improvements...)
		c.AIFeedback = &f
	}
	return &c
}

// VideoRecord — запись вместе с содержимым.
// Blob принадлежит вызывающему коду: хранилище всегда отдаёт копию.
type VideoRecord struct {
	Metadata *VideoMetadata
	Blob     []byte
}

// StorageStats — сводная статистика хранилища.
type StorageStats struct {
	Count        int        `json:"count"`
	TotalBytes   int64      `json:"total_bytes"`
	AverageBytes int64      `json:"average_bytes"`
	Oldest       *time.Time `json:"oldest,omitempty"`
	Newest       *time.Time `json:"newest,omitempty"`
}
