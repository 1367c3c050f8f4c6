// Пакет config — загрузка и валидация конфигурации ядра интервью-медиа
// из переменных окружения (префикс IM_) и необязательного файла .env.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Путь к директории хранения видеозаписей
	DataDir string
	// Путь к директории WAL
	WALDir string
	// Путь к файлу SQLite с состоянием сессий
	SessionDB string

	// Ёмкость хранилища записей в байтах
	CapacityBytes int64
	// Размер пула дескрипторов воспроизведения
	MaxOpenHandles int
	// Жёсткий предел ожидания загрузки
	LoadTimeout time.Duration
	// Таймаут обращений к удалённому хранилищу
	RemoteTimeout time.Duration

	SyncInterval      time.Duration
	IntegrityInterval time.Duration
	// Сколько хранить локально синхронизированные сессии
	SyncedRetention time.Duration

	AnalysisCacheSize int
	AnalysisCacheTTL  time.Duration

	// Разрешить позиционное сопоставление анализов
	PositionalFallback bool

	// Путь к ffmpeg; пустой — поиск в PATH
	FFmpegPath string

	// Параметры удалённого хранилища (PostgreSQL).
	// Пустой DBHost — автономный режим без удалённого хранилища.
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Имя владельца пода для метки name в topologymetrics (DEPHEALTH_NAME)
	DephealthName string

	LogLevel  slog.Level
	LogFormat string

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
// Файл .env в текущей директории читается первым, если он есть;
// уже заданные переменные окружения имеют приоритет.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("ошибка чтения .env: %w", err)
	}
	return load()
}

// LoadFile — как Load, но с явным путём к .env (обязательным).
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", path, err)
	}
	return load()
}

func load() (*Config, error) {
	cfg := &Config{}
	var err error

	// IM_PORT — порт HTTP-сервера (по умолчанию 8090)
	cfg.Port, err = getEnvInt("IM_PORT", 8090)
	if err != nil {
		return nil, fmt.Errorf("IM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("IM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// IM_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("IM_DATA_DIR")
	if err != nil {
		return nil, err
	}

	cfg.WALDir = getEnvDefault("IM_WAL_DIR", filepath.Join(cfg.DataDir, "wal"))
	cfg.SessionDB = getEnvDefault("IM_SESSION_DB", filepath.Join(cfg.DataDir, "sessions.db"))

	// IM_CAPACITY_BYTES — ёмкость хранилища (по умолчанию 1 GiB)
	cfg.CapacityBytes, err = getEnvInt64("IM_CAPACITY_BYTES", 1<<30)
	if err != nil {
		return nil, fmt.Errorf("IM_CAPACITY_BYTES: %w", err)
	}
	if cfg.CapacityBytes <= 0 {
		return nil, fmt.Errorf("IM_CAPACITY_BYTES: значение должно быть положительным")
	}

	cfg.MaxOpenHandles, err = getEnvInt("IM_MAX_OPEN_HANDLES", 16)
	if err != nil {
		return nil, fmt.Errorf("IM_MAX_OPEN_HANDLES: %w", err)
	}
	if cfg.MaxOpenHandles <= 0 {
		return nil, fmt.Errorf("IM_MAX_OPEN_HANDLES: значение должно быть положительным")
	}

	if cfg.LoadTimeout, err = getEnvPositiveDuration("IM_LOAD_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RemoteTimeout, err = getEnvPositiveDuration("IM_REMOTE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.SyncInterval, err = getEnvPositiveDuration("IM_SYNC_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.IntegrityInterval, err = getEnvPositiveDuration("IM_INTEGRITY_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SyncedRetention, err = getEnvPositiveDuration("IM_SYNCED_RETENTION", 168*time.Hour); err != nil {
		return nil, err
	}

	cfg.AnalysisCacheSize, err = getEnvInt("IM_ANALYSIS_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("IM_ANALYSIS_CACHE_SIZE: %w", err)
	}
	if cfg.AnalysisCacheSize <= 0 {
		return nil, fmt.Errorf("IM_ANALYSIS_CACHE_SIZE: значение должно быть положительным")
	}
	if cfg.AnalysisCacheTTL, err = getEnvPositiveDuration("IM_ANALYSIS_CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}

	cfg.PositionalFallback, err = getEnvBool("IM_POSITIONAL_FALLBACK", true)
	if err != nil {
		return nil, fmt.Errorf("IM_POSITIONAL_FALLBACK: %w", err)
	}

	cfg.FFmpegPath = getEnvDefault("IM_FFMPEG_PATH", "")

	// Удалённое хранилище. Без IM_DB_HOST работаем автономно.
	cfg.DBHost = getEnvDefault("IM_DB_HOST", "")
	cfg.DBPort, err = getEnvInt("IM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("IM_DB_PORT: %w", err)
	}
	cfg.DBName = getEnvDefault("IM_DB_NAME", "interview")
	cfg.DBUser = getEnvDefault("IM_DB_USER", "")
	cfg.DBPassword = getEnvDefault("IM_DB_PASSWORD", "")
	cfg.DBSSLMode = getEnvDefault("IM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("IM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}
	if cfg.DBHost != "" && cfg.DBUser == "" {
		return nil, fmt.Errorf("IM_DB_USER: обязателен, если задан IM_DB_HOST")
	}

	if cfg.DephealthCheckInterval, err = getEnvPositiveDuration("IM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	cfg.DephealthGroup = getEnvDefault("IM_DEPHEALTH_GROUP", "interview-media")
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "")

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("IM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("IM_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("IM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("IM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	if cfg.ShutdownTimeout, err = getEnvPositiveDuration("IM_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RemoteEnabled — true, если настроено удалённое хранилище.
func (c *Config) RemoteEnabled() bool {
	return c.DBHost != ""
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для меток topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// getEnvPositiveDuration — getEnvDuration с проверкой на положительность.
// Ошибка уже содержит имя переменной.
func getEnvPositiveDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: значение должно быть положительным", key)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
