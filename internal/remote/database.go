package remote

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/config"
)

// Схема удалённого хранилища: interview_sessions, interview_session_questions,
// interview_responses, response_analyses, session_summaries.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// Параметры пула. Локальное ядро обслуживает одного пользователя,
// к удалённой базе обращаются только синхронизация и чтение результатов.
const (
	poolMaxConns        = 4
	poolMaxConnIdleTime = 5 * time.Minute
	poolHealthCheck     = 30 * time.Second
	connectPingTimeout  = 5 * time.Second
	readyPingTimeout    = 3 * time.Second
)

// Connect открывает пул подключений к удалённому хранилищу сессий
// и проверяет его доступность.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN удалённого хранилища: %w", err)
	}
	poolCfg.MaxConns = poolMaxConns
	poolCfg.MaxConnIdleTime = poolMaxConnIdleTime
	poolCfg.HealthCheckPeriod = poolHealthCheck

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула удалённого хранилища: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectPingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("удалённое хранилище сессий недоступно: %w", err)
	}

	logger.Info("Удалённое хранилище сессий подключено",
		slog.String("url", cfg.DatabaseURL()),
		slog.Int("max_conns", poolMaxConns),
	)
	return pool, nil
}

// migrationURL собирает URL драйвера pgx5 для golang-migrate.
// Учётные данные экранируются: пароль может содержать @, / и ?.
func migrationURL(cfg *config.Config) string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     cfg.DBHost + ":" + strconv.Itoa(cfg.DBPort),
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {cfg.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// Migrate доводит схему удалённого хранилища до последней версии.
// Уже актуальная схема ошибкой не считается.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка чтения встроенных миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrationURL(cfg))
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций схемы интервью: %w", err)
	}
	defer m.Close()

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка миграции схемы интервью: %w", upErr)
	}

	version, dirty, _ := m.Version()
	logger.Info("Схема удалённого хранилища актуальна",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
		slog.Bool("changed", upErr == nil),
	)
	return nil
}

// Pinger — соединение, доступность которого можно проверить.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessChecker отдаёт состояние удалённого хранилища для /health/ready.
// Недоступность не делает сервис неготовым: сессии продолжают
// сохраняться локально и будут синхронизированы позже.
type ReadinessChecker struct {
	db      Pinger
	timeout time.Duration
}

// NewReadinessChecker создаёт проверку готовности удалённого хранилища.
func NewReadinessChecker(db Pinger) *ReadinessChecker {
	return &ReadinessChecker{db: db, timeout: readyPingTimeout}
}

// CheckReady возвращает "ok" или "fail" и пояснение.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.db.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("удалённое хранилище недоступно, синхронизация отложена: %v", err)
	}
	return "ok", "удалённое хранилище доступно"
}
