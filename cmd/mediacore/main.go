// Точка входа mediacore — локального ядра записи интервью.
// Загружает конфигурацию, открывает хранилище записей и базу сессий,
// при наличии IM_DB_HOST подключается к PostgreSQL, запускает фоновые
// проверки целостности и синхронизации, HTTP-сервер и graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/api/handlers"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/api/middleware"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/config"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/media/transcode"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/remote"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/server"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/service"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/session"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/blobstore"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/dirlock"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/sessiondb"
)

func main() {
	// 1. Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("mediacore запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.Bool("remote_enabled", cfg.RemoteEnabled()),
	)

	ctx := context.Background()

	// 3. Эксклюзивное владение директорией данных
	lock, err := dirlock.Acquire(cfg.DataDir, cfg.Port, logger)
	if err != nil {
		logger.Error("Ошибка захвата директории данных",
			slog.String("data_dir", cfg.DataDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer lock.Release()

	// 3.1 Хранилище записей (WAL-откат незавершённых операций выполняется при открытии)
	store, err := blobstore.Open(blobstore.Options{
		DataDir:        cfg.DataDir,
		WALDir:         cfg.WALDir,
		CapacityBytes:  cfg.CapacityBytes,
		MaxOpenHandles: cfg.MaxOpenHandles,
		LoadTimeout:    cfg.LoadTimeout,
	}, logger)
	if err != nil {
		logger.Error("Ошибка открытия хранилища записей", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	_, capacity := store.Usage()
	checkDiskCapacity(cfg.DataDir, capacity, logger)

	// 4. Локальная база сессий
	sessDB, err := sessiondb.Open(cfg.SessionDB)
	if err != nil {
		logger.Error("Ошибка открытия базы сессий",
			slog.String("path", cfg.SessionDB),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer sessDB.Close()

	// 5. Удалённое хранилище: PostgreSQL или автономный режим
	var (
		remoteStore  remote.Store
		remoteReady  handlers.RemoteReadinessChecker
		remoteMode   = handlers.RemoteModeOffline
		dephealthSvc *service.DephealthService
	)
	if cfg.RemoteEnabled() {
		logger.Info("Применение миграций БД...")
		if err := remote.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}

		pool, err := remote.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		remoteStore = remote.NewPostgresStore(pool)
		remoteReady = remote.NewReadinessChecker(pool)
		remoteMode = handlers.RemoteModeOnline

		// Адаптер pgxpool → *sql.DB для topologymetrics
		pgDB := stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		dephealthSvc = startDephealth(ctx, cfg, pgDB, logger)
	} else {
		logger.Warn("IM_DB_HOST не задан, работа в автономном режиме")
		offline := remote.NewOffline()
		remoteStore = offline
		remoteReady = offline
	}

	// 6. Конвертер записей
	transcoder, err := transcode.New(cfg.FFmpegPath, "", logger)
	if err != nil {
		logger.Error("Ошибка инициализации конвертера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Сервисы
	manager := session.NewManager(sessDB, remoteStore, session.Options{
		RemoteTimeout: cfg.RemoteTimeout,
		LoadTimeout:   cfg.LoadTimeout,
	}, logger)

	watcher := session.NewWatcher(manager, logger)
	watcher.OnBecomeActive(func(_ context.Context, userID, sessionID string) {
		logger.Debug("Клиенту предложено продолжить сессию",
			slog.String("user_id", userID),
			slog.String("session_id", sessionID),
		)
	})

	results := service.NewResultsService(manager, remoteStore, service.ResultsOptions{
		RemoteTimeout:      cfg.RemoteTimeout,
		PositionalFallback: cfg.PositionalFallback,
		CacheSize:          cfg.AnalysisCacheSize,
		CacheTTL:           cfg.AnalysisCacheTTL,
	}, logger)

	exportSvc := service.NewExportService(store, transcoder, logger)

	// 8. Фоновые процессы
	integritySvc := service.NewIntegrityService(store, cfg.IntegrityInterval, logger)
	integritySvc.Start(ctx)

	syncSvc := service.NewSyncService(manager, cfg.SyncInterval, cfg.SyncedRetention, logger)
	syncSvc.Start(ctx)

	// 9. Handlers
	apiHandler := handlers.NewAPIHandler(
		handlers.NewVideosHandler(store, exportSvc),
		handlers.NewSessionsHandler(manager, results, watcher),
		handlers.NewSystemHandler(store, sessDB, remoteMode),
		handlers.NewMaintenanceHandler(integritySvc, syncSvc),
		handlers.NewHealthHandler(cfg.DataDir, cfg.WALDir, store, sessDB, remoteReady),
	)

	// 10. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler,
		middleware.RequestLogger(logger),
		middleware.MetricsMiddleware(),
	)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	integritySvc.Stop()
	syncSvc.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("mediacore остановлен")
}
