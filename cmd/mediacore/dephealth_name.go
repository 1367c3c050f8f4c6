// dephealth_name.go — имя вершины графа topologymetrics.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/config"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/service"
)

// defaultDephealthName используется, если hostname недоступен.
const defaultDephealthName = "mediacore"

// startDephealth запускает мониторинг PostgreSQL.
// Ошибки не фатальны: сервис работает без мониторинга зависимостей.
func startDephealth(ctx context.Context, cfg *config.Config, db *sql.DB, logger *slog.Logger) *service.DephealthService {
	name := dephealthName(cfg)

	svc, err := service.NewDephealthService(
		name,
		cfg.DephealthGroup,
		db,
		cfg.DatabaseURL(),
		cfg.DephealthCheckInterval,
		logger,
	)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if err := svc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		return nil
	}

	logger.Info("topologymetrics запущен",
		slog.String("name", name),
		slog.String("group", cfg.DephealthGroup),
		slog.String("check_interval", cfg.DephealthCheckInterval.String()),
	)
	return svc
}

// dephealthName: DEPHEALTH_NAME, иначе владелец пода из hostname.
func dephealthName(cfg *config.Config) string {
	if cfg.DephealthName != "" {
		return cfg.DephealthName
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return defaultDephealthName
	}
	return parseOwnerName(host)
}

// parseOwnerName извлекает имя владельца пода из hostname.
//
//	Deployment:  <name>-<pod-template-hash>-<suffix>  → <name>
//	StatefulSet: <name>-<ordinal>                     → <name>
//
// Остальные имена возвращаются без изменений.
func parseOwnerName(hostname string) string {
	parts := strings.Split(hostname, "-")
	n := len(parts)

	if n >= 2 {
		if _, err := strconv.Atoi(parts[n-1]); err == nil {
			return strings.Join(parts[:n-1], "-")
		}
	}

	if n >= 3 && isPodSuffix(parts[n-1]) && isTemplateHash(parts[n-2]) {
		return strings.Join(parts[:n-2], "-")
	}

	return hostname
}

// isPodSuffix — случайный суффикс пода: 5 символов [a-z0-9].
func isPodSuffix(s string) bool {
	return len(s) == 5 && isLowerAlnum(s)
}

// isTemplateHash — pod-template-hash ReplicaSet: 6–10 символов [a-z0-9].
func isTemplateHash(s string) bool {
	return len(s) >= 6 && len(s) <= 10 && isLowerAlnum(s)
}

func isLowerAlnum(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
