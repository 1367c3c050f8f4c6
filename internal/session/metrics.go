package session

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/remote"
)

var (
	// sessionOpsTotal — операции над сессиями по результату.
	sessionOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "im_session_operations_total",
		Help: "Количество операций над сессиями интервью",
	}, []string{"operation", "result"})

	// remoteWritesTotal — best-effort записи в удалённое хранилище.
	remoteWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "im_remote_writes_total",
		Help: "Количество записей в удалённое хранилище",
	}, []string{"operation", "result"})
)

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	sessionOpsTotal.WithLabelValues(op, result).Inc()
}

func observeRemote(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, remote.ErrUnavailable):
		result = "offline"
	default:
		result = "error"
	}
	remoteWritesTotal.WithLabelValues(op, result).Inc()
}
