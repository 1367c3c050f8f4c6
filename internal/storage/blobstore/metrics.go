package blobstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	videosTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "im_videos_total",
		Help: "Текущее количество видеозаписей в хранилище",
	})

	storageUsedBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "im_storage_used_bytes",
		Help: "Объём, занятый видеозаписями, в байтах",
	})

	storageCapacityBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "im_storage_capacity_bytes",
		Help: "Ёмкость хранилища видеозаписей в байтах",
	})

	// operationsTotal — операции хранилища по типу и результату.
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "im_operations_total",
		Help: "Общее количество операций хранилища видеозаписей",
	}, []string{"operation", "result"})

	playbackHandlesOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "im_playback_handles_open",
		Help: "Количество открытых дескрипторов воспроизведения",
	})
)

func observe(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	operationsTotal.WithLabelValues(operation, result).Inc()
}
