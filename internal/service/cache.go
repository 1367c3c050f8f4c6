// AnalysisCache — LRU-кэш серверных анализов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "im_analysis_cache_hits_total",
		Help: "Общее количество попаданий в кэш анализов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "im_analysis_cache_misses_total",
		Help: "Общее количество промахов кэша анализов.",
	})
)

// AnalysisCache хранит анализы сессий. Пустые списки не кэшируются:
// анализы появляются на сервере асинхронно.
type AnalysisCache struct {
	cache *expirable.LRU[string, []model.AnalysisRecord]
}

// NewAnalysisCache создаёт кэш на maxSize сессий с временем жизни ttl.
func NewAnalysisCache(maxSize int, ttl time.Duration) *AnalysisCache {
	return &AnalysisCache{
		cache: expirable.NewLRU[string, []model.AnalysisRecord](maxSize, nil, ttl),
	}
}

// Get возвращает анализы сессии из кэша.
func (c *AnalysisCache) Get(sessionID string) ([]model.AnalysisRecord, bool) {
	val, ok := c.cache.Get(sessionID)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set сохраняет анализы. Пустой список игнорируется.
func (c *AnalysisCache) Set(sessionID string, analyses []model.AnalysisRecord) {
	if len(analyses) == 0 {
		return
	}
	c.cache.Add(sessionID, analyses)
}

// Delete удаляет анализы сессии из кэша.
func (c *AnalysisCache) Delete(sessionID string) {
	c.cache.Remove(sessionID)
}

// Len возвращает количество сессий в кэше.
func (c *AnalysisCache) Len() int {
	return c.cache.Len()
}
