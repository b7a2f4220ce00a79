package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	cacheLabel  = "cache"
	resultLabel = "result"

	datasetCache = "dataset"
	heatmapCache = "heatmap"

	cacheHit   = "hit"
	cacheMiss  = "miss"
	cacheError = "error"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_cache_lookups_total",
		Help: "The lookups in the Redis cache by cached value and result.",
	}, []string{
		cacheLabel,
		resultLabel,
	})
)

func instrumentCacheLookup(cache, result string) {
	cacheLookups.With(prometheus.Labels{
		cacheLabel:  cache,
		resultLabel: result,
	}).Inc()
}
