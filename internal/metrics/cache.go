package metrics

import "github.com/prometheus/client_golang/prometheus"

// Cache and deduplication Prometheus metrics.
var (
	CacheEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phc",
			Name:      "cache_events_total",
			Help:      "Cache events by type",
		},
		[]string{"event"}, // hit, miss, expired, evicted, rejected
	)

	CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "phc",
			Name:      "cache_entries",
			Help:      "Live entries in the cache at the last stats read",
		},
	)

	DedupQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phc",
			Name:      "dedup_queries_total",
			Help:      "Queries seen by the deduplication index",
		},
		[]string{"namespace", "result"}, // new, duplicate
	)

	SnapshotOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phc",
			Name:      "cache_snapshot_ops_total",
			Help:      "Cache snapshot saves and loads",
		},
		[]string{"op", "status"},
	)
)

var cacheMetricsRegistered bool

// RegisterCacheMetrics registers cache and dedup metrics. Must be called once from main.
func RegisterCacheMetrics() {
	if cacheMetricsRegistered {
		return
	}
	prometheus.MustRegister(CacheEventsTotal)
	prometheus.MustRegister(CacheEntries)
	prometheus.MustRegister(DedupQueriesTotal)
	prometheus.MustRegister(SnapshotOpsTotal)
	cacheMetricsRegistered = true
}
