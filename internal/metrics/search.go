package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search Prometheus metrics.
var (
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procsift",
			Name:      "searches_total",
			Help:      "Total number of search requests",
		},
		[]string{"engine", "status"}, // status: "ok" / "degraded"
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "procsift",
			Name:      "search_duration_seconds",
			Help:      "Search execution duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"engine"},
	)

	ExpansionMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "procsift",
			Name:      "expansion_misses_total",
			Help:      "Searches whose keyword was absent from the synonym dictionary",
		},
	)

	DictionaryReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procsift",
			Name:      "dictionary_reloads_total",
			Help:      "Synonym dictionary reload attempts",
		},
		[]string{"result"}, // "ok" / "error"
	)

	EngineFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procsift",
			Name:      "engine_fallbacks_total",
			Help:      "Engine selections that fell back to the baseline",
		},
		[]string{"requested"},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(ExpansionMissesTotal)
	prometheus.MustRegister(DictionaryReloadsTotal)
	prometheus.MustRegister(EngineFallbacksTotal)
	searchMetricsRegistered = true
}
