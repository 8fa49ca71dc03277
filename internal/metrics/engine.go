package metrics

import "github.com/prometheus/client_golang/prometheus"

// Similarity engine Prometheus metrics.
var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "simdex",
			Name:      "similarity_query_duration_seconds",
			Help:      "find_similar duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"status"}, // "ok" / "degraded" / "not_ready" / "error"
	)

	PathFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simdex",
			Name:      "retrieval_path_failures_total",
			Help:      "Retrieval path failures absorbed by fusion",
		},
		[]string{"path"},
	)

	RiskBandTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simdex",
			Name:      "risk_band_total",
			Help:      "Queries by resulting risk band",
		},
		[]string{"band"},
	)

	LexicalRebuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "simdex",
			Name:      "lexical_rebuild_duration_seconds",
			Help:      "Lexical index rebuild duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)

	LexicalIndexedDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "simdex",
			Name:      "lexical_indexed_documents",
			Help:      "Documents in the current lexical snapshot",
		},
	)
)

var engineMetricsRegistered bool

// RegisterEngineMetrics registers similarity engine metrics. Must be called once from main.
func RegisterEngineMetrics() {
	if engineMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(PathFailuresTotal)
	prometheus.MustRegister(RiskBandTotal)
	prometheus.MustRegister(LexicalRebuildDuration)
	prometheus.MustRegister(LexicalIndexedDocuments)
	engineMetricsRegistered = true
}
