package metrics

import "github.com/prometheus/client_golang/prometheus"

// Embedding and ingestion Prometheus metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvindex",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cvindex",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "model"},
	)

	EmbeddingFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvindex",
			Name:      "embedding_failures_total",
			Help:      "Embedding attempts that produced no vector, by reason",
		},
		[]string{"provider", "model", "reason"},
	)

	EmbeddingFallbackChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvindex",
			Name:      "embedding_fallback_chunks_total",
			Help:      "Chunks embedded during oversized-text fallback",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvindex",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	IngestDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvindex",
			Name:      "ingest_documents_total",
			Help:      "CV documents processed by ingestion, by outcome",
		},
		[]string{"outcome"}, // "embedded" / "skipped" / "failed"
	)

	IngestRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cvindex",
			Name:      "ingest_run_duration_seconds",
			Help:      "Wall-clock duration of an ingestion run",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
		},
	)
)

var metricsRegistered bool

// RegisterEmbeddingMetrics registers Prometheus embedding and ingestion
// metrics. Must be called once from main.
func RegisterEmbeddingMetrics() {
	if metricsRegistered {
		return
	}
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingFailuresTotal)
	prometheus.MustRegister(EmbeddingFallbackChunksTotal)
	prometheus.MustRegister(EmbeddingCacheTotal)
	prometheus.MustRegister(IngestDocumentsTotal)
	prometheus.MustRegister(IngestRunDuration)
	metricsRegistered = true
}
