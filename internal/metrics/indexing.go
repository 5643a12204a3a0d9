package metrics

import "github.com/prometheus/client_golang/prometheus"

// Indexing and query Prometheus metrics.
var (
	IndexRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Name:      "index_runs_total",
			Help:      "Total number of indexing runs",
		},
		[]string{"trigger", "status"}, // trigger: "api" / "schedule", status: "ok" / "error"
	)

	IndexRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docrag",
			Name:      "index_run_duration_seconds",
			Help:      "Indexing run duration in seconds",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	IndexChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Name:      "index_chunks_total",
			Help:      "Total chunks written or removed by the indexer",
		},
		[]string{"op"}, // "upsert" / "delete"
	)

	IndexDocumentErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Name:      "index_document_errors_total",
			Help:      "Total documents skipped due to extraction or batch errors",
		},
		[]string{"stage"}, // "extract" / "embed" / "store"
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Name:      "queries_total",
			Help:      "Total number of answered queries",
		},
		[]string{"status"}, // "ok" / "empty" / "error"
	)

	QueryRetrievedChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docrag",
			Name:      "query_retrieved_chunks",
			Help:      "Number of chunks retrieved per query",
			Buckets:   []float64{0, 1, 2, 4, 8, 12, 16, 20},
		},
	)
)

var indexMetricsRegistered bool

// RegisterIndexingMetrics registers indexing and query metrics. Must be called once from main.
func RegisterIndexingMetrics() {
	if indexMetricsRegistered {
		return
	}
	prometheus.MustRegister(IndexRunsTotal)
	prometheus.MustRegister(IndexRunDuration)
	prometheus.MustRegister(IndexChunksTotal)
	prometheus.MustRegister(IndexDocumentErrorsTotal)
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryRetrievedChunks)
	indexMetricsRegistered = true
}
