package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Retrieval and ingestion Prometheus metrics.
var (
	RetrievalPassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "retrieval_passes_total",
			Help:      "Retrieval passes by outcome",
		},
		[]string{"outcome"}, // "results" / "empty" / "cancelled"
	)

	RetrievalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "End-to-end retrieve latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	SourceFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "source_failures_total",
			Help:      "Retrieval sources that were unavailable or errored",
		},
		[]string{"source", "kind"},
	)

	EnrichmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "enrichments_total",
			Help:      "Ingestion attempts triggered by retrieval",
		},
		[]string{"trigger", "result"}, // trigger: eager/reactive/manual; result: ok/failed
	)

	LexicalRebuildsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "lexical_rebuilds_total",
			Help:      "BM25 snapshot rebuilds",
		},
	)

	LexicalDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "lexical_documents",
			Help:      "Documents in the current BM25 snapshot",
		},
	)

	IngestedDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ingested_documents_total",
			Help:      "Documents written into collections",
		},
		[]string{"collection"},
	)
)

var retrievalOnce sync.Once

// RegisterRetrievalMetrics registers retrieval and ingestion metrics. Safe to call repeatedly.
func RegisterRetrievalMetrics() {
	retrievalOnce.Do(func() {
		prometheus.MustRegister(
			RetrievalPassesTotal,
			RetrievalDuration,
			SourceFailuresTotal,
			EnrichmentsTotal,
			LexicalRebuildsTotal,
			LexicalDocuments,
			IngestedDocumentsTotal,
		)
	})
}
