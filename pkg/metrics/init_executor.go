package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initExecutorMetrics() {
	r.BatchesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgraph_executor_batches_total",
			Help: "Batches executed, by final status",
		},
		[]string{"status"},
	)

	r.BatchDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docgraph_executor_batch_duration_seconds",
			Help:    "Time from begin to commit or rollback of a batch",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"status"},
	)

	r.BatchOperations = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docgraph_executor_batch_operations",
			Help:    "Number of operations per batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11),
		},
	)

	r.OperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgraph_executor_operations_total",
			Help: "Operations applied, by kind and outcome",
		},
		[]string{"op", "status"},
	)

	r.SpillsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgraph_executor_spills_total",
			Help: "Inline adjacency arrays moved to overflow documents",
		},
		[]string{"direction", "reason"},
	)

	r.OverflowDocumentsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgraph_executor_overflow_documents_total",
			Help: "Overflow documents created or deleted",
		},
		[]string{"event"},
	)
}

func (r *Registry) initStoreMetrics() {
	r.StorePrimitivesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgraph_store_primitives_total",
			Help: "Document primitives issued against the store, by primitive and result",
		},
		[]string{"primitive", "result"},
	)
}
