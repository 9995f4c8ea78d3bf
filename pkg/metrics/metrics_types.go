package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// Executor Metrics
	BatchesTotal           *prometheus.CounterVec
	BatchDuration          *prometheus.HistogramVec
	BatchOperations        prometheus.Histogram
	OperationsTotal        *prometheus.CounterVec
	SpillsTotal            *prometheus.CounterVec
	OverflowDocumentsTotal *prometheus.CounterVec

	// Store Metrics
	StorePrimitivesTotal *prometheus.CounterVec

	// Client Metrics
	ClientBatchesTotal *prometheus.CounterVec
	ClientRetriesTotal prometheus.Counter

	// Transport Metrics
	TransportBytesTotal    *prometheus.CounterVec
	TransportRequestsTotal *prometheus.CounterVec

	// System Metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge

	registry *prometheus.Registry
	started  time.Time
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		started:  time.Now(),
	}

	r.initExecutorMetrics()
	r.initStoreMetrics()
	r.initClientMetrics()
	r.initTransportMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
