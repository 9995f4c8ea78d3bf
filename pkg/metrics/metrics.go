package metrics

import (
	"runtime"
	"time"
)

// RecordBatch records one executed batch
func (r *Registry) RecordBatch(status string, operations int, duration time.Duration) {
	r.BatchesTotal.WithLabelValues(status).Inc()
	r.BatchDuration.WithLabelValues(status).Observe(duration.Seconds())
	r.BatchOperations.Observe(float64(operations))
}

// RecordOperation records one applied operation
func (r *Registry) RecordOperation(op, status string) {
	r.OperationsTotal.WithLabelValues(op, status).Inc()
}

// RecordSpill records a direction moving to overflow documents
func (r *Registry) RecordSpill(direction, reason string) {
	r.SpillsTotal.WithLabelValues(direction, reason).Inc()
}

// RecordOverflowDocument records an overflow document being created or deleted
func (r *Registry) RecordOverflowDocument(event string) {
	r.OverflowDocumentsTotal.WithLabelValues(event).Inc()
}

// RecordPrimitive records one document primitive and its result
func (r *Registry) RecordPrimitive(primitive, result string) {
	r.StorePrimitivesTotal.WithLabelValues(primitive, result).Inc()
}

// RecordClientBatch records a batch outcome as seen by a client
func (r *Registry) RecordClientBatch(status string) {
	r.ClientBatchesTotal.WithLabelValues(status).Inc()
}

// RecordClientRetry records a resubmitted batch
func (r *Registry) RecordClientRetry() {
	r.ClientRetriesTotal.Inc()
}

// RecordTransfer records frame bytes sent ("tx") or received ("rx")
func (r *Registry) RecordTransfer(direction string, n int) {
	r.TransportBytesTotal.WithLabelValues(direction).Add(float64(n))
}

// RecordRoundTrip records one transport round trip
func (r *Registry) RecordRoundTrip(result string) {
	r.TransportRequestsTotal.WithLabelValues(result).Inc()
}

// UpdateSystemMetrics refreshes uptime, goroutine and heap gauges
func (r *Registry) UpdateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	r.UptimeSeconds.Set(time.Since(r.started).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
	r.MemoryAllocBytes.Set(float64(m.Alloc))
}
