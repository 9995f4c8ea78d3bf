package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initClientMetrics() {
	r.ClientBatchesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgraph_client_batches_total",
			Help: "Batches submitted by clients, by status",
		},
		[]string{"status"},
	)

	r.ClientRetriesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "docgraph_client_retries_total",
			Help: "Batches resubmitted after a not-accepted response",
		},
	)
}

func (r *Registry) initTransportMetrics() {
	r.TransportBytesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgraph_transport_bytes_total",
			Help: "Frame bytes moved by the transport",
		},
		[]string{"direction"},
	)

	r.TransportRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgraph_transport_requests_total",
			Help: "Round trips handled by the transport, by result",
		},
		[]string{"result"},
	)
}
