package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}

	if r.BatchesTotal == nil {
		t.Error("BatchesTotal not initialized")
	}
	if r.SpillsTotal == nil {
		t.Error("SpillsTotal not initialized")
	}
	if r.TransportBytesTotal == nil {
		t.Error("TransportBytesTotal not initialized")
	}
	if r.registry == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestDefaultRegistry(t *testing.T) {
	r1 := DefaultRegistry()
	r2 := DefaultRegistry()

	if r1 != r2 {
		t.Error("DefaultRegistry() should return the same instance")
	}
}

func TestRecordBatch(t *testing.T) {
	r := NewRegistry()

	r.RecordBatch("success", 3, 10*time.Millisecond)
	r.RecordBatch("success", 1, 20*time.Millisecond)
	r.RecordBatch("dberror", 2, 5*time.Millisecond)

	if got := counterValue(t, r.BatchesTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("success batches = %v, want 2", got)
	}
	if got := counterValue(t, r.BatchesTotal.WithLabelValues("dberror")); got != 1 {
		t.Errorf("dberror batches = %v, want 1", got)
	}

	histogram, err := r.BatchDuration.GetMetricWithLabelValues("success")
	if err != nil {
		t.Fatalf("Failed to get histogram: %v", err)
	}
	var metric dto.Metric
	if err := histogram.(prometheus.Histogram).Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 2 {
		t.Errorf("Sample count = %v, want 2", metric.Histogram.GetSampleCount())
	}
	sum := metric.Histogram.GetSampleSum()
	if sum < 0.029 || sum > 0.031 {
		t.Errorf("Sample sum = %v, want ~0.03", sum)
	}

	metric.Reset()
	if err := r.BatchOperations.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Histogram.GetSampleSum() != 6 {
		t.Errorf("operations sum = %v, want 6", metric.Histogram.GetSampleSum())
	}
}

func TestSpillAndOverflowMetrics(t *testing.T) {
	r := NewRegistry()

	r.RecordSpill("out", "threshold")
	r.RecordSpill("out", "threshold")
	r.RecordSpill("in", "too_large")
	r.RecordOverflowDocument("created")
	r.RecordOverflowDocument("deleted")
	r.RecordOverflowDocument("created")

	if got := counterValue(t, r.SpillsTotal.WithLabelValues("out", "threshold")); got != 2 {
		t.Errorf("out/threshold spills = %v, want 2", got)
	}
	if got := counterValue(t, r.SpillsTotal.WithLabelValues("in", "too_large")); got != 1 {
		t.Errorf("in/too_large spills = %v, want 1", got)
	}
	if got := counterValue(t, r.OverflowDocumentsTotal.WithLabelValues("created")); got != 2 {
		t.Errorf("created = %v, want 2", got)
	}
}

func TestTransportAndClientMetrics(t *testing.T) {
	r := NewRegistry()

	r.RecordTransfer("tx", 100)
	r.RecordTransfer("tx", 28)
	r.RecordRoundTrip("ok")
	r.RecordClientRetry()
	r.RecordClientBatch("not_accepted")

	if got := counterValue(t, r.TransportBytesTotal.WithLabelValues("tx")); got != 128 {
		t.Errorf("tx bytes = %v, want 128", got)
	}
	if got := counterValue(t, r.TransportRequestsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("round trips = %v, want 1", got)
	}
	if got := counterValue(t, r.ClientRetriesTotal); got != 1 {
		t.Errorf("retries = %v, want 1", got)
	}
	if got := counterValue(t, r.ClientBatchesTotal.WithLabelValues("not_accepted")); got != 1 {
		t.Errorf("client batches = %v, want 1", got)
	}
}

func TestSystemMetrics(t *testing.T) {
	r := NewRegistry()
	r.UpdateSystemMetrics()

	var metric dto.Metric
	if err := r.GoRoutines.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Gauge.GetValue() < 1 {
		t.Errorf("goroutines = %v, want >= 1", metric.Gauge.GetValue())
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.RecordOperation("AddE", "success")
			}
		}()
	}
	wg.Wait()

	if got := counterValue(t, r.OperationsTotal.WithLabelValues("AddE", "success")); got != 1000 {
		t.Errorf("Counter = %v, want 1000", got)
	}
}

func TestMetricNaming(t *testing.T) {
	r := NewRegistry()
	r.RecordBatch("success", 1, time.Millisecond)
	r.RecordPrimitive("replace", "ok")

	metrics, err := r.GetPrometheusRegistry().Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	if len(metrics) == 0 {
		t.Fatal("No metrics registered")
	}

	names := make(map[string]bool)
	for _, m := range metrics {
		name := m.GetName()
		names[name] = true
		if !strings.HasPrefix(name, "docgraph_") {
			t.Errorf("Metric %s does not have docgraph_ prefix", name)
		}
	}
	for _, expected := range []string{
		"docgraph_executor_batches_total",
		"docgraph_store_primitives_total",
		"docgraph_uptime_seconds",
	} {
		if !names[expected] {
			t.Errorf("Expected metric %s not found", expected)
		}
	}
}

func BenchmarkRecordOperation(b *testing.B) {
	r := NewRegistry()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.RecordOperation("AddE", "success")
	}
}
