package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCountEngineCalls(t *testing.T) {
	m := NewMetrics()
	m.ObserveEngineCall("build", true, 20*time.Millisecond)
	m.ObserveEngineCall("build", false, 5*time.Millisecond)
	m.ObserveEngineCall("build", true, 5*time.Millisecond)

	if got := testutil.ToFloat64(m.engineCalls.WithLabelValues("build", "true")); got != 2 {
		t.Fatalf("ok build calls = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.engineCalls.WithLabelValues("build", "false")); got != 1 {
		t.Fatalf("failed build calls = %v, want 1", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("/x", "GET", 200, time.Millisecond)
	m.IngestRecords("soil", "ok", 3)
	m.JobTransition("running")
	m.MQTTMessage("received")
	if m.Handler() == nil {
		t.Fatalf("nil metrics should still serve a handler")
	}
}

func TestMetricsIndependentRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.IngestRecords("soil", "ok", 2)
	if got := testutil.ToFloat64(b.ingestRecords.WithLabelValues("soil", "ok")); got != 0 {
		t.Fatalf("registries must not share state, got %v", got)
	}
}
