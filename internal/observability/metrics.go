package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like
// without colliding on the default one. All methods are nil-safe.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	httpInflight prometheus.Gauge

	engineCalls   *prometheus.CounterVec
	engineLatency *prometheus.HistogramVec

	ingestRecords *prometheus.CounterVec
	ingestWarn    *prometheus.CounterVec

	jobTransitions *prometheus.CounterVec
	liveSubs       prometheus.Gauge

	mqttMessages *prometheus.CounterVec
	mqttUp       prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agrisense_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agrisense_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		httpInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "agrisense_http_inflight_requests",
			Help: "HTTP requests currently being served.",
		}),
		engineCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agrisense_engine_calls_total",
			Help: "Graph engine calls by operation and outcome.",
		}, []string{"operation", "ok"}),
		engineLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agrisense_engine_call_duration_seconds",
			Help:    "Graph engine call latency.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		ingestRecords: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agrisense_ingest_records_total",
			Help: "Ingested telemetry records by layer and outcome.",
		}, []string{"layer", "status"}),
		ingestWarn: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agrisense_ingest_warnings_total",
			Help: "Non-fatal ingestion warnings by layer.",
		}, []string{"layer"}),
		jobTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agrisense_recompute_job_transitions_total",
			Help: "Recompute job state transitions by target status.",
		}, []string{"status"}),
		liveSubs: f.NewGauge(prometheus.GaugeOpts{
			Name: "agrisense_live_subscribers",
			Help: "Open live feed subscriptions.",
		}),
		mqttMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agrisense_mqtt_messages_total",
			Help: "MQTT ingest messages by result (received, processed, failed).",
		}, []string{"result"}),
		mqttUp: f.NewGauge(prometheus.GaugeOpts{
			Name: "agrisense_mqtt_connected",
			Help: "1 while the MQTT bridge is connected.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(route, method string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func (m *Metrics) HTTPInflight(delta float64) {
	if m == nil {
		return
	}
	m.httpInflight.Add(delta)
}

func (m *Metrics) ObserveEngineCall(op string, ok bool, dur time.Duration) {
	if m == nil {
		return
	}
	m.engineCalls.WithLabelValues(op, strconv.FormatBool(ok)).Inc()
	m.engineLatency.WithLabelValues(op).Observe(dur.Seconds())
}

func (m *Metrics) IngestRecords(layer, status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ingestRecords.WithLabelValues(layer, status).Add(float64(n))
}

func (m *Metrics) IngestWarnings(layer string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ingestWarn.WithLabelValues(layer).Add(float64(n))
}

func (m *Metrics) JobTransition(status string) {
	if m == nil {
		return
	}
	m.jobTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) LiveSubscribers(delta float64) {
	if m == nil {
		return
	}
	m.liveSubs.Add(delta)
}

func (m *Metrics) MQTTMessage(result string) {
	if m == nil {
		return
	}
	m.mqttMessages.WithLabelValues(result).Inc()
}

func (m *Metrics) MQTTConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.mqttUp.Set(1)
		return
	}
	m.mqttUp.Set(0)
}
