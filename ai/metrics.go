package ai

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports AI orchestration metrics in Prometheus format. A nil
// *Metrics is valid and records nothing, so wiring metrics stays optional.
type Metrics struct {
	registry *prometheus.Registry

	operationLatency *prometheus.HistogramVec
	modelLatency     *prometheus.HistogramVec
	faceSearchErrors prometheus.Counter
}

var latencyBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60}

// NewMetrics creates a Metrics instance. A nil registry creates a private
// one.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{registry: registry}

	m.operationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tsudoi",
			Subsystem: "ai",
			Name:      "operation_latency_seconds",
			Help:      "End-to-end orchestration operation latency in seconds",
			Buckets:   latencyBuckets,
		},
		[]string{"operation", "status"},
	)

	m.modelLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tsudoi",
			Subsystem: "ai",
			Name:      "model_latency_seconds",
			Help:      "Model adapter call latency in seconds",
			Buckets:   latencyBuckets,
		},
		[]string{"adapter"},
	)

	m.faceSearchErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tsudoi",
			Subsystem: "ai",
			Name:      "face_search_errors_total",
			Help:      "Total number of per-face neighbor search failures",
		},
	)

	registry.MustRegister(m.operationLatency, m.modelLatency, m.faceSearchErrors)
	return m
}

// ObserveOperation records an operation's latency with its outcome status.
func (m *Metrics) ObserveOperation(operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationLatency.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// ObserveModelCall records a model adapter call latency.
func (m *Metrics) ObserveModelCall(adapter string, duration time.Duration) {
	if m == nil {
		return
	}
	m.modelLatency.WithLabelValues(adapter).Observe(duration.Seconds())
}

// CountFaceSearchError increments the per-face search failure counter.
func (m *Metrics) CountFaceSearchError() {
	if m == nil {
		return
	}
	m.faceSearchErrors.Inc()
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
