// Package metrics exposes chat routing metrics in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LatencyBuckets are the histogram bounds for chat latency, in seconds.
var LatencyBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5}

// Recorder holds the chat metrics. It owns its registry so tests and
// embedders can run several instances in one process. Safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	ChatRequests       *prometheus.CounterVec
	ChatLatency        *prometheus.HistogramVec
	AuditWriteFailures prometheus.Counter
}

// NewRecorder creates a Recorder with a fresh registry that also carries
// the Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		ChatRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_requests_total",
				Help: "Total chat requests by provider and status",
			},
			[]string{"provider", "status"}, // status: success, failure
		),

		ChatLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chat_request_latency_seconds",
				Help:    "Provider call latency in seconds",
				Buckets: LatencyBuckets,
			},
			[]string{"provider"},
		),

		AuditWriteFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "audit_write_failures_total",
				Help: "Audit events that could not be persisted",
			},
		),
	}
}

// RecordChatRequest counts one chat request and observes its latency.
func (r *Recorder) RecordChatRequest(provider, status string, latencyMs float64) {
	if r == nil {
		return
	}
	r.ChatRequests.WithLabelValues(provider, status).Inc()
	r.ChatLatency.WithLabelValues(provider).Observe(latencyMs / 1000)
}

// RecordAuditWriteFailure counts one failed audit write.
func (r *Recorder) RecordAuditWriteFailure() {
	if r == nil {
		return
	}
	r.AuditWriteFailures.Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
