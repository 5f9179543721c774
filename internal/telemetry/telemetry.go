// Package telemetry exposes processing and HTTP metrics to Prometheus.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

// Metrics holds the aivis collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	providerCalls        *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec
	queriesProcessed     *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aivis_provider_calls_total",
				Help: "AI platform calls by outcome",
			},
			[]string{"platform", "outcome"},
		),
		providerCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aivis_provider_call_duration_seconds",
				Help:    "AI platform call duration in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"platform"},
		),
		queriesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aivis_queries_processed_total",
				Help: "Processed queries by final status",
			},
			[]string{"status"},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aivis_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aivis_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 20},
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		m.providerCalls,
		m.providerCallDuration,
		m.queriesProcessed,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ProviderCall records one platform call. Calls that never reached the
// network have a zero duration and are only counted.
func (m *Metrics) ProviderCall(p model.Platform, outcome string, d time.Duration) {
	m.providerCalls.WithLabelValues(string(p), outcome).Inc()
	if d > 0 {
		m.providerCallDuration.WithLabelValues(string(p)).Observe(d.Seconds())
	}
}

func (m *Metrics) QueryProcessed(status model.Status) {
	m.queriesProcessed.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, d time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry, mostly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }
