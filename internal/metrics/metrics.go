// Package metrics provides Prometheus metrics for the import validator.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalogimport"

// Metrics holds all Prometheus metrics. It implements core.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	// Validation metrics
	RowsValidatedTotal *prometheus.CounterVec
	MessagesTotal      *prometheus.CounterVec
	OptionAttempts     *prometheus.CounterVec
	ActiveRuns         prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates all metrics on a fresh registry, including the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry creates all metrics on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.RowsValidatedTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_validated_total",
			Help:      "Total number of validated rows by outcome",
		},
		[]string{"outcome"},
	)

	m.MessagesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_messages_total",
			Help:      "Total number of validation messages by kind",
		},
		[]string{"kind"},
	)

	m.OptionAttempts = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "option_creation_attempts_total",
			Help:      "Option creation attempts by attribute and outcome",
		},
		[]string{"attribute", "outcome"},
	)

	m.ActiveRuns = f.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Number of open validation runs",
		},
	)

	m.HTTPRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	return m
}

// RowValidated implements core.Recorder.
func (m *Metrics) RowValidated(valid bool) {
	outcome := "invalid"
	if valid {
		outcome = "valid"
	}
	m.RowsValidatedTotal.WithLabelValues(outcome).Inc()
}

// MessageEmitted implements core.Recorder.
func (m *Metrics) MessageEmitted(kind string) {
	m.MessagesTotal.WithLabelValues(kind).Inc()
}

// OptionAttempt implements core.Recorder.
func (m *Metrics) OptionAttempt(attribute string, created bool) {
	outcome := "failed"
	if created {
		outcome = "created"
	}
	m.OptionAttempts.WithLabelValues(attribute, outcome).Inc()
}

// RunsActive implements core.Recorder.
func (m *Metrics) RunsActive(n int) {
	m.ActiveRuns.Set(float64(n))
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
