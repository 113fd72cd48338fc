// Package metrics exposes the Prometheus metrics of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fireblue/internal/domain/closing"
)

const namespace = "fireblue"

var _ closing.Metrics = (*Metrics)(nil)

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	Generations         *prometheus.CounterVec
	GenerationDuration  prometheus.Histogram
	WorkshopsAggregated *prometheus.CounterVec
	Transitions         *prometheus.CounterVec

	EventsPublished     *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates and registers all collectors, plus the Go and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	m.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method", "path"})

	m.HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "Number of HTTP requests currently being processed",
	})

	m.Generations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "closing",
		Name:      "generations_total",
		Help:      "Weekly closing generate calls by result",
	}, []string{"result"})

	m.GenerationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "closing",
		Name:      "generation_duration_seconds",
		Help:      "Duration of weekly closing generation",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})

	m.WorkshopsAggregated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "closing",
		Name:      "workshops_total",
		Help:      "Workshops processed by generate calls, by outcome",
	}, []string{"outcome"})

	m.Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "closing",
		Name:      "transitions_total",
		Help:      "Closing state transitions requested, by action and whether they applied",
	}, []string{"action", "applied"})

	m.EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Domain events published to Kafka",
	}, []string{"event_type", "status"})

	m.CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	registry.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration, m.HTTPRequestsInFlight,
		m.Generations, m.GenerationDuration, m.WorkshopsAggregated, m.Transitions,
		m.EventsPublished, m.CircuitBreakerState,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records one finished request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// ObserveGeneration implements closing.Metrics.
func (m *Metrics) ObserveGeneration(report *closing.GenerationReport, elapsed time.Duration, err error) {
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case report != nil && report.WeekClosed:
		result = "week_closed"
	case report != nil && report.HasFailures():
		result = "partial"
	}
	m.Generations.WithLabelValues(result).Inc()
	m.GenerationDuration.Observe(elapsed.Seconds())

	if err != nil || report == nil {
		return
	}
	for _, o := range []closing.Outcome{
		closing.OutcomeCreated, closing.OutcomeSkippedExisting,
		closing.OutcomeSkippedEmpty, closing.OutcomeFailed,
	} {
		if n := report.Count(o); n > 0 {
			m.WorkshopsAggregated.WithLabelValues(string(o)).Add(float64(n))
		}
	}
}

// ObserveTransition implements closing.Metrics.
func (m *Metrics) ObserveTransition(action closing.AuditAction, applied bool) {
	m.Transitions.WithLabelValues(string(action), strconv.FormatBool(applied)).Inc()
}

// RecordEventPublished counts a Kafka publish attempt.
func (m *Metrics) RecordEventPublished(eventType string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.EventsPublished.WithLabelValues(eventType, status).Inc()
}

// SetCircuitBreakerState records the state of a named breaker.
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RegisterPoolStats exports database pool gauges read from stats on every scrape.
func (m *Metrics) RegisterPoolStats(stats func() (total, idle, acquired int32)) {
	gauge := func(name, help string, pick func(total, idle, acquired int32) int32) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(pick(stats()))
		})
	}
	m.registry.MustRegister(
		gauge("connections_total", "Open connections", func(t, _, _ int32) int32 { return t }),
		gauge("connections_idle", "Idle connections", func(_, i, _ int32) int32 { return i }),
		gauge("connections_acquired", "Connections in use", func(_, _, a int32) int32 { return a }),
	)
}
