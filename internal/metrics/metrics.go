// Package metrics owns the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "walktrack"

// Metrics groups the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	walkTransitions   *prometheus.CounterVec
	locationsIngested prometheus.Counter
	sessionsSwept     prometheus.Counter
}

// New builds and registers every collector, including the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "route"},
		),
		walkTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "walks",
				Name:      "transitions_total",
				Help:      "Walk lifecycle transitions applied.",
			},
			[]string{"action"},
		),
		locationsIngested: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "walks",
				Name:      "locations_ingested_total",
				Help:      "Location samples accepted by batch uploads.",
			},
		),
		sessionsSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sessions",
				Name:      "swept_total",
				Help:      "Expired sessions removed by the sweeper.",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.walkTransitions,
		m.locationsIngested,
		m.sessionsSwept,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one finished request. route is the matched pattern, not the raw
// path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// WalkTransition counts an applied lifecycle action.
func (m *Metrics) WalkTransition(action string) {
	if m == nil {
		return
	}
	m.walkTransitions.WithLabelValues(action).Inc()
}

// LocationsIngested counts accepted location samples.
func (m *Metrics) LocationsIngested(n int) {
	if m == nil {
		return
	}
	m.locationsIngested.Add(float64(n))
}

// SessionsSwept counts sessions removed by the sweeper.
func (m *Metrics) SessionsSwept(n int64) {
	if m == nil {
		return
	}
	m.sessionsSwept.Add(float64(n))
}
