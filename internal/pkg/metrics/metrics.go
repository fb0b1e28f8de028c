package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meshgate"

// Metrics holds the gateway's Prometheus collectors. Each instance owns its
// own registry so several servers (tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	DownstreamDuration *prometheus.HistogramVec
	RouteLookups       *prometheus.CounterVec
}

// New creates and registers all gateway metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total number of gateway requests by route type and response status",
			},
			[]string{"route_type", "status"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "End-to-end request handling time",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route_type"},
		),

		DownstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "downstream",
				Name:      "duration_seconds",
				Help:      "Time spent in a protocol adapter call",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route_type", "outcome"},
		),

		RouteLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "routes",
				Name:      "lookups_total",
				Help:      "Route resolutions by source (static, store, miss)",
			},
			[]string{"source"},
		),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.DownstreamDuration,
		m.RouteLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveRequest records one finished gateway request.
func (m *Metrics) ObserveRequest(routeType string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if routeType == "" {
		routeType = "none"
	}
	m.RequestsTotal.WithLabelValues(routeType, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(routeType).Observe(elapsed.Seconds())
}

// ObserveDownstream records the latency of a single adapter invocation.
func (m *Metrics) ObserveDownstream(routeType string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.DownstreamDuration.WithLabelValues(routeType, outcome).Observe(elapsed.Seconds())
}

// ObserveLookup counts a route resolution. source is "static", "store" or "miss".
func (m *Metrics) ObserveLookup(source string) {
	if m == nil {
		return
	}
	m.RouteLookups.WithLabelValues(source).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
