// Package metrics exposes Prometheus counters for cache policy outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks gateway cache behaviour.
type Metrics struct {
	registry *prometheus.Registry

	fetchTotal        *prometheus.CounterVec
	precacheFailures  prometheus.Counter
	generationsPurged prometheus.Counter
}

// New creates a metrics tracker with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_fetch_total",
			Help: "Intercepted fetches by policy and outcome.",
		}, []string{"policy", "outcome"}),
		precacheFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_precache_failures_total",
			Help: "Precache entries that failed to populate at install.",
		}),
		generationsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_generations_purged_total",
			Help: "Stale cache generations deleted at activation.",
		}),
	}

	m.registry.MustRegister(
		m.fetchTotal,
		m.precacheFailures,
		m.generationsPurged,
		collectors.NewGoCollector(),
	)

	return m
}

// ObserveFetch records one intercepted fetch.
func (m *Metrics) ObserveFetch(policy, outcome string) {
	m.fetchTotal.WithLabelValues(policy, outcome).Inc()
}

// ObservePrecacheFailure records one failed precache entry.
func (m *Metrics) ObservePrecacheFailure() {
	m.precacheFailures.Inc()
}

// ObservePurgedGeneration records one deleted stale generation.
func (m *Metrics) ObservePurgedGeneration() {
	m.generationsPurged.Inc()
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
