// Package metrics exposes routing and discovery counters in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "fedroute"

// ModeNone labels decisions that never reached a query mode, such as validation
// failures and operations served without resolution.
const ModeNone = "none"

// Collector is a prometheus.Collector for the routing engine, the recommendation
// endpoint and the directory cache.
type Collector struct {
	decisions       *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	recommendations prometheus.Counter
	cacheLookups    *prometheus.CounterVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "routing_decisions_total",
				Help:      "The number of routing decisions by query mode and terminal state.",
			}, []string{"mode", "state"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "routing_duration_seconds",
				Help:      "The time taken to reach a routing decision.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			}, []string{"mode"},
		),
		recommendations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "recommendations_total",
				Help:      "The number of recommendations returned to clients.",
			},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "directory_cache_lookups_total",
				Help:      "The number of directory cache lookups by result.",
			}, []string{"result"},
		),
	}
}

// ObserveDecision records one routing decision.
func (c *Collector) ObserveDecision(mode, state string, elapsed time.Duration) {
	if mode == "" {
		mode = ModeNone
	}
	c.decisions.WithLabelValues(mode, state).Inc()
	c.duration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// AddRecommendations counts n returned recommendations.
func (c *Collector) AddRecommendations(n int) {
	if n > 0 {
		c.recommendations.Add(float64(n))
	}
}

// ObserveCacheLookup counts one directory cache lookup. It matches the signature of
// directory.WithLookupObserver.
func (c *Collector) ObserveCacheLookup(result string) {
	c.cacheLookups.WithLabelValues(result).Inc()
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.decisions.Describe(ch)
	c.duration.Describe(ch)
	c.recommendations.Describe(ch)
	c.cacheLookups.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.decisions.Collect(ch)
	c.duration.Collect(ch)
	c.recommendations.Collect(ch)
	c.cacheLookups.Collect(ch)
}

// NewRegistry returns a private registry holding c plus the Go runtime and process
// collectors.
func NewRegistry(c *Collector) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	for _, col := range []prometheus.Collector{
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
