// Package metrics provides Prometheus collectors for schedule loading and
// favourites. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sojourner"

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	cacheLoads       *prometheus.CounterVec
	cacheWriteErrors prometheus.Counter
	parseDuration    prometheus.Histogram
	events           prometheus.Gauge
	favourites       prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	auto := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cacheLoads: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "loads_total",
			Help:      "Schedule loads by outcome (hit, or the reason the snapshot was rejected).",
		}, []string{"outcome"}),
		cacheWriteErrors: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "write_errors_total",
			Help:      "Snapshot cache writes that failed.",
		}),
		parseDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "duration_seconds",
			Help:      "Time spent parsing the schedule document.",
			Buckets:   prometheus.DefBuckets,
		}),
		events: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events",
			Help:      "Number of events in the loaded schedule.",
		}),
		favourites: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "favourites",
			Help:      "Number of favourited events.",
		}),
	}
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CacheLoad counts one load with the given outcome label.
func (m *Metrics) CacheLoad(outcome string) {
	if m == nil {
		return
	}
	m.cacheLoads.WithLabelValues(outcome).Inc()
}

// CacheWriteError counts one failed snapshot write.
func (m *Metrics) CacheWriteError() {
	if m == nil {
		return
	}
	m.cacheWriteErrors.Inc()
}

// ObserveParse records how long a full parse took.
func (m *Metrics) ObserveParse(d time.Duration) {
	if m == nil {
		return
	}
	m.parseDuration.Observe(d.Seconds())
}

// SetEvents records the loaded event count.
func (m *Metrics) SetEvents(n int) {
	if m == nil {
		return
	}
	m.events.Set(float64(n))
}

// SetFavourites records the current favourites count.
func (m *Metrics) SetFavourites(n int) {
	if m == nil {
		return
	}
	m.favourites.Set(float64(n))
}
