// Package metrics exposes container compilation and resolution counters to
// Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Compile outcomes.
const (
	OutcomeCompiled = "compiled"
	OutcomeCached   = "cached"
	OutcomeFailed   = "failed"
)

// Collector holds the container metrics. Each collector owns its registry,
// so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	Compilations    *prometheus.CounterVec
	CompileDuration prometheus.Histogram

	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	CacheCorrupt prometheus.Counter

	Resolutions *prometheus.CounterVec
}

// NewCollector creates a collector whose metric names start with namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	compilations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "compilations_total",
			Help:      "Container boots by outcome.",
		},
		[]string{"outcome"},
	)

	compileDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "compile_duration_seconds",
			Help:      "Time spent compiling the container graph.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "cache_hits_total",
			Help:      "Boots served from the compiled container artifact.",
		},
	)

	cacheMisses := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "cache_misses_total",
			Help:      "Boots that had to compile because no valid artifact matched.",
		},
	)

	cacheCorrupt := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "cache_corrupt_total",
			Help:      "Artifacts that failed to load and were recompiled.",
		},
	)

	resolutions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "resolutions_total",
			Help:      "Instances built by the container, by service id.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		compilations,
		compileDuration,
		cacheHits,
		cacheMisses,
		cacheCorrupt,
		resolutions,
	)

	return &Collector{
		registry:        registry,
		Compilations:    compilations,
		CompileDuration: compileDuration,
		CacheHits:       cacheHits,
		CacheMisses:     cacheMisses,
		CacheCorrupt:    cacheCorrupt,
		Resolutions:     resolutions,
	}
}

// RecordCompile counts one boot with the given outcome. A non-zero duration
// is observed in the compile histogram.
func (c *Collector) RecordCompile(outcome string, d time.Duration) {
	c.Compilations.WithLabelValues(outcome).Inc()
	if d > 0 {
		c.CompileDuration.Observe(d.Seconds())
	}
}

// RecordResolution counts one built instance of id.
func (c *Collector) RecordResolution(id string) {
	c.Resolutions.WithLabelValues(id).Inc()
}

// Registry returns the Prometheus registry of this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
