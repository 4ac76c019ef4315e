// Package metrics exposes Prometheus collectors for the HTTP layer, the
// results cache and the analytics computations.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vocstat"

// durationBuckets covers 1ms to 30s: cached lookups up to full passes over
// multi-hour recordings.
var durationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Collector owns an independent registry so tests and multiple servers in
// one process do not collide.
type Collector struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	computeDuration *prometheus.HistogramVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	cacheEvictions  prometheus.Counter
	skippedRows     prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route and status.",
			Buckets:   durationBuckets,
		}, []string{"route", "method", "status"}),
		computeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_duration_seconds",
			Help:      "Time spent computing an analytics result on a cache miss.",
			Buckets:   durationBuckets,
		}, []string{"op"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Results served from cache.",
		}, []string{"op"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Results computed because no current cache entry existed.",
		}, []string{"op"}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Cache entries removed because their source changed.",
		}),
		skippedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_rows_total",
			Help:      "Malformed CSV rows dropped while parsing.",
		}),
	}

	c.registry.MustRegister(
		c.requestDuration,
		c.computeDuration,
		c.cacheHits,
		c.cacheMisses,
		c.cacheEvictions,
		c.skippedRows,
		collectors.NewGoCollector(),
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveRequest records one served HTTP request.
func (c *Collector) ObserveRequest(route, method string, status int, d time.Duration) {
	c.requestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveCompute records the duration of one computation.
func (c *Collector) ObserveCompute(op string, d time.Duration) {
	c.computeDuration.WithLabelValues(op).Observe(d.Seconds())
}

// SkippedRows adds n dropped rows.
func (c *Collector) SkippedRows(n int) {
	if n > 0 {
		c.skippedRows.Add(float64(n))
	}
}

// CacheHit implements state.Observer.
func (c *Collector) CacheHit(op string) { c.cacheHits.WithLabelValues(op).Inc() }

// CacheMiss implements state.Observer.
func (c *Collector) CacheMiss(op string) { c.cacheMisses.WithLabelValues(op).Inc() }

// CacheEvict implements state.Observer.
func (c *Collector) CacheEvict(_ string, entries int) { c.cacheEvictions.Add(float64(entries)) }
