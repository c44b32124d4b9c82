// Package metrics provides Prometheus metrics for the rokstats service.
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

// Manager owns every metric of the service and the registry they live in.
// All recording methods are safe on a nil *Manager, which records nothing.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Engine
	engineDuration   *prometheus.HistogramVec
	sortKeyFallbacks *prometheus.CounterVec

	// Cache
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheErrors        *prometheus.CounterVec
	cacheInvalidations prometheus.Counter

	// Store
	storeErrors       *prometheus.CounterVec
	snapshotsAppended prometheus.Counter
}

// NewManager creates a metrics manager on a fresh registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rokstats",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route, method and status code",
		},
		[]string{"route", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: "http",
			Name:      "request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"route", "method"},
	)

	m.engineDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: "engine",
			Name:      "operation_duration_milliseconds",
			Help:      "Duration of ranking engine operations including store reads",
			Buckets:   m.histogramBuckets,
		},
		[]string{"operation"},
	)

	m.sortKeyFallbacks = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "engine",
			Name:      "sort_key_fallbacks_total",
			Help:      "Requests whose sort key was unknown and replaced by the default",
		},
		[]string{"kind"},
	)

	m.cacheHits = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Read-through cache hits by operation",
		},
		[]string{"operation"},
	)

	m.cacheMisses = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Read-through cache misses by operation",
		},
		[]string{"operation"},
	)

	m.cacheErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "cache",
			Name:      "errors_total",
			Help:      "Cache backend failures that were bypassed",
		},
		[]string{"operation"},
	)

	m.cacheInvalidations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "cache",
		Name:      "invalidations_total",
		Help:      "Group generations bumped after snapshot appends",
	})

	m.storeErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Snapshot store failures by operation",
		},
		[]string{"operation"},
	)

	m.snapshotsAppended = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "snapshots_appended_total",
		Help:      "Snapshots written to the store",
	})
}

// Registry returns the registry holding the metrics.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus exposition handler.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// ObserveHTTPRequest records one served request.
func (m *Manager) ObserveHTTPRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(ms(d))
}

// ObserveEngine records the duration of an engine operation.
func (m *Manager) ObserveEngine(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.engineDuration.WithLabelValues(operation).Observe(ms(d))
}

// SortKeyFallback counts a request whose sort key was unknown.
func (m *Manager) SortKeyFallback(kind string) {
	if m == nil {
		return
	}
	m.sortKeyFallbacks.WithLabelValues(kind).Inc()
}

// CacheHit counts a read-through cache hit.
func (m *Manager) CacheHit(operation string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(operation).Inc()
}

// CacheMiss counts a read-through cache miss.
func (m *Manager) CacheMiss(operation string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(operation).Inc()
}

// CacheError counts a bypassed cache failure.
func (m *Manager) CacheError(operation string) {
	if m == nil {
		return
	}
	m.cacheErrors.WithLabelValues(operation).Inc()
}

// CacheInvalidated counts invalidated groups.
func (m *Manager) CacheInvalidated(groups int) {
	if m == nil {
		return
	}
	m.cacheInvalidations.Add(float64(groups))
}

// StoreError counts a store failure.
func (m *Manager) StoreError(operation string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(operation).Inc()
}

// SnapshotsAppended counts written snapshots.
func (m *Manager) SnapshotsAppended(n int) {
	if m == nil {
		return
	}
	m.snapshotsAppended.Add(float64(n))
}
