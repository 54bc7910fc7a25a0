package search

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the search client.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	ItemsTotal      prometheus.Counter
	CacheHitsTotal  prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs all collectors and registers them on the
// given registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Total API requests issued by the search client.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "search_request_duration_seconds",
			Help:    "API request latency for search requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	itemsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "search_items_total",
			Help: "Total number of listings returned by the search API.",
		},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "search_cache_hits_total",
			Help: "Total number of search pages served from the in-process cache.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_errors_total",
			Help: "Total number of search errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, itemsTotal, cacheHits, errorsTotal)

	return &Metrics{
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		ItemsTotal:      itemsTotal,
		CacheHitsTotal:  cacheHits,
		ErrorsTotal:     errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an API request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddItems increments the returned-listings counter.
func (m *Metrics) AddItems(n int) {
	if m == nil {
		return
	}
	m.ItemsTotal.Add(float64(n))
}

// IncCacheHit increments the cache hit counter.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
