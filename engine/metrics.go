package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"protein-hunter/search"
)

// Metrics bundles the run pipeline's Prometheus collectors on one
// dedicated registry, shared with the search client's collectors.
type Metrics struct {
	Registry *prometheus.Registry
	Search   *search.Metrics

	ListingsFetchedTotal prometheus.Counter
	OffersAcceptedTotal  prometheus.Counter
	RejectionsTotal      *prometheus.CounterVec
	EntriesSkippedTotal  prometheus.Counter
	NotificationsTotal   prometheus.Counter
	RunDuration          prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated
// registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	fetched := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_listings_fetched_total",
			Help: "Total raw listings handed to classification.",
		},
	)
	accepted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_offers_accepted_total",
			Help: "Total listings accepted as valid offers.",
		},
	)
	rejections := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_rejections_total",
			Help: "Total listings rejected during classification, by reason.",
		},
		[]string{"reason"},
	)
	skipped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_entries_skipped_total",
			Help: "Total catalog entries skipped for invalid definitions.",
		},
	)
	notifications := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_notifications_total",
			Help: "Total change notifications delivered.",
		},
	)
	runDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tracker_run_duration_seconds",
			Help:    "Wall-clock duration of full tracker runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	registry.MustRegister(fetched, accepted, rejections, skipped, notifications, runDuration)

	return &Metrics{
		Registry:             registry,
		Search:               search.NewMetrics(registry),
		ListingsFetchedTotal: fetched,
		OffersAcceptedTotal:  accepted,
		RejectionsTotal:      rejections,
		EntriesSkippedTotal:  skipped,
		NotificationsTotal:   notifications,
		RunDuration:          runDuration,
	}
}

// AddFetched increments the fetched-listings counter.
func (m *Metrics) AddFetched(n int) {
	if m == nil {
		return
	}
	m.ListingsFetchedTotal.Add(float64(n))
}

// AddAccepted increments the accepted-offers counter.
func (m *Metrics) AddAccepted(n int) {
	if m == nil {
		return
	}
	m.OffersAcceptedTotal.Add(float64(n))
}

// IncRejection increments the rejection counter for a reason label.
func (m *Metrics) IncRejection(reason string) {
	if m == nil {
		return
	}
	m.RejectionsTotal.WithLabelValues(reason).Inc()
}

// IncEntrySkipped increments the skipped-entries counter.
func (m *Metrics) IncEntrySkipped() {
	if m == nil {
		return
	}
	m.EntriesSkippedTotal.Inc()
}

// IncNotification increments the delivered-notifications counter.
func (m *Metrics) IncNotification() {
	if m == nil {
		return
	}
	m.NotificationsTotal.Inc()
}

// ObserveRun records a full run duration.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
}

// SearchMetrics returns the search collectors, nil-safe.
func (m *Metrics) SearchMetrics() *search.Metrics {
	if m == nil {
		return nil
	}
	return m.Search
}
