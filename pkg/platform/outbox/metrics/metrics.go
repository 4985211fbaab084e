// Package metrics exposes the outbox relay's Prometheus collectors. All
// methods are safe on a nil *Metrics so the worker can run unobserved.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

type Metrics struct {
	PendingDepth    prometheus.Gauge
	PublishedTotal  *prometheus.CounterVec
	PublishFailures prometheus.Counter
	HeldBack        prometheus.Counter
	PublishDuration prometheus.Histogram
	BatchSize       prometheus.Histogram
	PollDuration    prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PendingDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "mutualpool_outbox_pending",
			Help: "Ledger events committed but not yet published",
		}),
		PublishedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mutualpool_outbox_published_total",
			Help: "Ledger events published to the broker",
		}, []string{"aggregate_type"}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "mutualpool_outbox_publish_failures_total",
			Help: "Fetch or publish attempts that failed and will be retried",
		}),
		HeldBack: f.NewCounter(prometheus.CounterOpts{
			Name: "mutualpool_outbox_held_back_total",
			Help: "Events skipped in a poll because an earlier event of the same aggregate failed",
		}),
		PublishDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mutualpool_outbox_publish_duration_seconds",
			Help:    "Broker round trip per published event",
			Buckets: latencyBuckets,
		}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mutualpool_outbox_batch_size",
			Help:    "Entries fetched per non-empty poll",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		PollDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mutualpool_outbox_poll_duration_seconds",
			Help:    "Duration of a non-empty poll cycle",
			Buckets: latencyBuckets,
		}),
	}
}

func (m *Metrics) SetPendingDepth(count int64) {
	if m != nil {
		m.PendingDepth.Set(float64(count))
	}
}

func (m *Metrics) IncPublished(aggregateType string) {
	if m != nil {
		m.PublishedTotal.WithLabelValues(aggregateType).Inc()
	}
}

func (m *Metrics) IncPublishFailures() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}

func (m *Metrics) IncHeldBack() {
	if m != nil {
		m.HeldBack.Inc()
	}
}

func (m *Metrics) ObservePublishDuration(seconds float64) {
	if m != nil {
		m.PublishDuration.Observe(seconds)
	}
}

func (m *Metrics) ObserveBatchSize(size int) {
	if m != nil {
		m.BatchSize.Observe(float64(size))
	}
}

func (m *Metrics) ObservePollDuration(seconds float64) {
	if m != nil {
		m.PollDuration.Observe(seconds)
	}
}
