package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for claim adjudication.
type Metrics struct {
	Submitted       prometheus.Counter
	PanelsSelected  prometheus.Counter
	PanelShortfalls prometheus.Counter
	Votes           *prometheus.CounterVec
	Outcomes        *prometheus.CounterVec
	PayoutsDeferred prometheus.Counter
	Turnout         prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submitted: f.NewCounter(prometheus.CounterOpts{
			Name: "mutualpool_claims_submitted_total",
			Help: "Total number of claims submitted",
		}),
		PanelsSelected: f.NewCounter(prometheus.CounterOpts{
			Name: "mutualpool_claim_panels_selected_total",
			Help: "Total number of review panels frozen",
		}),
		PanelShortfalls: f.NewCounter(prometheus.CounterOpts{
			Name: "mutualpool_claim_panel_shortfalls_total",
			Help: "Panel selections rejected for too few eligible candidates",
		}),
		Votes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mutualpool_claim_votes_total",
			Help: "Votes cast on claims, labeled by value",
		}, []string{"value"}),
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mutualpool_claim_outcomes_total",
			Help: "Claim evaluations, labeled by resulting status",
		}, []string{"status"}),
		PayoutsDeferred: f.NewCounter(prometheus.CounterOpts{
			Name: "mutualpool_claim_payouts_deferred_total",
			Help: "Approved claims left unpaid at evaluation for lack of pool balance",
		}),
		Turnout: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mutualpool_claim_turnout_ratio",
			Help:    "Fraction of the panel that voted before evaluation",
			Buckets: []float64{0.25, 0.5, 0.67, 0.75, 0.9, 1},
		}),
	}
}

func (m *Metrics) IncSubmitted() {
	m.Submitted.Inc()
}

func (m *Metrics) IncPanelSelected() {
	m.PanelsSelected.Inc()
}

func (m *Metrics) IncPanelShortfall() {
	m.PanelShortfalls.Inc()
}

func (m *Metrics) IncVote(approve bool) {
	value := "reject"
	if approve {
		value = "approve"
	}
	m.Votes.WithLabelValues(value).Inc()
}

func (m *Metrics) ObserveOutcome(status string, votes, panel int) {
	m.Outcomes.WithLabelValues(status).Inc()
	if panel > 0 {
		m.Turnout.Observe(float64(votes) / float64(panel))
	}
}

func (m *Metrics) IncPayoutDeferred() {
	m.PayoutsDeferred.Inc()
}
