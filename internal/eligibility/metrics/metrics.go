package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the eligibility registry.
type Metrics struct {
	Registrations     prometheus.Counter
	Checks            *prometheus.CounterVec
	StatusTransitions *prometheus.CounterVec
	EligibilityChecks *prometheus.CounterVec
	ReputationDeltas  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registrations: f.NewCounter(prometheus.CounterOpts{
			Name: "mutualpool_participants_registered_total",
			Help: "Total number of participants registered",
		}),
		Checks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mutualpool_sybil_checks_total",
			Help: "Sybil checks recorded, labeled by outcome",
		}, []string{"outcome"}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mutualpool_participant_status_transitions_total",
			Help: "Participant status transitions, labeled by target status",
		}, []string{"status"}),
		EligibilityChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mutualpool_eligibility_checks_total",
			Help: "Eligibility predicate evaluations, labeled by result",
		}, []string{"result"}),
		ReputationDeltas: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mutualpool_participant_vote_feedback_total",
			Help: "Vote feedback applied to participants, labeled by alignment",
		}, []string{"alignment"}),
	}
}

func (m *Metrics) IncRegistered() {
	m.Registrations.Inc()
}

// IncCheck records a sybil check outcome: passed, failed or duplicate.
func (m *Metrics) IncCheck(outcome string) {
	m.Checks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncTransition(status string) {
	m.StatusTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveEligibility(eligible bool) {
	result := "ineligible"
	if eligible {
		result = "eligible"
	}
	m.EligibilityChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) IncFeedback(withMajority bool) {
	alignment := "against_majority"
	if withMajority {
		alignment = "with_majority"
	}
	m.ReputationDeltas.WithLabelValues(alignment).Inc()
}
