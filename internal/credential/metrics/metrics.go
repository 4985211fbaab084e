package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for credential lifecycle operations.
type Metrics struct {
	CredentialsIssued prometheus.Counter
	StatusTransitions *prometheus.CounterVec
	ValidityChecks    *prometheus.CounterVec
	ReputationAwarded prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CredentialsIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "mutualpool_credentials_issued_total",
			Help: "Total number of professional credentials issued",
		}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mutualpool_credential_status_transitions_total",
			Help: "Credential status transitions, labeled by target status",
		}, []string{"status"}),
		ValidityChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mutualpool_credential_validity_checks_total",
			Help: "Credential validity checks, labeled by result",
		}, []string{"result"}),
		ReputationAwarded: f.NewCounter(prometheus.CounterOpts{
			Name: "mutualpool_credential_reputation_awarded_total",
			Help: "Reputation points awarded to credential holders by usage callbacks",
		}),
	}
}

func (m *Metrics) IncIssued() {
	m.CredentialsIssued.Inc()
}

func (m *Metrics) IncTransition(status string) {
	m.StatusTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveValidity(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.ValidityChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) AddReputation(points int) {
	if points > 0 {
		m.ReputationAwarded.Add(float64(points))
	}
}
