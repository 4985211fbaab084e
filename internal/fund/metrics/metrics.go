package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mutualpool/internal/fund/models"
)

// Metrics holds Prometheus collectors for the fund ledger.
type Metrics struct {
	PoolBalance    *prometheus.GaugeVec
	Stakers        prometheus.Gauge
	DepositsTotal  prometheus.Counter
	FeesTotal      prometheus.Counter
	DisbursedTotal prometheus.Counter
	RejectedPayout prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PoolBalance: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mutualpool_pool_balance",
			Help: "Committed pool balance per bucket",
		}, []string{"bucket"}),
		Stakers: f.NewGauge(prometheus.GaugeOpts{
			Name: "mutualpool_stakers",
			Help: "Number of accounts with a non-zero stake",
		}),
		DepositsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "mutualpool_premium_deposited_total",
			Help: "Total premium units deposited into the pool",
		}),
		FeesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "mutualpool_submission_fees_total",
			Help: "Total submission fee units credited to the risk reserve",
		}),
		DisbursedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "mutualpool_disbursed_total",
			Help: "Total units paid out of the pool",
		}),
		RejectedPayout: f.NewCounter(prometheus.CounterOpts{
			Name: "mutualpool_disbursements_rejected_total",
			Help: "Disbursements rejected for insufficient pool balance",
		}),
	}
}

// ObserveState mirrors the pool and staker count into the gauges.
func (m *Metrics) ObserveState(state *models.State) {
	m.PoolBalance.WithLabelValues("immediate").Set(float64(state.Pool.Immediate))
	m.PoolBalance.WithLabelValues("stable").Set(float64(state.Pool.Stable))
	m.PoolBalance.WithLabelValues("risk").Set(float64(state.Pool.Risk))
	m.Stakers.Set(float64(len(state.Stakers)))
}

func (m *Metrics) AddDeposit(amount uint64) {
	m.DepositsTotal.Add(float64(amount))
}

func (m *Metrics) AddFee(amount uint64) {
	m.FeesTotal.Add(float64(amount))
}

func (m *Metrics) AddDisbursed(amount uint64) {
	m.DisbursedTotal.Add(float64(amount))
}

func (m *Metrics) IncRejectedPayout() {
	m.RejectedPayout.Inc()
}
