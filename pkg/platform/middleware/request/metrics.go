package request

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records per-route HTTP latency. Routes are chi patterns so claim
// and account identifiers never become label values.
type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
	InFlight        prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mutualpool_http_request_duration_seconds",
			Help:    "Latency of pool API requests by route and status class",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "mutualpool_http_requests_in_flight",
			Help: "Requests currently being served",
		}),
	}
}

func (m *Metrics) observe(method, route string, status int, seconds float64) {
	m.EndpointLatency.WithLabelValues(method, route, statusClass(status)).Observe(seconds)
}

// statusClass folds a status code into "2xx", "4xx" and so on.
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
