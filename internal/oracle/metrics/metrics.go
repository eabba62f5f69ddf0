package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the claim redemption pipeline.
type Metrics struct {
	ClaimsRedeemed prometheus.Counter
	ClaimsRejected *prometheus.CounterVec
	RedeemDuration prometheus.Histogram
}

// New creates a Metrics instance with all oracle metrics registered on the
// default registerer. Construct once per process.
func New() *Metrics {
	return &Metrics{
		ClaimsRedeemed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "soulbound_claims_redeemed_total",
			Help: "Total number of claims redeemed into tokens",
		}),
		ClaimsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "soulbound_claims_rejected_total",
			Help: "Total number of rejected claims, by reason",
		}, []string{"reason"}),
		RedeemDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "soulbound_redeem_duration_seconds",
			Help:    "Duration of claim redemption end to end",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveRedeem records the duration of a redemption attempt.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRedeem(start time.Time) {
	m.RedeemDuration.Observe(time.Since(start).Seconds())
}
