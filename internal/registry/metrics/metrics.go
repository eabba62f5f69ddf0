package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the token registry.
type Metrics struct {
	TokensMinted  *prometheus.CounterVec
	TokensRenewed prometheus.Counter
	TokensRevoked prometheus.Counter
	TokensSwept   prometheus.Counter
	MintRejected  *prometheus.CounterVec
	MintDuration  prometheus.Histogram
}

// New creates a Metrics instance with all registry metrics registered on the
// default registerer. Construct once per process.
func New() *Metrics {
	return &Metrics{
		TokensMinted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "soulbound_tokens_minted_total",
			Help: "Total number of tokens minted, by class",
		}, []string{"class"}),
		TokensRenewed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "soulbound_tokens_renewed_total",
			Help: "Total number of token renewals",
		}),
		TokensRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "soulbound_tokens_revoked_total",
			Help: "Total number of token revocations",
		}),
		TokensSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "soulbound_tokens_swept_total",
			Help: "Total number of dead tokens physically removed",
		}),
		MintRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "soulbound_mint_rejected_total",
			Help: "Total number of rejected mint attempts, by reason",
		}, []string{"reason"}),
		MintDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "soulbound_mint_duration_seconds",
			Help:    "Duration of mint operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveMint records the duration of a mint operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveMint(start time.Time) {
	m.MintDuration.Observe(time.Since(start).Seconds())
}
