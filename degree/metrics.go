package degree

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the credential lifecycle.
type Metrics struct {
	CredentialsIssued  prometheus.Counter
	CredentialsDerived prometheus.Counter
	Verifications      *prometheus.CounterVec
	AnchorFailures     prometheus.Counter
	SigningDuration    prometheus.Histogram
}

// NewMetrics registers the lifecycle metrics with reg. A nil reg registers
// with a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		CredentialsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "degree_credentials_issued_total",
			Help: "Total number of degree credentials issued",
		}),
		CredentialsDerived: factory.NewCounter(prometheus.CounterOpts{
			Name: "degree_credentials_derived_total",
			Help: "Total number of derived credentials created by holders",
		}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "degree_verifications_total",
			Help: "Credential verifications by outcome",
		}, []string{"status"}),
		AnchorFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "degree_anchor_failures_total",
			Help: "Credential hashes that could not be anchored",
		}),
		SigningDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "degree_signing_duration_seconds",
			Help:    "Duration of credential build and sign operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementIssued() {
	m.CredentialsIssued.Inc()
}

func (m *Metrics) IncrementDerived() {
	m.CredentialsDerived.Inc()
}

func (m *Metrics) IncrementVerification(status Status) {
	m.Verifications.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) IncrementAnchorFailure() {
	m.AnchorFailures.Inc()
}

// ObserveSigning records the duration of a signing operation started at start.
func (m *Metrics) ObserveSigning(start time.Time) {
	m.SigningDuration.Observe(time.Since(start).Seconds())
}
