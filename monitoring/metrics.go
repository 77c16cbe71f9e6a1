package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	partyMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediation_messages_total",
			Help: "Party messages submitted to the mediation engine",
		},
		[]string{"role", "status"},
	)

	generatorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generator_requests_total",
			Help: "Generative collaborator invocations",
		},
		[]string{"status"},
	)

	generatorDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "generator_request_duration_seconds",
			Help:    "Wall-clock duration of generative collaborator calls",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	activeBindings = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_bindings_active",
			Help: "Currently bound negotiation role seats",
		},
	)

	negotiationsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "negotiations_started_total",
			Help: "Negotiations created",
		},
	)
)

// Monitor is the facade services use to record metrics; every metric
// has a natural increment site, so there is no polling loop.
type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

// TrackPartyMessage records a mediation submission and its outcome
// (accepted, rejected, rate_limited).
func (m *Monitor) TrackPartyMessage(role, status string) {
	partyMessages.WithLabelValues(role, status).Inc()
}

// TrackGenerator records a collaborator call outcome (success, fallback)
// and its duration.
func (m *Monitor) TrackGenerator(status string, duration time.Duration) {
	generatorRequests.WithLabelValues(status).Inc()
	generatorDuration.Observe(duration.Seconds())
}

func (m *Monitor) SetActiveBindings(n int) {
	activeBindings.Set(float64(n))
}

func (m *Monitor) TrackNegotiationStarted() {
	negotiationsStarted.Inc()
}
