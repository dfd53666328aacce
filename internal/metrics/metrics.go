// Package metrics exposes Prometheus counters for backend traffic and polling outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "contentlocalizer"

var (
	backendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_requests_total",
		Help:      "Requests sent to the localization backend by operation and outcome",
	}, []string{"operation", "outcome"}) // outcome=ok|not_found|error

	pollAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_attempts_total",
		Help:      "Status queries issued by the poller",
	}, []string{"kind"}) // kind=dubbing|content

	pollOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_outcomes_total",
		Help:      "Finished polling sequences by outcome",
	}, []string{"kind", "outcome"}) // outcome=completed|failed|exhausted|cancelled|error

	probeResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "probe_total",
		Help:      "Cache probe results",
	}, []string{"result"}) // result=hit|miss|error
)

// Outcome labels shared by the poller.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeExhausted = "exhausted"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// RecordBackendRequest counts one backend round trip.
func RecordBackendRequest(operation, outcome string) {
	backendRequests.WithLabelValues(operation, outcome).Inc()
}

// RecordPollAttempt counts one status query.
func RecordPollAttempt(kind string) {
	pollAttempts.WithLabelValues(kind).Inc()
}

// RecordPollOutcome counts a finished polling sequence.
func RecordPollOutcome(kind, outcome string) {
	pollOutcomes.WithLabelValues(kind, outcome).Inc()
}

// RecordProbe counts a cache probe result.
func RecordProbe(result string) {
	probeResults.WithLabelValues(result).Inc()
}
