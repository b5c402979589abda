package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		validateRequests,
		validateDuration,
		attemptEscalations,
	)
}

var (
	// outcome: auto_approved|pending_confirmation|manual_review|rejected|unavailable
	// reason: rejection reason code, "none" otherwise
	validateRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receipt_validate_requests_total",
			Help: "Count of /api/v1/payments/validate calls by outcome and reason.",
		},
		[]string{"outcome", "reason"},
	)

	validateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "receipt_validate_duration_seconds",
			Help:    "Duration of the validate pipeline in seconds, extraction included.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"outcome"},
	)

	attemptEscalations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "receipt_attempt_escalations_total",
			Help: "Submissions routed to manual review by the attempt threshold.",
		},
	)
)

func IncValidate(outcome, reason string) {
	if reason == "" {
		reason = "none"
	}
	validateRequests.WithLabelValues(norm(outcome), reason).Inc()
}

func ObserveValidateDuration(outcome string, seconds float64) {
	validateDuration.WithLabelValues(norm(outcome)).Observe(seconds)
}

func IncEscalation() { attemptEscalations.Inc() }
