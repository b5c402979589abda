package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		reviewVerdicts,
		reviewQueueDepth,
		notifyDeliveries,
	)
}

var (
	reviewVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_verdicts_total",
			Help: "Manual review verdicts by outcome (approved|rejected|deleted).",
		},
		[]string{"outcome"},
	)

	reviewQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "review_queue_depth",
			Help: "Submissions currently awaiting manual review.",
		},
	)

	// channel: telegram|email, status: sent|error
	notifyDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_deliveries_total",
			Help: "Notification attempts by channel and delivery status.",
		},
		[]string{"channel", "status"},
	)
)

func IncReviewVerdict(outcome string) { reviewVerdicts.WithLabelValues(norm(outcome)).Inc() }

func SetReviewQueueDepth(n int) { reviewQueueDepth.Set(float64(n)) }

func IncNotify(channel, status string) {
	notifyDeliveries.WithLabelValues(norm(channel), norm(status)).Inc()
}
