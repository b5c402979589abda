package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		enrollmentsReconciled,
		enrollmentsExpired,
	)
}

var (
	// action: created|extended|noop
	enrollmentsReconciled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrollments_reconciled_total",
			Help: "Enrollment grants applied by the reconciler, by plan and action.",
		},
		[]string{"plan", "action"},
	)

	enrollmentsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enrollments_expired_total",
			Help: "Enrollments flipped to expired by the sweep.",
		},
	)
)

func IncReconciled(plan, action string) {
	enrollmentsReconciled.WithLabelValues(norm(plan), norm(action)).Inc()
}

func AddExpired(n int) { enrollmentsExpired.Add(float64(n)) }
