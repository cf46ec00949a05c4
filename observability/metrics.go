package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Credit outcomes recorded by the streak ledger.
const (
	OutcomeStarted   = "started"
	OutcomeContinued = "continued"
	OutcomeReset     = "reset"
	OutcomeNoop      = "noop"
)

var (
	streakCredits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gtsd",
		Subsystem: "streak",
		Name:      "credits_total",
		Help:      "Streak credit attempts by outcome.",
	}, []string{"outcome"})
	badgesAwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gtsd",
		Subsystem: "badges",
		Name:      "awarded_total",
		Help:      "Badges newly granted, by badge type.",
	}, []string{"badge"})
	complianceEvaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gtsd",
		Subsystem: "compliance",
		Name:      "evaluations_total",
		Help:      "Daily compliance evaluations by result.",
	}, []string{"result"})
	cacheErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gtsd",
		Subsystem: "cache",
		Name:      "errors_total",
		Help:      "Suppressed result cache failures by operation.",
	}, []string{"op"})
	lockTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gtsd",
		Subsystem: "streak",
		Name:      "lock_timeouts_total",
		Help:      "Streak row lock waits that exceeded the configured bound.",
	})
)

func init() {
	prometheus.MustRegister(streakCredits, badgesAwarded, complianceEvaluations, cacheErrors, lockTimeouts)
}

// RecordCredit counts a streak credit attempt.
func RecordCredit(outcome string) {
	streakCredits.WithLabelValues(outcome).Inc()
}

// RecordBadgeAwarded counts a newly inserted badge row.
func RecordBadgeAwarded(badge string) {
	badgesAwarded.WithLabelValues(badge).Inc()
}

// RecordCompliance counts an evaluation.
func RecordCompliance(compliant bool) {
	result := "non_compliant"
	if compliant {
		result = "compliant"
	}
	complianceEvaluations.WithLabelValues(result).Inc()
}

// RecordCacheError counts a suppressed cache failure.
func RecordCacheError(op string) {
	cacheErrors.WithLabelValues(op).Inc()
}

// RecordLockTimeout counts a bounded lock wait that expired.
func RecordLockTimeout() {
	lockTimeouts.Inc()
}
