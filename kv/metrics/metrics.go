package metrics

import "github.com/prometheus/client_golang/prometheus"

// Abort reasons, used as the "reason" label of AbortCounter.
const (
	ReasonOpenConflict  = "open_conflict"
	ReasonValidation    = "validation"
	ReasonSpinExhausted = "spin_exhausted"
)

var (
	CommitCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tinyocc",
			Subsystem: "executor",
			Name:      "commits_total",
			Help:      "Counter of committed statements.",
		})

	AbortCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinyocc",
			Subsystem: "executor",
			Name:      "aborts_total",
			Help:      "Counter of aborted latch operations and statement attempts.",
		}, []string{"reason"})

	StatementDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tinyocc",
			Subsystem: "executor",
			Name:      "statement_duration_seconds",
			Help:      "Bucketed histogram of the time from first attempt to commit of a statement.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 20),
		})

	AttemptsHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tinyocc",
			Subsystem: "executor",
			Name:      "statement_attempts",
			Help:      "Bucketed histogram of the number of attempts a statement needed to commit.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		})

	SkippedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tinyocc",
			Subsystem: "scheduler",
			Name:      "skipped_total",
			Help:      "Counter of invalid transactions skipped.",
		})

	InflightGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tinyocc",
			Subsystem: "scheduler",
			Name:      "inflight",
			Help:      "Number of transactions currently executing.",
		})
)

func init() {
	prometheus.MustRegister(CommitCounter)
	prometheus.MustRegister(AbortCounter)
	prometheus.MustRegister(StatementDuration)
	prometheus.MustRegister(AttemptsHistogram)
	prometheus.MustRegister(SkippedCounter)
	prometheus.MustRegister(InflightGauge)
}
