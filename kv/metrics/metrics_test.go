package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistered(t *testing.T) {
	CommitCounter.Inc()
	AbortCounter.WithLabelValues(ReasonValidation).Inc()
	StatementDuration.Observe(0.01)
	AttemptsHistogram.Observe(2)
	SkippedCounter.Inc()
	InflightGauge.Set(0)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, name := range []string{
		"tinyocc_executor_commits_total",
		"tinyocc_executor_aborts_total",
		"tinyocc_executor_statement_duration_seconds",
		"tinyocc_executor_statement_attempts",
		"tinyocc_scheduler_skipped_total",
		"tinyocc_scheduler_inflight",
	} {
		assert.True(t, names[name], name)
	}
}
