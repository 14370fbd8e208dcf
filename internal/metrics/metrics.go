package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	TriggersAccepted prometheus.Counter
	AnalysisFailures prometheus.Counter
	PatternsRecorded prometheus.Counter
	AnalysisDuration prometheus.Histogram
}

// New registers and returns the engine's Prometheus metrics. Call once per
// process; promauto panics on duplicate registration.
func New() *Metrics {
	return &Metrics{
		TriggersAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sender_patterns_triggers_accepted_total",
			Help: "Total number of accepted analysis triggers",
		}),
		AnalysisFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sender_patterns_analysis_failures_total",
			Help: "Total number of background analyses that ended in error",
		}),
		PatternsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sender_patterns_patterns_recorded_total",
			Help: "Total number of sender patterns persisted",
		}),
		AnalysisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sender_patterns_analysis_duration_seconds",
			Help:    "Wall-clock time of completed sender analyses",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
