package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the orchestration engine.
type Metrics struct {
	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionsFailed    *prometheus.CounterVec
	StepsCompleted    *prometheus.CounterVec
	DuplicateSteps    prometheus.Counter
	CompleteStepTime  prometheus.Histogram
}

// New creates and registers the orchestration collectors.
func New() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verigate_orchestration_sessions_started_total",
			Help: "Total number of orchestration sessions started",
		}),
		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verigate_orchestration_sessions_completed_total",
			Help: "Total number of sessions that reached COMPLETED",
		}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_orchestration_sessions_failed_total",
			Help: "Total number of sessions that reached FAILED, by reason",
		}, []string{"reason"}),
		StepsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_orchestration_steps_completed_total",
			Help: "Total number of step completions recorded, by reported status",
		}, []string{"status"}),
		DuplicateSteps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verigate_orchestration_duplicate_steps_total",
			Help: "Step completions absorbed as duplicates",
		}),
		CompleteStepTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "verigate_orchestration_complete_step_seconds",
			Help:    "Latency of CompleteStep including persistence",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveCompleteStepLatency records one CompleteStep duration.
func (m *Metrics) ObserveCompleteStepLatency(d time.Duration) {
	m.CompleteStepTime.Observe(d.Seconds())
}
