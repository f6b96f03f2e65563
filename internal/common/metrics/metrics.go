// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch cycle outcomes.
const (
	OutcomeSent      = "sent"
	OutcomeRetry     = "retry"
	OutcomeExhausted = "exhausted"
	OutcomeSkipped   = "skipped"
	OutcomeError     = "error"
)

var (
	DispatchCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatch_cycles_total",
			Help: "Dispatch cycles by outcome",
		},
		[]string{"outcome"},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notification_dispatch_duration_seconds",
			Help:    "Duration of one dispatch cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ChannelAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_channel_attempts_total",
			Help: "Channel delivery attempts by channel and result",
		},
		[]string{"channel", "result"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// RecordAttempt counts one channel attempt.
func RecordAttempt(channel string, ok bool) {
	result := "fail"
	if ok {
		result = "ok"
	}
	ChannelAttempts.WithLabelValues(channel, result).Inc()
}
