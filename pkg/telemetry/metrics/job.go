package metrics

import (
	"time"

	"recordkeeper-hq/keeper/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics tracks object-store delete jobs.
type JobMetrics struct {
	jobsTotal   *prometheus.CounterVec
	jobDuration prometheus.Histogram
}

// NewJobMetrics creates and registers job metrics with the provided registry.
func NewJobMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *JobMetrics {
	jm := &JobMetrics{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "jobs_total",
				Help:      "Total number of delete jobs by final status",
			},
			[]string{"status"},
		),

		jobDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "job_duration_seconds",
				Help:      "Time from job submission to completion in seconds",
				Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
			},
		),
	}

	registry.MustRegister(jm.jobsTotal, jm.jobDuration)

	return jm
}

// RecordJob records a job's status. Skipped jobs have no duration.
func (jm *JobMetrics) RecordJob(status string, duration time.Duration) {
	jm.jobsTotal.WithLabelValues(status).Inc()
	if duration > 0 {
		jm.jobDuration.Observe(duration.Seconds())
	}
}
