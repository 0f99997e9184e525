package metrics

import (
	"time"

	"recordkeeper-hq/keeper/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RunMetrics tracks whole retention runs.
//
// Metrics:
//   - keeper_retention_runs_total: runs by mode and status
//   - keeper_retention_run_duration_seconds: run wall time
//   - keeper_retention_last_run_timestamp_seconds: completion time of the last run
type RunMetrics struct {
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	lastRun     *prometheus.GaugeVec
}

// NewRunMetrics creates and registers run metrics with the provided registry.
func NewRunMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RunMetrics {
	rm := &RunMetrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "runs_total",
				Help:      "Total number of retention runs",
			},
			[]string{"mode", "status"},
		),

		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "run_duration_seconds",
				Help:      "Duration of retention runs in seconds",
				// Warehouse statements and Spark jobs: 1s to ~4.5h
				Buckets: prometheus.ExponentialBuckets(1, 3, 10),
			},
			[]string{"mode"},
		),

		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last retention run finished",
			},
			[]string{"mode"},
		),
	}

	registry.MustRegister(
		rm.runsTotal,
		rm.runDuration,
		rm.lastRun,
	)

	return rm
}

// RecordRun records a finished run.
func (rm *RunMetrics) RecordRun(mode, status string, duration time.Duration) {
	rm.runsTotal.WithLabelValues(mode, status).Inc()
	rm.runDuration.WithLabelValues(mode).Observe(duration.Seconds())
	rm.lastRun.WithLabelValues(mode).SetToCurrentTime()
}
