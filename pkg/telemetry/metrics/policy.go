package metrics

import (
	"time"

	"recordkeeper-hq/keeper/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// PolicyMetrics tracks policies and the cascade steps they execute.
//
// Metrics:
//   - keeper_retention_policies_total: policies by action, storage system and status
//   - keeper_retention_policy_duration_seconds: time spent on one policy
//   - keeper_retention_steps_total: cascade steps by entity, action and status
//   - keeper_retention_rows_affected_total: candidate rows counted per step
type PolicyMetrics struct {
	policiesTotal  *prometheus.CounterVec
	policyDuration *prometheus.HistogramVec
	stepsTotal     *prometheus.CounterVec
	rowsTotal      *prometheus.CounterVec
}

// NewPolicyMetrics creates and registers policy metrics with the provided registry.
func NewPolicyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PolicyMetrics {
	pm := &PolicyMetrics{
		policiesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policies_total",
				Help:      "Total number of policies processed",
			},
			[]string{"action", "storage", "status"},
		),

		policyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_duration_seconds",
				Help:      "Duration of policy processing in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.5, 3, 10),
			},
			[]string{"action"},
		),

		stepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "steps_total",
				Help:      "Total number of cascade steps",
			},
			[]string{"entity", "action", "status"},
		),

		rowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rows_affected_total",
				Help:      "Total number of candidate rows acted on",
			},
			[]string{"entity", "action"},
		),
	}

	registry.MustRegister(
		pm.policiesTotal,
		pm.policyDuration,
		pm.stepsTotal,
		pm.rowsTotal,
	)

	return pm
}

// RecordPolicy records one processed policy.
func (pm *PolicyMetrics) RecordPolicy(action, storage, status string, duration time.Duration) {
	pm.policiesTotal.WithLabelValues(action, storage, status).Inc()
	pm.policyDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordStep records one cascade step.
func (pm *PolicyMetrics) RecordStep(entity, action, status string, rows int64) {
	pm.stepsTotal.WithLabelValues(entity, action, status).Inc()
	if rows > 0 {
		pm.rowsTotal.WithLabelValues(entity, action).Add(float64(rows))
	}
}
