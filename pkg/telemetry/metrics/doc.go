// Package metrics provides Prometheus metrics for retention runs.
//
// # Metrics
//
//   - runs_total / run_duration_seconds: one sample per run, by mode and status
//   - policies_total / policy_duration_seconds: per-policy outcome
//   - steps_total / rows_affected_total: per cascade step and entity
//   - jobs_total / job_duration_seconds: object-store delete jobs
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordRun("scheduled", "success", elapsed)
//
// A keeper run is usually short lived, so besides the HTTP Handler the
// collector can write its registry to a node-exporter textfile or push it to a
// Pushgateway once the run finishes:
//
//	if err := collector.Flush(ctx); err != nil {
//	    logger.Warn("metrics flush failed", "error", err)
//	}
//
// # Cardinality Management
//
// Entity names are user data. Once the limiter has seen 10,000 distinct
// entity label sets, further entities are recorded as "other".
package metrics
