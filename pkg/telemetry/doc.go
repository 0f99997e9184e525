// Package telemetry groups keeper's observability packages.
//
//   - logging: slog setup and run/policy context fields
//   - metrics: Prometheus collector with textfile and Pushgateway export
//   - tracing: OpenTelemetry spans per run, policy and cascade step
//
// Each subpackage is configured from the telemetry section of the keeper
// configuration file.
package telemetry
