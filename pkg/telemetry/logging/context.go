package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Context keys for common log fields.
type contextKey string

const (
	// RunIDKey is the context key for retention run IDs.
	RunIDKey contextKey = "run_id"

	// PolicyIDKey is the context key for policy IDs.
	PolicyIDKey contextKey = "policy_id"

	// EntityKey is the context key for the entity a step acts on.
	EntityKey contextKey = "entity"
)

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run ID from the context.
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(RunIDKey).(string); ok {
		return id
	}
	return ""
}

// WithPolicyID adds a policy ID to the context.
func WithPolicyID(ctx context.Context, policyID string) context.Context {
	return context.WithValue(ctx, PolicyIDKey, policyID)
}

// GetPolicyID retrieves the policy ID from the context.
func GetPolicyID(ctx context.Context) string {
	if id, ok := ctx.Value(PolicyIDKey).(string); ok {
		return id
	}
	return ""
}

// WithEntity adds an entity path to the context.
func WithEntity(ctx context.Context, entity string) context.Context {
	return context.WithValue(ctx, EntityKey, entity)
}

// GetEntity retrieves the entity path from the context.
func GetEntity(ctx context.Context) string {
	if e, ok := ctx.Value(EntityKey).(string); ok {
		return e
	}
	return ""
}

// extractContextFields extracts common fields from context for logging.
// Returns a slice of key-value pairs suitable for logger.With().
func extractContextFields(ctx context.Context) []any {
	var fields []any

	if id := GetRunID(ctx); id != "" {
		fields = append(fields, "run_id", id)
	}
	if id := GetPolicyID(ctx); id != "" {
		fields = append(fields, "policy_id", id)
	}
	if e := GetEntity(ctx); e != "" {
		fields = append(fields, "entity", e)
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields, "trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}

	return fields
}

// FromContext returns logger enriched with the fields carried by ctx. A nil
// logger means slog.Default().
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	fields := extractContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
