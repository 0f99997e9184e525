package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanRun    = "keeper.run"
	SpanPolicy = "keeper.policy"
	SpanStep   = "keeper.step"
)

// Custom attribute keys use the "keeper.*" namespace.
const (
	AttrRunID   = "keeper.run.id"
	AttrRunMode = "keeper.run.mode"
	AttrDryRun  = "keeper.run.dry_run"

	AttrPolicyID      = "keeper.policy.id"
	AttrPolicyAction  = "keeper.policy.action"
	AttrPolicyStorage = "keeper.policy.storage"

	AttrEntity     = "keeper.entity"
	AttrStepAction = "keeper.step.action"
	AttrRows       = "keeper.step.rows"
	AttrSkipped    = "keeper.step.skipped"
	AttrSkipReason = "keeper.step.skip_reason"

	AttrJobID = "keeper.job.id"

	AttrErrorMessage = "error.message"
)

// SetRunAttributes sets run-level attributes on a span.
func SetRunAttributes(span trace.Span, runID, mode string, dryRun bool) {
	span.SetAttributes(
		attribute.String(AttrRunID, runID),
		attribute.String(AttrRunMode, mode),
		attribute.Bool(AttrDryRun, dryRun),
	)
}

// SetPolicyAttributes sets policy attributes on a span.
//
// Example:
//
//	SetPolicyAttributes(span, "p-orders", "archive", "BQ", "sales.orders")
func SetPolicyAttributes(span trace.Span, policyID, action, storage, entity string) {
	span.SetAttributes(
		attribute.String(AttrPolicyID, policyID),
		attribute.String(AttrPolicyAction, action),
		attribute.String(AttrPolicyStorage, storage),
		attribute.String(AttrEntity, entity),
	)
}

// SetStepAttributes records what a cascade step did. A negative rows value
// means the count was not taken and is omitted.
func SetStepAttributes(span trace.Span, entity, action string, rows int64, skipped bool, reason string) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrEntity, entity),
		attribute.String(AttrStepAction, action),
		attribute.Bool(AttrSkipped, skipped),
	}
	if rows >= 0 {
		attrs = append(attrs, attribute.Int64(AttrRows, rows))
	}
	if reason != "" {
		attrs = append(attrs, attribute.String(AttrSkipReason, reason))
	}
	span.SetAttributes(attrs...)
}

// SetJobAttribute records the id of a submitted delete job.
func SetJobAttribute(span trace.Span, jobID string) {
	if jobID != "" {
		span.SetAttributes(attribute.String(AttrJobID, jobID))
	}
}
