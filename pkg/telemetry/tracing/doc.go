// Package tracing provides OpenTelemetry tracing for retention runs.
//
// A run produces one trace: a "keeper.run" root span, a "keeper.policy" child
// per policy, and a "keeper.step" grandchild per cascade step (count, archive,
// delete, soft-delete, purge or job). Spans are exported over OTLP/gRPC.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, tracing.SpanPolicy)
//	tracing.SetPolicyAttributes(span, policy.ID, string(policy.Action), string(policy.StorageSystem), policy.EntityPath)
//	defer span.End()
//
// When tracing is disabled, or the Tracer is nil, spans are no-ops.
//
// # Sampling
//
// sample_ratio 1.0 records every run, 0 records none, and anything in between
// samples by trace id. Child spans follow their parent's decision.
package tracing
