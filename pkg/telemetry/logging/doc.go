// Package logging configures the process-wide structured logger and carries
// run metadata through contexts.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
// Components derive their own loggers from the default one:
//
//	logger := slog.Default().With("component", "retention.cascade")
//
// # Context Fields
//
// A retention run attaches its identifiers to the context so that every log
// line of a cascade step can be correlated:
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithPolicyID(ctx, policy.ID)
//	logging.FromContext(ctx, logger).Info("policy started")
//
// The active OpenTelemetry span's trace and span ids are added as well.
package logging
