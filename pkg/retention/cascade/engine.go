package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"recordkeeper-hq/keeper/pkg/catalog"
	"recordkeeper-hq/keeper/pkg/retention"
	"recordkeeper-hq/keeper/pkg/retention/action"
	"recordkeeper-hq/keeper/pkg/retention/filter"
	"recordkeeper-hq/keeper/pkg/retention/graph"
	"recordkeeper-hq/keeper/pkg/retention/jobs"
	"recordkeeper-hq/keeper/pkg/telemetry/logging"
	"recordkeeper-hq/keeper/pkg/telemetry/metrics"
	"recordkeeper-hq/keeper/pkg/telemetry/tracing"
	"recordkeeper-hq/keeper/pkg/warehouse"
)

// errRelatedFailed fails a policy whose source entity was left unchanged
// because a related entity's step failed.
var errRelatedFailed = errors.New("a related entity step failed; source entity left unchanged")

// Engine applies the retention policies of a catalog.
type Engine struct {
	catalog  catalog.Reader
	wh       warehouse.Warehouse
	datasets action.Datasets

	archive    *action.ArchiveSettings
	dispatcher *jobs.Dispatcher
	lakeBucket string
	fileFormat string

	dryRun  bool
	now     func() time.Time
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithArchive enables scheduled archive policies.
func WithArchive(s action.ArchiveSettings) Option {
	return func(e *Engine) { e.archive = &s }
}

// WithObjectStore enables scheduled object-store delete policies. Related
// entities are folders of lakeBucket holding files of fileFormat.
func WithObjectStore(d *jobs.Dispatcher, lakeBucket, fileFormat string) Option {
	return func(e *Engine) {
		e.dispatcher = d
		e.lakeBucket = lakeBucket
		e.fileFormat = fileFormat
	}
}

// WithDryRun logs mutating statements instead of executing them.
func WithDryRun(enabled bool) Option {
	return func(e *Engine) { e.dryRun = enabled }
}

// WithClock sets the time source. A run reads it once at start.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics records runs, policies and steps.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithTracer traces runs, policies and steps.
func WithTracer(t *tracing.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// New creates an engine reading policies and relationships from store and
// acting on wh.
func New(store catalog.Reader, wh warehouse.Warehouse, datasets action.Datasets, opts ...Option) *Engine {
	e := &Engine{
		catalog:  store,
		wh:       wh,
		datasets: datasets,
		now:      time.Now,
		logger:   slog.Default().With("component", "retention.cascade"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run carries the state shared by the policies of one run.
type run struct {
	runner *action.Runner
	graph  *graph.Graph
}

// Run processes the policies of mode, restricted to ids when ids is
// non-empty. Policy failures are recorded in the report; the returned error
// is reserved for failures that prevent the run from starting.
func (e *Engine) Run(ctx context.Context, mode retention.Mode, ids []string) (*Report, error) {
	started := e.now()
	report := &Report{
		RunID:   uuid.NewString(),
		Mode:    mode,
		DryRun:  e.dryRun,
		Started: started,
	}

	ctx = logging.WithRunID(ctx, report.RunID)
	ctx, span := e.tracer.Start(ctx, tracing.SpanRun)
	tracing.SetRunAttributes(span, report.RunID, string(mode), e.dryRun)
	logger := logging.FromContext(ctx, e.logger)

	err := e.run(ctx, report, ids, logger)
	report.Finished = e.now()
	tracing.End(span, err)
	if err != nil {
		logger.Error("retention run aborted", "error", err)
		e.metrics.RecordRun(string(mode), "aborted", report.Duration())
		return report, err
	}

	summary := report.Summary()
	logger.Info("retention run finished",
		"mode", mode,
		"policies", summary.Total,
		"succeeded", summary.Succeeded,
		"skipped", summary.Skipped,
		"unsupported", summary.Unsupported,
		"failed", summary.Failed,
		"duration", report.Duration(),
	)
	e.metrics.RecordRun(string(mode), report.Status(), report.Duration())
	return report, nil
}

func (e *Engine) run(ctx context.Context, report *Report, ids []string, logger *slog.Logger) error {
	policies, err := e.catalog.Policies(ctx, report.Mode.Kind(), ids)
	if err != nil {
		return fmt.Errorf("load policies: %w", err)
	}
	logger.Info("retention run started", "mode", report.Mode, "policies", len(policies), "dry_run", e.dryRun)

	for _, p := range policies {
		if err := e.validate(p); err != nil {
			return err
		}
	}

	r := &run{
		runner: action.NewRunner(e.wh, filter.NewBuilder(e.wh.Dialect(), filter.WithClock(frozen(report.Started))), e.dryRun),
	}
	if retention.ContainsGrouping(policies) {
		fks, err := e.catalog.ForeignKeys(ctx)
		if err != nil {
			return fmt.Errorf("load foreign keys: %w", err)
		}
		if r.graph, err = graph.Build(ctx, fks, e.catalog, nil); err != nil {
			return err
		}
	}

	for _, p := range policies {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Policies = append(report.Policies, e.runPolicy(ctx, r, p))
	}
	return nil
}

// Validate checks every policy of mode without touching the warehouse and
// returns the errors found, one per invalid policy.
func (e *Engine) Validate(ctx context.Context, mode retention.Mode) ([]*retention.Policy, []error, error) {
	policies, err := e.catalog.Policies(ctx, mode.Kind(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("load policies: %w", err)
	}
	var errs []error
	for _, p := range policies {
		if err := e.validate(p); err != nil {
			errs = append(errs, err)
		}
	}
	return policies, errs, nil
}

func frozen(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// supported reports whether the engine implements the policy's combination
// of kind, action and storage system.
func supported(p *retention.Policy) bool {
	switch {
	case p.Kind == retention.KindScheduled && p.StorageSystem == retention.StorageBQ:
		return true
	case p.Kind == retention.KindScheduled && p.StorageSystem == retention.StorageGCS:
		return p.Action == retention.ActionDelete
	case p.Kind == retention.KindOnDemand && p.StorageSystem == retention.StorageBQ:
		return p.Action == retention.ActionDelete
	}
	return false
}

// validate checks a policy and the settings its processing needs.
func (e *Engine) validate(p *retention.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if !supported(p) {
		return nil
	}
	if err := e.datasets.Validate(p.Action, p.Kind, p.StorageSystem); err != nil {
		return err
	}
	switch {
	case p.StorageSystem == retention.StorageGCS:
		if e.dispatcher == nil {
			return retention.NewConfigurationError("jobs.backend",
				fmt.Sprintf("policy %s deletes from object storage but no job backend is configured", p.ID))
		}
		if e.lakeBucket == "" {
			return retention.NewConfigurationError("archive.lake_bucket", "lake bucket is required for object-store policies")
		}
	case p.Action == retention.ActionArchive:
		if e.archive == nil {
			return retention.NewConfigurationError("archive.bucket",
				fmt.Sprintf("policy %s archives but no archive destination is configured", p.ID))
		}
	}
	return nil
}

func (e *Engine) runPolicy(ctx context.Context, r *run, p *retention.Policy) *PolicyReport {
	start := time.Now()
	pr := &PolicyReport{
		PolicyID: p.ID,
		Entity:   p.EntityPath,
		Kind:     p.Kind,
		Action:   p.Action,
		Storage:  p.StorageSystem,
		Status:   StatusSuccess,
	}

	ctx = logging.WithPolicyID(ctx, p.ID)
	ctx = logging.WithEntity(ctx, p.EntityPath)
	ctx, span := e.tracer.Start(ctx, tracing.SpanPolicy)
	tracing.SetPolicyAttributes(span, p.ID, string(p.Action), string(p.StorageSystem), p.EntityPath)
	logger := logging.FromContext(ctx, e.logger)
	logger.Info("processing policy", "kind", p.Kind, "action", p.Action, "storage_system", p.StorageSystem, "grouping", p.Grouping)

	pc := &policyRun{
		engine: e,
		run:    r,
		policy: p,
		report: pr,
		logger: logger,
	}

	var err error
	switch {
	case !supported(p):
		pr.Status = StatusUnsupported
		pr.Reason = fmt.Errorf("%w: %s %s on %s", retention.ErrUnsupported, p.Kind, p.Action, p.StorageSystem).Error()
		logger.Warn("policy combination not supported, skipping")
	case p.StorageSystem == retention.StorageGCS:
		err = pc.objectDelete(ctx)
	case p.Kind == retention.KindOnDemand:
		err = pc.softDelete(ctx)
	case p.Action == retention.ActionArchive:
		err = pc.archive(ctx)
	default:
		err = pc.hardDelete(ctx)
	}

	if err != nil {
		pr.fail(err)
		logger.Error("policy failed", "error", err)
	} else if pr.Status == StatusSuccess {
		logger.Info("policy completed", "steps", len(pr.Steps))
	}

	pr.Duration = time.Since(start)
	tracing.End(span, err)
	e.metrics.RecordPolicy(string(p.Action), string(p.StorageSystem), string(pr.Status), pr.Duration)
	return pr
}

// policyRun is the processing of one policy.
type policyRun struct {
	engine *Engine
	run    *run
	policy *retention.Policy
	report *PolicyReport
	logger *slog.Logger
}

// skip marks the policy skipped because the source has no candidate rows.
func (pc *policyRun) skip(entity string) {
	pc.logger.Info("no candidate rows, policy skipped", "entity", entity)
	pc.report.Status = StatusSkipped
	pc.report.Reason = action.ReasonNoRows
}

// step runs one action, recording it in the report, the trace and the
// metrics.
func (pc *policyRun) step(ctx context.Context, entity, name string, fn func(ctx context.Context) (action.Outcome, error)) (action.Outcome, error) {
	e := pc.engine
	ctx = logging.WithEntity(ctx, entity)
	ctx, span := e.tracer.Start(ctx, tracing.SpanStep)
	start := time.Now()

	out, err := fn(ctx)
	if out.Entity == "" {
		out.Entity = entity
	}
	if out.Action == "" {
		out.Action = name
	}
	elapsed := time.Since(start)

	status := "success"
	switch {
	case err != nil:
		status = "failed"
		logging.FromContext(ctx, pc.logger).Error("cascade step failed", "action", out.Action, "error", err)
	case out.Skipped:
		status = "skipped"
	}

	tracing.SetStepAttributes(span, out.Entity, out.Action, out.Rows, out.Skipped, out.Reason)
	tracing.End(span, err)
	e.metrics.RecordStep(out.Entity, out.Action, status, out.Rows)
	if out.Action == "job" {
		e.metrics.RecordJob(status, elapsed)
	}
	pc.report.add(out, err)
	return out, err
}

// apply runs backend b against t as a step.
func (pc *policyRun) apply(ctx context.Context, b action.Backend, t action.Target) (action.Outcome, error) {
	return pc.step(ctx, t.Path, b.Name(), func(ctx context.Context) (action.Outcome, error) {
		return b.Apply(ctx, t)
	})
}
