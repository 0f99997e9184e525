package cascade

import (
	"context"

	"recordkeeper-hq/keeper/pkg/retention/action"
	"recordkeeper-hq/keeper/pkg/retention/filter"
	"recordkeeper-hq/keeper/pkg/retention/graph"
)

// window resolves the scheduled policy's base filter on its source table:
// the retention window on the timestamp column narrowed by the policy's
// filter expression.
func (pc *policyRun) window(ctx context.Context) (string, error) {
	p, r := pc.policy, pc.run.runner
	ct, err := r.ColumnType(ctx, p.EntityPath, p.TimestampColumn)
	if err != nil {
		return "", err
	}
	predicate, err := r.Builder().RetentionPredicate(p.TimestampColumn, ct, p.Retention)
	if err != nil {
		return "", err
	}
	return filter.BaseFilter(predicate, p.FilterExpression), nil
}

// candidates counts the source rows the base filter selects. The count step
// is recorded in the report.
func (pc *policyRun) candidates(ctx context.Context, base string) (int64, error) {
	var n int64
	_, err := pc.step(ctx, pc.policy.EntityPath, "count", func(ctx context.Context) (action.Outcome, error) {
		var err error
		n, err = pc.run.runner.Count(ctx, pc.policy.EntityPath, base)
		return action.Outcome{Rows: n}, err
	})
	return n, err
}

// related returns the targets of the in-scope direct neighbors, each scoped
// by a join against the source rows selected by base. A neighbor whose join
// cannot be expressed is recorded as a failed step and left out.
func (pc *policyRun) related(ctx context.Context, base, name string) ([]action.Target, bool) {
	source := pc.policy.EntityPath
	ok := true
	var targets []action.Target
	for _, nb := range SingleHop(pc.run.graph, pc.policy, source, pc.logger) {
		t, err := pc.joinTarget(source, base, nb)
		if err != nil {
			pc.step(ctx, nb.Node.Path, name, func(context.Context) (action.Outcome, error) {
				return action.Outcome{}, err
			})
			ok = false
			continue
		}
		targets = append(targets, t)
	}
	return targets, ok
}

func (pc *policyRun) joinTarget(source, base string, nb graph.Neighbor) (action.Target, error) {
	near, far := nb.JoinColumns(source)
	f, err := pc.run.runner.Builder().JoinFilter(far, near, source, base)
	if err != nil {
		return action.Target{}, err
	}
	return action.Target{Path: nb.Node.Path, Filter: f}, nil
}

// hardDelete deletes the expired rows of the in-scope neighbors, then of the
// source.
func (pc *policyRun) hardDelete(ctx context.Context) error {
	base, err := pc.window(ctx)
	if err != nil {
		return err
	}
	n, err := pc.candidates(ctx, base)
	if err != nil {
		return err
	}
	if n == 0 {
		pc.skip(pc.policy.EntityPath)
		return nil
	}
	return pc.deleteCascade(ctx, base, n)
}

func (pc *policyRun) deleteCascade(ctx context.Context, base string, n int64) error {
	del := action.NewHardDelete(pc.run.runner)
	targets, ok := pc.related(ctx, base, del.Name())
	for _, t := range targets {
		if _, err := pc.apply(ctx, del, t); err != nil {
			ok = false
		}
	}
	if !ok {
		return errRelatedFailed
	}
	_, err := pc.apply(ctx, del, action.Target{Path: pc.policy.EntityPath, Filter: base, KnownRows: n})
	return err
}

// archive archives the expired rows of the source and its in-scope
// neighbors, then deletes them as hardDelete does. Nothing is deleted unless
// every archive step succeeded.
func (pc *policyRun) archive(ctx context.Context) error {
	base, err := pc.window(ctx)
	if err != nil {
		return err
	}
	n, err := pc.candidates(ctx, base)
	if err != nil {
		return err
	}
	if n == 0 {
		pc.skip(pc.policy.EntityPath)
		return nil
	}

	e := pc.engine
	arc := action.NewArchive(pc.run.runner, e.datasets, *e.archive)
	if _, err := pc.apply(ctx, arc, action.Target{Path: pc.policy.EntityPath, Filter: base, KnownRows: n}); err != nil {
		return err
	}
	targets, ok := pc.related(ctx, base, arc.Name())
	for _, t := range targets {
		if _, err := pc.apply(ctx, arc, t); err != nil {
			ok = false
		}
	}
	if !ok {
		return errRelatedFailed
	}

	return pc.deleteCascade(ctx, base, n)
}
