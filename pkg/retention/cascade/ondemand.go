package cascade

import (
	"context"

	"recordkeeper-hq/keeper/pkg/retention/action"
	"recordkeeper-hq/keeper/pkg/retention/graph"
)

// softDelete tombstones the rows the on-demand policy selects together with
// every related row reachable through in-scope entities, purging each
// touched entity's tombstone table after its rows moved.
//
// Related entities are processed before the source. A neighbor of the source
// is scoped against the live source table; entities further out are scoped
// against their parent's tombstone batch of today, since the parent's rows
// have already left the live table by then. Every touched entity is purged,
// including those with no matching rows, but the walk does not continue past
// an entity that had none.
func (pc *policyRun) softDelete(ctx context.Context) error {
	p, r := pc.policy, pc.run.runner
	source := p.EntityPath

	n, err := pc.candidates(ctx, p.FilterExpression)
	if err != nil {
		return err
	}
	if n == 0 {
		pc.skip(source)
		return nil
	}

	sd := action.NewSoftDelete(r, pc.engine.datasets.Tombstone, p.SoftDelete)
	ok := true
	visited := Walk(pc.run.graph, p, source, func(from string, nb graph.Neighbor) bool {
		t, err := pc.tombstoneTarget(sd, from, nb)
		if err != nil {
			pc.step(ctx, nb.Node.Path, sd.Name(), func(context.Context) (action.Outcome, error) {
				return action.Outcome{}, err
			})
			ok = false
			return false
		}
		out, err := pc.apply(ctx, sd, t)
		if err != nil {
			ok = false
			return false
		}
		if err := pc.purge(ctx, sd, nb.Node.Path); err != nil {
			ok = false
		}
		if out.Skipped && out.Reason == action.ReasonNoRows {
			// No batch was written, so there is nothing to scope the
			// entities beyond this one against.
			pc.logger.Debug("no related rows, branch ends", "neighbor", nb.Node.Path)
			return false
		}
		return true
	}, pc.logger)
	pc.logger.Debug("transitive walk finished", "visited", len(visited))

	if !ok {
		return errRelatedFailed
	}
	if _, err := pc.apply(ctx, sd, action.Target{Path: source, Filter: p.FilterExpression, KnownRows: n}); err != nil {
		return err
	}
	return pc.purge(ctx, sd, source)
}

func (pc *policyRun) tombstoneTarget(sd *action.SoftDelete, from string, nb graph.Neighbor) (action.Target, error) {
	b := pc.run.runner.Builder()
	near, far := nb.JoinColumns(from)
	t := action.Target{Path: nb.Node.Path, TombstoneKey: far}

	var err error
	if from == pc.policy.EntityPath {
		t.Filter, err = b.DistinctJoinFilter(far, near, from, pc.policy.FilterExpression)
	} else {
		t.Filter, err = b.TombstoneJoinFilter(far, near, sd.TombstoneTable(from))
		t.FromTombstone = true
	}
	return t, err
}

func (pc *policyRun) purge(ctx context.Context, sd *action.SoftDelete, entity string) error {
	_, err := pc.step(ctx, entity, "purge", func(ctx context.Context) (action.Outcome, error) {
		return sd.Purge(ctx, entity)
	})
	return err
}
