package cascade

import (
	"context"

	"recordkeeper-hq/keeper/pkg/retention/action"
)

// objectDelete deletes the expired rows of a scheduled object-store policy.
// Each in-scope neighbor gets a job scoped by the literal ids of the
// expired source rows, read from the external table over the source's
// files; the source job then applies the retention window itself.
func (pc *policyRun) objectDelete(ctx context.Context) error {
	e := pc.engine
	od := action.NewObjectDelete(pc.run.runner, e.dispatcher, e.datasets, e.lakeBucket, e.fileFormat)

	src, err := od.Resolve(ctx, pc.policy)
	if err != nil {
		return err
	}
	var n int64
	_, err = pc.step(ctx, src.External, "count", func(ctx context.Context) (action.Outcome, error) {
		var err error
		n, err = od.Count(ctx, src)
		return action.Outcome{Rows: n}, err
	})
	if err != nil {
		return err
	}
	if n == 0 {
		pc.skip(src.External)
		return nil
	}

	ok := true
	for _, nb := range SingleHop(pc.run.graph, pc.policy, src.Table, pc.logger) {
		nb := nb
		if _, err := pc.step(ctx, nb.Node.Path, "job", func(ctx context.Context) (action.Outcome, error) {
			return od.Related(ctx, src, nb)
		}); err != nil {
			ok = false
		}
	}
	if !ok {
		return errRelatedFailed
	}

	_, err = pc.step(ctx, pc.policy.EntityPath, "job", func(ctx context.Context) (action.Outcome, error) {
		return od.Source(ctx, src, n)
	})
	return err
}
