package action

import (
	"context"
	"fmt"
	"log/slog"

	"recordkeeper-hq/keeper/pkg/retention"
	"recordkeeper-hq/keeper/pkg/retention/filter"
	"recordkeeper-hq/keeper/pkg/retention/graph"
	"recordkeeper-hq/keeper/pkg/retention/jobs"
)

// ObjectDelete deletes rows from object-store entities with external jobs.
//
// The jobs cannot evaluate correlated subqueries, so related entities are
// scoped with literal id lists read from the external table over the
// source's archive files.
type ObjectDelete struct {
	runner     *Runner
	dispatcher *jobs.Dispatcher
	datasets   Datasets
	bucket     string
	format     string
	logger     *slog.Logger
}

// NewObjectDelete creates the object-store delete backend. Related entities
// are addressed as folders of bucket; format is the archive file format.
func NewObjectDelete(r *Runner, d *jobs.Dispatcher, datasets Datasets, bucket, format string) *ObjectDelete {
	return &ObjectDelete{
		runner:     r,
		dispatcher: d,
		datasets:   datasets,
		bucket:     bucket,
		format:     format,
		logger:     slog.Default().With("component", "retention.action.object"),
	}
}

// ObjectSource is a scheduled object-store policy resolved against the
// warehouse.
type ObjectSource struct {
	Policy *retention.Policy

	// Table is the policy's entity mapped to its warehouse path; the
	// relationship graph is keyed by warehouse paths.
	Table string

	// External is the external table over the entity's archive files.
	External string

	// Predicate selects expired rows of External.
	Predicate string

	// Window carries the same cutoff as a literal for the job.
	Window jobs.Window
}

// Resolve maps the policy's entity into the warehouse and computes its
// retention window.
func (o *ObjectDelete) Resolve(ctx context.Context, p *retention.Policy) (*ObjectSource, error) {
	table := retention.ObjectToTable(p.EntityPath, o.datasets.Native)
	ct, err := o.runner.ColumnType(ctx, table, p.TimestampColumn)
	if err != nil {
		return nil, err
	}
	b := o.runner.Builder()
	window, err := b.RetentionPredicate(p.TimestampColumn, ct, p.Retention)
	if err != nil {
		return nil, err
	}
	src := &ObjectSource{
		Policy:    p,
		Table:     table,
		External:  retention.Qualify(o.datasets.External, p.Name()),
		Predicate: filter.BaseFilter(window, p.FilterExpression),
		Window:    jobs.Window{Column: p.TimestampColumn, Value: b.CutoffValue(ct, p.Retention)},
	}
	o.logger.Debug("object source resolved", "entity", p.EntityPath, "table", table, "ts_value", src.Window.Value)
	return src, nil
}

// Count returns the number of expired rows of the source.
func (o *ObjectDelete) Count(ctx context.Context, src *ObjectSource) (int64, error) {
	return o.runner.Count(ctx, src.External, src.Predicate)
}

// Related deletes the rows of neighbor that reference expired source rows.
func (o *ObjectDelete) Related(ctx context.Context, src *ObjectSource, nb graph.Neighbor) (Outcome, error) {
	sourceCol, neighborCol := nb.JoinColumns(src.Table)
	if err := filter.ValidateIdentifier(nb.Node.Path, sourceCol); err != nil {
		return Outcome{}, err
	}

	stmt := fmt.Sprintf("select distinct %s as id from %s", sourceCol, src.External)
	if src.Predicate != "" {
		stmt += " where " + src.Predicate
	}
	res, err := o.runner.Query(ctx, src.External, stmt)
	if err != nil {
		return Outcome{}, err
	}
	ids := res.Column(0)

	folder := retention.TableToObject(nb.Node.Path, o.bucket)
	if len(ids) == 0 {
		o.logger.Info("no related ids, skipping job", "entity", folder)
		return skipped(folder, "job", ReasonNoRelatedRows), nil
	}
	expr, err := filter.IDListFilter(neighborCol, ids)
	if err != nil {
		return Outcome{}, err
	}
	return o.dispatch(ctx, jobs.Spec{EntityPath: folder, FileFormat: o.format, FilterExpression: expr}, int64(len(ids)))
}

// Source deletes the expired rows of the source entity itself.
func (o *ObjectDelete) Source(ctx context.Context, src *ObjectSource, rows int64) (Outcome, error) {
	window := src.Window
	return o.dispatch(ctx, jobs.Spec{
		EntityPath:       src.Policy.EntityPath,
		FileFormat:       o.format,
		Window:           &window,
		FilterExpression: src.Policy.FilterExpression,
	}, rows)
}

func (o *ObjectDelete) dispatch(ctx context.Context, spec jobs.Spec, rows int64) (Outcome, error) {
	res, err := o.dispatcher.Run(ctx, spec)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Entity: spec.EntityPath, Action: "job", Rows: rows, Skipped: res.Skipped, Reason: res.Reason}
	if res.Skipped && out.Reason == "" {
		out.Reason = ReasonJobSkipped
	}
	return out, nil
}
