package action

import (
	"context"
	"log/slog"
)

// HardDelete removes matching rows from the active table.
type HardDelete struct {
	runner *Runner
	logger *slog.Logger
}

// NewHardDelete creates the hard-delete backend.
func NewHardDelete(r *Runner) *HardDelete {
	return &HardDelete{
		runner: r,
		logger: slog.Default().With("component", "retention.action.delete"),
	}
}

// Name implements Backend.
func (d *HardDelete) Name() string { return "delete" }

// Apply issues one delete statement. It does not count first: the statement
// itself is the cheapest way to learn how many rows matched.
func (d *HardDelete) Apply(ctx context.Context, t Target) (Outcome, error) {
	stmt := "delete from " + t.Path
	if t.Filter != "" {
		stmt += " where " + t.Filter
	}
	n, err := d.runner.Exec(ctx, t.Path, stmt)
	if err != nil {
		return Outcome{}, err
	}
	if d.runner.DryRun() {
		return Outcome{Entity: t.Path, Action: d.Name(), Rows: t.KnownRows, Skipped: true, Reason: ReasonDryRun}, nil
	}
	d.logger.Info("rows deleted", "entity", t.Path, "rows", n)
	return Outcome{Entity: t.Path, Action: d.Name(), Rows: n}, nil
}

var _ Backend = (*HardDelete)(nil)
