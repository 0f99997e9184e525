package action

import (
	"context"
	"fmt"
	"log/slog"

	"recordkeeper-hq/keeper/pkg/archive"
	"recordkeeper-hq/keeper/pkg/retention"
	"recordkeeper-hq/keeper/pkg/retention/filter"
	"recordkeeper-hq/keeper/pkg/warehouse"
)

// Outcome reports what an action did to one entity.
type Outcome struct {
	Entity string `json:"entity"`
	Action string `json:"action"`

	// Rows is the number of rows affected, or -1 when the warehouse does
	// not report it.
	Rows    int64  `json:"rows"`
	Skipped bool   `json:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func skipped(entity, action, reason string) Outcome {
	return Outcome{Entity: entity, Action: action, Skipped: true, Reason: reason}
}

// Reason strings for skipped outcomes.
const (
	ReasonNoRows        = "no matching rows"
	ReasonDryRun        = "dry run"
	ReasonNoTombstone   = "no tombstone table"
	ReasonJobSkipped    = "job skipped"
	ReasonNoRelatedRows = "no related ids"
)

// Target is one entity and the predicate selecting its rows.
type Target struct {
	// Path is the qualified entity path, dataset.table.
	Path string

	// Filter selects the rows to act on.
	Filter string

	// KnownRows is a candidate count the caller already established. When
	// positive, the backend does not count again.
	KnownRows int64

	// TombstoneKey is the column that re-identifies this entity's rows in
	// today's tombstone batch. When empty, the soft-delete removes rows by
	// Filter.
	TombstoneKey string

	// FromTombstone marks filters that read an ancestor's tombstone batch.
	FromTombstone bool
}

// Name is the unqualified entity name.
func (t Target) Name() string {
	return retention.EntityName(t.Path)
}

// Backend applies one action to a target.
type Backend interface {
	Name() string
	Apply(ctx context.Context, t Target) (Outcome, error)
}

// Datasets names the warehouse datasets actions write to.
type Datasets struct {
	Native    string
	Tombstone string
	Temp      string
	External  string
}

// Validate checks the datasets the given action needs.
func (d Datasets) Validate(a retention.Action, kind retention.Kind, storage retention.StorageSystem) error {
	missing := func(name string) error {
		return retention.NewConfigurationError("datasets."+name, name+" is required")
	}
	switch {
	case storage == retention.StorageGCS:
		if d.Native == "" {
			return missing("native_dataset")
		}
		if d.External == "" {
			return missing("external_dataset")
		}
	case kind == retention.KindOnDemand:
		if d.Tombstone == "" {
			return missing("tombstone_dataset")
		}
	case a == retention.ActionArchive:
		if d.Temp == "" {
			return missing("temp_dataset")
		}
		if d.External == "" {
			return missing("external_dataset")
		}
	}
	return nil
}

// Runner executes statements for the backends.
type Runner struct {
	wh      warehouse.Warehouse
	builder *filter.Builder
	dryRun  bool
	logger  *slog.Logger
}

// NewRunner creates a runner. The builder's dialect must match wh.
func NewRunner(wh warehouse.Warehouse, builder *filter.Builder, dryRun bool) *Runner {
	return &Runner{
		wh:      wh,
		builder: builder,
		dryRun:  dryRun,
		logger:  slog.Default().With("component", "retention.action"),
	}
}

// Warehouse returns the underlying warehouse.
func (r *Runner) Warehouse() warehouse.Warehouse { return r.wh }

// Builder returns the predicate builder.
func (r *Runner) Builder() *filter.Builder { return r.builder }

// DryRun reports whether mutations are only logged.
func (r *Runner) DryRun() bool { return r.dryRun }

// Exec runs a mutating statement against entity.
func (r *Runner) Exec(ctx context.Context, entity, stmt string) (int64, error) {
	if r.dryRun {
		r.logger.Info("dry run: statement not executed", "entity", entity, "statement", stmt)
		return 0, nil
	}
	r.logger.Debug("executing statement", "entity", entity, "statement", stmt)
	n, err := r.wh.Exec(ctx, stmt)
	if err != nil {
		return 0, retention.NewQueryExecutionError(entity, stmt, err)
	}
	return n, nil
}

// Query runs a read-only statement. It executes in dry-run mode too.
func (r *Runner) Query(ctx context.Context, entity, stmt string) (*warehouse.Result, error) {
	r.logger.Debug("executing query", "entity", entity, "statement", stmt)
	res, err := r.wh.Query(ctx, stmt)
	if err != nil {
		return nil, retention.NewQueryExecutionError(entity, stmt, err)
	}
	return res, nil
}

// Count counts rows of table matching predicate.
func (r *Runner) Count(ctx context.Context, table, predicate string) (int64, error) {
	stmt := "select count(*) as count from " + table
	if predicate != "" {
		stmt += " where " + predicate
	}
	r.logger.Debug("counting candidate rows", "entity", table, "statement", stmt)
	n, err := warehouse.Count(ctx, r.wh, table, predicate)
	if err != nil {
		return 0, retention.NewQueryExecutionError(table, stmt, err)
	}
	return n, nil
}

// TableExists reports whether table exists.
func (r *Runner) TableExists(ctx context.Context, table string) (bool, error) {
	ok, err := r.wh.TableExists(ctx, table)
	if err != nil {
		return false, retention.NewQueryExecutionError(table, "table exists", err)
	}
	return ok, nil
}

// ColumnType resolves the declared type of a timestamp column.
func (r *Runner) ColumnType(ctx context.Context, table, column string) (filter.ColumnType, error) {
	name, err := r.wh.ColumnType(ctx, table, column)
	if err != nil {
		return "", retention.NewQueryExecutionError(table, "column type "+column, err)
	}
	ct, err := filter.ParseColumnType(name)
	if err != nil {
		return "", fmt.Errorf("%s.%s: %w", table, column, err)
	}
	return ct, nil
}

// candidates returns the number of rows t selects, honoring KnownRows.
func (r *Runner) candidates(ctx context.Context, t Target) (int64, error) {
	if t.KnownRows > 0 {
		return t.KnownRows, nil
	}
	return r.Count(ctx, t.Path, t.Filter)
}

// ArchiveSettings locate archive output.
type ArchiveSettings struct {
	Layout      archive.Layout
	Format      archive.Format
	Compression archive.Compression
}
