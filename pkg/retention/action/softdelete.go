package action

import (
	"context"
	"fmt"
	"log/slog"

	"recordkeeper-hq/keeper/pkg/retention"
	"recordkeeper-hq/keeper/pkg/retention/filter"
)

// SoftDelete moves matching rows into the entity's tombstone table, where
// they wait for Purge.
//
// Rows move Active -> Tombstoned -> Purged. A tombstone row is the original
// row followed by softdelete_date (the run's day) and purge_date (that day
// plus the policy's soft-delete period).
type SoftDelete struct {
	runner    *Runner
	tombstone string
	period    retention.Period
	logger    *slog.Logger
}

// NewSoftDelete creates the soft-delete backend for one policy's period.
func NewSoftDelete(r *Runner, tombstoneDataset string, period retention.Period) *SoftDelete {
	return &SoftDelete{
		runner:    r,
		tombstone: tombstoneDataset,
		period:    period,
		logger:    slog.Default().With("component", "retention.action.softdelete"),
	}
}

// Name implements Backend.
func (s *SoftDelete) Name() string { return "softdelete" }

// TombstoneTable is the tombstone table of entity.
func (s *SoftDelete) TombstoneTable(entity string) string {
	return retention.Qualify(s.tombstone, retention.EntityName(entity))
}

// Apply tombstones the target's rows and removes them from the active table.
// Nothing is written when no rows match.
func (s *SoftDelete) Apply(ctx context.Context, t Target) (Outcome, error) {
	b := s.runner.Builder()
	logger := s.logger.With("entity", t.Path)

	var n int64
	if s.runner.DryRun() && t.FromTombstone {
		// Today's tombstone batch was not written, so the count would read
		// stale data. Assume the step proceeds.
		logger.Info("dry run: candidate count depends on tombstone batch, assuming rows match")
		n = -1
	} else {
		var err error
		if n, err = s.runner.candidates(ctx, t); err != nil {
			return Outcome{}, err
		}
		if n == 0 {
			logger.Info("nothing to soft-delete")
			return skipped(t.Path, s.Name(), ReasonNoRows), nil
		}
	}

	table := s.TombstoneTable(t.Path)
	exists, err := s.runner.TableExists(ctx, table)
	if err != nil {
		return Outcome{}, err
	}

	where := ""
	if t.Filter != "" {
		where = " where " + t.Filter
	}
	today, purge := b.SoftDeleteDate(), b.PurgeDateLiteral(s.period)
	var copyStmt string
	if exists {
		copyStmt = fmt.Sprintf("insert into %s select *, %s, %s from %s%s", table, today, purge, t.Path, where)
	} else {
		copyStmt = fmt.Sprintf("create table %s as select *, %s as %s, %s as %s from %s%s",
			table, today, filter.SoftDeleteDateColumn, purge, filter.PurgeDateColumn, t.Path, where)
	}
	if _, err := s.runner.Exec(ctx, t.Path, copyStmt); err != nil {
		return Outcome{}, err
	}

	var deleteStmt string
	if t.TombstoneKey != "" {
		if err := filter.ValidateIdentifier(t.Path, t.TombstoneKey); err != nil {
			return Outcome{}, err
		}
		deleteStmt = fmt.Sprintf("delete from %s where %s in (select %s from %s where %s)",
			t.Path, t.TombstoneKey, t.TombstoneKey, table, b.SoftDeletedToday())
	} else {
		deleteStmt = "delete from " + t.Path + where
	}
	deleted, err := s.runner.Exec(ctx, t.Path, deleteStmt)
	if err != nil {
		return Outcome{}, err
	}

	if s.runner.DryRun() {
		return Outcome{Entity: t.Path, Action: s.Name(), Rows: n, Skipped: true, Reason: ReasonDryRun}, nil
	}
	if deleted < 0 {
		deleted = n
	}
	logger.Info("rows soft-deleted", "tombstone_table", table, "rows", deleted, "purge_date", purge)
	return Outcome{Entity: t.Path, Action: s.Name(), Rows: deleted}, nil
}

// Purge permanently removes tombstoned rows of entity whose purge date has
// arrived. It is a no-op when the entity has no tombstone table, and running
// it again without newly eligible rows changes nothing.
func (s *SoftDelete) Purge(ctx context.Context, entity string) (Outcome, error) {
	table := s.TombstoneTable(entity)
	exists, err := s.runner.TableExists(ctx, table)
	if err != nil {
		return Outcome{}, err
	}
	if !exists {
		return skipped(entity, "purge", ReasonNoTombstone), nil
	}

	stmt := fmt.Sprintf("delete from %s where %s", table, s.runner.Builder().PurgeDue())
	n, err := s.runner.Exec(ctx, table, stmt)
	if err != nil {
		return Outcome{}, err
	}
	if s.runner.DryRun() {
		return skipped(entity, "purge", ReasonDryRun), nil
	}
	s.logger.Info("tombstone purged", "entity", entity, "tombstone_table", table, "rows", n)
	return Outcome{Entity: entity, Action: "purge", Rows: n}, nil
}

var _ Backend = (*SoftDelete)(nil)
