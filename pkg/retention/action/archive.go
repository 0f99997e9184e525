package action

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"recordkeeper-hq/keeper/pkg/archive"
	"recordkeeper-hq/keeper/pkg/retention"
	"recordkeeper-hq/keeper/pkg/warehouse"
)

// Archive copies matching rows to archive storage and exposes them through
// an external table. It does not delete; callers finish an archive policy
// with HardDelete.
type Archive struct {
	runner   *Runner
	datasets Datasets
	settings ArchiveSettings
	now      func() time.Time
	logger   *slog.Logger
}

// NewArchive creates the archive backend.
func NewArchive(r *Runner, d Datasets, s ArchiveSettings) *Archive {
	return &Archive{
		runner:   r,
		datasets: d,
		settings: s,
		now:      r.Builder().Now,
		logger:   slog.Default().With("component", "retention.action.archive"),
	}
}

// Name implements Backend.
func (a *Archive) Name() string { return "archive" }

// Apply stages the target's rows in a temporary table, exports it, drops it,
// and makes sure the external table over the entity's archive files exists.
func (a *Archive) Apply(ctx context.Context, t Target) (Outcome, error) {
	name := t.Name()
	n, err := a.runner.candidates(ctx, t)
	if err != nil {
		return Outcome{}, err
	}
	if n == 0 {
		a.logger.Info("nothing to archive", "entity", t.Path)
		return skipped(t.Path, a.Name(), ReasonNoRows), nil
	}

	temp := retention.Qualify(a.datasets.Temp, name)
	uri := a.settings.Layout.ObjectURI(name, a.now(), a.settings.Format)
	external := retention.Qualify(a.datasets.External, name)
	glob := a.settings.Layout.GlobURI(name, a.settings.Format)

	if a.runner.DryRun() {
		a.logger.Info("dry run: archive not written", "entity", t.Path, "rows", n,
			"temp_table", temp, "uri", uri, "external_table", external)
		return Outcome{Entity: t.Path, Action: a.Name(), Rows: n, Skipped: true, Reason: ReasonDryRun}, nil
	}

	wh := a.runner.Warehouse()
	if err := wh.DropTable(ctx, temp); err != nil {
		return Outcome{}, retention.NewQueryExecutionError(temp, "drop table", err)
	}
	stmt := fmt.Sprintf("create table %s as select * from %s", temp, t.Path)
	if t.Filter != "" {
		stmt += " where " + t.Filter
	}
	if _, err := a.runner.Exec(ctx, t.Path, stmt); err != nil {
		return Outcome{}, err
	}

	target := warehouse.ExportTarget{URI: uri, Format: a.settings.Format, Compression: a.settings.Compression}
	exportErr := wh.Export(ctx, temp, target)
	if err := wh.DropTable(ctx, temp); err != nil {
		a.logger.Warn("failed to drop temp table", "table", temp, "error", err)
	}
	if exportErr != nil {
		return Outcome{}, retention.NewQueryExecutionError(t.Path, "export "+temp+" to "+uri, exportErr)
	}
	a.logger.Info("archive exported", "entity", t.Path, "uri", uri, "rows", n)

	if err := wh.CreateExternalTable(ctx, external, a.settings.Format, []string{glob}); err != nil {
		return Outcome{}, retention.NewQueryExecutionError(external, "create external table", err)
	}
	return Outcome{Entity: t.Path, Action: a.Name(), Rows: n}, nil
}

var _ Backend = (*Archive)(nil)

// ParseArchiveSettings validates the archive settings from configuration.
func ParseArchiveSettings(base, format, compression string) (ArchiveSettings, error) {
	if base == "" {
		return ArchiveSettings{}, retention.NewConfigurationError("archive.bucket", "archive bucket or local root is required")
	}
	f, err := archive.ParseFormat(format)
	if err != nil {
		return ArchiveSettings{}, retention.NewConfigurationError("archive.file_format", err.Error())
	}
	c, err := archive.ParseCompression(compression)
	if err != nil {
		return ArchiveSettings{}, retention.NewConfigurationError("archive.compression", err.Error())
	}
	return ArchiveSettings{Layout: archive.Layout{Base: base}, Format: f, Compression: c}, nil
}
