package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"recordkeeper-hq/keeper/pkg/archive"
	"recordkeeper-hq/keeper/pkg/catalog"
	"recordkeeper-hq/keeper/pkg/catalog/file"
	gitcatalog "recordkeeper-hq/keeper/pkg/catalog/git"
	"recordkeeper-hq/keeper/pkg/catalog/storage"
	"recordkeeper-hq/keeper/pkg/config"
	"recordkeeper-hq/keeper/pkg/retention"
	"recordkeeper-hq/keeper/pkg/retention/action"
	"recordkeeper-hq/keeper/pkg/retention/cascade"
	"recordkeeper-hq/keeper/pkg/retention/jobs"
	"recordkeeper-hq/keeper/pkg/retention/jobs/dataproc"
	"recordkeeper-hq/keeper/pkg/secrets"
	"recordkeeper-hq/keeper/pkg/telemetry/logging"
	"recordkeeper-hq/keeper/pkg/telemetry/metrics"
	"recordkeeper-hq/keeper/pkg/telemetry/tracing"
	"recordkeeper-hq/keeper/pkg/warehouse"
	"recordkeeper-hq/keeper/pkg/warehouse/bigquery"
	"recordkeeper-hq/keeper/pkg/warehouse/sqldb"
)

// app holds the collaborators a command needs. Fields are nil when the
// command did not ask for them.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	store     catalog.Store
	fileStore *file.Store
	source    *gitcatalog.Source

	wh         warehouse.Warehouse
	dispatcher *jobs.Dispatcher
	engine     *cascade.Engine
	metrics    *metrics.Collector
	tracer     *tracing.Tracer

	closers []func() error
}

type appOptions struct {
	// engine opens the warehouse and job backends and builds the engine.
	engine bool
	dryRun bool
}

// loadConfig loads the config file, applies flag overrides, installs the
// process logger and resolves secret references.
func loadConfig(ctx context.Context) (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, err
	}
	cfg := config.GetConfig()
	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}
	if _, err := logging.Install(logging.FromConfig(cfg.Telemetry.Logging)); err != nil {
		return nil, retention.NewConfigurationError("telemetry.logging", err.Error())
	}

	resolver, err := secrets.FromConfig(cfg.Secrets)
	if err != nil {
		return nil, err
	}
	if err := resolver.ResolveConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:    cfg,
		logger: slog.Default().With("component", "keeper"),
	}

	if err := a.openCatalog(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if !opts.engine {
		return a, nil
	}

	if err := a.openEngine(ctx, opts.dryRun); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openCatalog(ctx context.Context) error {
	c := a.cfg.Catalog
	switch c.Backend {
	case "sqlite":
		store, err := storage.NewSQLiteStore(&storage.SQLiteConfig{
			Path:        c.SQLite.Path,
			BusyTimeout: c.SQLite.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("open sqlite catalog: %w", err)
		}
		a.store = store
	case "file":
		store, err := file.Open(c.File.Path)
		if err != nil {
			return fmt.Errorf("open catalog file: %w", err)
		}
		a.store, a.fileStore = store, store
	case "git":
		source, err := gitcatalog.NewSource(gitcatalog.Config{
			Repository: c.Git.Repository,
			Branch:     c.Git.Branch,
			Path:       c.Git.Path,
			LocalDir:   c.Git.LocalDir,
			Username:   c.Git.Username,
			Token:      c.Git.Token,
			Timeout:    c.Git.Timeout,
		})
		if err != nil {
			return retention.NewConfigurationError("catalog.git", err.Error())
		}
		store, err := source.Open(ctx)
		if err != nil {
			return fmt.Errorf("open git catalog: %w", err)
		}
		a.store, a.source = store, source
	default:
		return retention.NewConfigurationError("catalog.backend", fmt.Sprintf("unknown catalog backend %q", c.Backend))
	}
	a.closers = append(a.closers, a.store.Close)
	return nil
}

func (a *app) openEngine(ctx context.Context, dryRun bool) error {
	sink, err := a.archiveSink(ctx)
	if err != nil {
		return err
	}
	if err := a.openWarehouse(ctx, sink); err != nil {
		return err
	}
	if err := a.openJobs(ctx, dryRun); err != nil {
		return err
	}

	a.metrics = metrics.NewCollector(&a.cfg.Telemetry.Metrics, nil)
	tracer, err := tracing.New(&a.cfg.Telemetry.Tracing, Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.tracer = tracer
	a.closers = append(a.closers, func() error { return tracer.Shutdown(context.Background()) })

	d := a.cfg.Datasets
	engineOpts := []cascade.Option{
		cascade.WithDryRun(dryRun),
		cascade.WithMetrics(a.metrics),
		cascade.WithTracer(a.tracer),
	}
	if base := a.cfg.Archive.Base(); base != "" {
		settings, err := action.ParseArchiveSettings(base, a.cfg.Archive.FileFormat, a.cfg.Archive.Compression)
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, cascade.WithArchive(settings))
	}
	if a.dispatcher != nil {
		engineOpts = append(engineOpts, cascade.WithObjectStore(a.dispatcher, a.cfg.Archive.LakeBucket, a.cfg.Archive.FileFormat))
	}

	a.engine = cascade.New(a.store, a.wh, action.Datasets{
		Native:    d.NativeDataset,
		Tombstone: d.TombstoneDataset,
		Temp:      d.TempDataset,
		External:  d.ExternalDataset,
	}, engineOpts...)
	return nil
}

// archiveSink routes gs:// exports to Cloud Storage when a bucket is
// configured and everything else to the local filesystem.
func (a *app) archiveSink(ctx context.Context) (archive.Sink, error) {
	sink := archive.MultiSink{Local: archive.LocalSink{}}
	if a.cfg.Archive.Bucket == "" || a.cfg.Archive.LocalRoot != "" {
		return sink, nil
	}
	gcs, err := archive.NewGCSSink(ctx, a.cfg.Archive.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("open archive bucket: %w", err)
	}
	a.closers = append(a.closers, gcs.Close)
	sink.GCS = gcs
	return sink, nil
}

func (a *app) openWarehouse(ctx context.Context, sink archive.Sink) error {
	w := a.cfg.Warehouse
	switch w.Backend {
	case "bigquery":
		wh, err := bigquery.Open(ctx, bigquery.Config{
			Project:         w.BigQuery.Project,
			Location:        w.BigQuery.Location,
			CredentialsFile: w.BigQuery.CredentialsFile,
		})
		if err != nil {
			return err
		}
		a.wh = wh
	case "sql":
		wh, err := sqldb.Open(ctx, sqldb.Config{
			Driver: w.SQL.Driver,
			DSN:    w.SQL.DSN,
			Attach: w.SQL.Attach,
			Sink:   sink,
		})
		if err != nil {
			return err
		}
		a.wh = wh
	default:
		return retention.NewConfigurationError("warehouse.backend", fmt.Sprintf("unknown warehouse backend %q", w.Backend))
	}
	a.closers = append(a.closers, a.wh.Close)
	return nil
}

func (a *app) openJobs(ctx context.Context, dryRun bool) error {
	j := a.cfg.Jobs
	switch j.Backend {
	case "", "none":
		return nil
	case "dataproc":
	default:
		return retention.NewConfigurationError("jobs.backend", fmt.Sprintf("unknown job backend %q", j.Backend))
	}

	backend, err := dataproc.New(ctx, dataproc.Config{
		Project:         j.Project,
		Region:          j.Region,
		Cluster:         j.Cluster,
		CredentialsFile: j.CredentialsFile,
		PollInterval:    j.PollInterval,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, backend.Close)

	properties := jobs.DefaultProperties()
	if j.Packages != "" {
		properties["spark.jars.packages"] = j.Packages
	}
	a.dispatcher = jobs.NewDispatcher(backend, jobs.Template{
		MainFile:   j.DeleteScript,
		Properties: properties,
	}, jobs.WithDryRun(dryRun))
	return nil
}

// flushMetrics exports run metrics to the configured textfile or
// Pushgateway. Failures are logged; they never change a run's outcome.
func (a *app) flushMetrics(ctx context.Context) {
	if err := a.metrics.Flush(ctx); err != nil {
		a.logger.Warn("failed to export metrics", "error", err)
	}
}

// Close releases everything opened by newApp in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
