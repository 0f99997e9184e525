package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"recordkeeper-hq/keeper/pkg/catalog/file"
	gitcatalog "recordkeeper-hq/keeper/pkg/catalog/git"
	"recordkeeper-hq/keeper/pkg/cli"
	"recordkeeper-hq/keeper/pkg/retention"
	"recordkeeper-hq/keeper/pkg/retention/cascade"
	"recordkeeper-hq/keeper/pkg/retention/scheduler"
)

var scheduleFlags struct {
	dryRun      bool
	metricsAddr string
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run retention modes on their cron schedules",
	Long: `Run the scheduled and on-demand modes on the cron expressions of the
schedule section until interrupted. Runs never overlap; a tick that fires
while a run is in progress is skipped. A schedule of "-" disables that mode.

Git catalogs are pulled before every run. File catalogs with watch enabled
are reloaded when the document changes.

Examples:
  # Run with the configured schedules
  keeper schedule

  # Expose Prometheus metrics
  keeper schedule --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().BoolVar(&scheduleFlags.dryRun, "dry-run", false, "log mutating statements and jobs instead of executing them")
	scheduleCmd.Flags().StringVar(&scheduleFlags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

// syncingRunner pulls the git catalog before each run.
type syncingRunner struct {
	source *gitcatalog.Source
	next   scheduler.Runner
}

func (r syncingRunner) Run(ctx context.Context, mode retention.Mode, ids []string) (*cascade.Report, error) {
	if _, err := r.source.Sync(ctx); err != nil {
		return nil, err
	}
	return r.next.Run(ctx, mode, ids)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	a, err := newApp(ctx, appOptions{engine: true, dryRun: scheduleFlags.dryRun})
	if err != nil {
		return err
	}
	defer a.Close()

	var runner scheduler.Runner = a.engine
	if a.source != nil {
		runner = syncingRunner{source: a.source, next: a.engine}
	}

	if a.fileStore != nil && a.cfg.Catalog.File.Watch {
		watcher, err := file.NewWatcher(a.fileStore, 500*time.Millisecond)
		if err != nil {
			return err
		}
		defer watcher.Stop()
		go func() {
			if err := watcher.Watch(ctx, func() { a.logger.Info("catalog reloaded", "path", a.fileStore.Path()) }); err != nil {
				a.logger.Error("catalog watcher stopped", "error", err)
			}
		}()
	}

	if scheduleFlags.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics.Handler())
		srv := &http.Server{Addr: scheduleFlags.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		a.logger.Info("serving metrics", "address", scheduleFlags.metricsAddr)
	}

	s := scheduler.New(runner, a.cfg.Schedule, scheduler.WithReportFunc(
		func(ctx context.Context, _ *cascade.Report, _ error) { a.flushMetrics(ctx) },
	))
	if err := s.Start(ctx); err != nil {
		return retention.NewConfigurationError("schedule", err.Error())
	}
	if !s.IsRunning() {
		return cli.NewUsageError("nothing to schedule: schedule.scheduled and schedule.on_demand are both disabled")
	}
	for _, mode := range []retention.Mode{retention.ModeScheduled, retention.ModeOnDemand} {
		if next := s.NextRun(mode); next != nil {
			a.logger.Info("next run", "mode", mode, "at", next.Format(time.RFC3339))
		}
	}

	<-ctx.Done()
	s.Stop()
	return nil
}
