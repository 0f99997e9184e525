// Package scheduler runs retention modes on cron schedules.
//
// Each mode has its own cron expression. Runs never overlap: a tick that
// fires while any run is still in progress is skipped and logged.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"recordkeeper-hq/keeper/pkg/config"
	"recordkeeper-hq/keeper/pkg/retention"
	"recordkeeper-hq/keeper/pkg/retention/cascade"
)

// Disabled is the schedule value that turns a mode off.
const Disabled = "-"

// Runner executes one retention run.
type Runner interface {
	Run(ctx context.Context, mode retention.Mode, ids []string) (*cascade.Report, error)
}

// ReportFunc receives every finished run.
type ReportFunc func(ctx context.Context, report *cascade.Report, err error)

// Scheduler triggers runs of the scheduled and on-demand modes.
type Scheduler struct {
	runner    Runner
	schedules map[retention.Mode]string
	onReport  ReportFunc

	cron    *cron.Cron
	entries map[retention.Mode]cron.EntryID
	mu      sync.Mutex
	running bool

	// runMu serializes runs across modes.
	runMu sync.Mutex

	logger *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithReportFunc registers a callback for finished runs.
func WithReportFunc(fn ReportFunc) Option {
	return func(s *Scheduler) { s.onReport = fn }
}

// New creates a scheduler for the modes configured in cfg.
func New(runner Runner, cfg config.ScheduleConfig, opts ...Option) *Scheduler {
	logger := slog.Default().With("component", "retention.scheduler")
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		runner: runner,
		schedules: map[retention.Mode]string{
			retention.ModeScheduled: cfg.Scheduled,
			retention.ModeOnDemand:  cfg.OnDemand,
		},
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		entries: make(map[retention.Mode]cron.EntryID),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the enabled modes and starts the cron scheduler. It stops
// when ctx is cancelled. With no enabled mode Start does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, mode := range []retention.Mode{retention.ModeScheduled, retention.ModeOnDemand} {
		spec := s.schedules[mode]
		if spec == "" || spec == Disabled {
			s.logger.Info("mode not scheduled", "mode", mode)
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid cron schedule %q for %s: %w", spec, mode, err)
		}
		mode := mode
		id, err := s.cron.AddFunc(spec, func() { s.runMode(ctx, mode) })
		if err != nil {
			return fmt.Errorf("failed to schedule %s runs: %w", mode, err)
		}
		s.entries[mode] = id
	}

	if len(s.entries) == 0 {
		s.logger.Info("no retention mode scheduled, scheduler idle")
		return nil
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("retention scheduler started",
		"scheduled", s.schedules[retention.ModeScheduled],
		"on_demand", s.schedules[retention.ModeOnDemand],
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// runMode performs one run unless another run is in progress.
func (s *Scheduler) runMode(ctx context.Context, mode retention.Mode) {
	if !s.runMu.TryLock() {
		s.logger.Warn("previous run still in progress, skipping", "mode", mode)
		return
	}
	defer s.runMu.Unlock()

	s.logger.Info("starting scheduled retention run", "mode", mode)
	report, err := s.runner.Run(ctx, mode, nil)
	if err != nil {
		s.logger.Error("scheduled retention run failed", "mode", mode, "error", err)
	} else {
		s.logger.Info("scheduled retention run completed", "mode", mode, "run_id", report.RunID, "status", report.Status())
	}
	if s.onReport != nil {
		s.onReport(ctx, report, err)
	}
}

// Stop stops the scheduler and waits for a running job to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("retention scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next run time of mode, or nil if it is not scheduled.
func (s *Scheduler) NextRun(mode retention.Mode) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[mode]
	if !ok {
		return nil
	}
	next := s.cron.Entry(id).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
