// Package jobs dispatches out-of-band bulk jobs for storage backends that
// cannot delete in place, such as file-backed tables in object storage.
//
// A Spec names the target and selection with explicit optional fields; a
// Template resolves it into the Payload a Backend submits. The Dispatcher
// blocks until the job finishes and turns precondition rejections into
// skipped results.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"recordkeeper-hq/keeper/pkg/retention"
)

// Window selects rows whose column is older than a literal value.
type Window struct {
	Column string
	Value  string
}

// Spec describes one bulk delete job. At least one of Window and
// FilterExpression must be set.
type Spec struct {
	// EntityPath is the object-store folder, "bucket/name".
	EntityPath string

	// FileFormat is the archive format of the folder's files.
	FileFormat string

	// Window restricts the delete to rows older than a cutoff.
	Window *Window

	// FilterExpression is an additional SQL predicate, for example a
	// literal id list.
	FilterExpression string
}

// Name is a short job label for logs.
func (s Spec) Name() string {
	return "delete-" + retention.EntityName(s.EntityPath)
}

// Payload is a resolved job.
type Payload struct {
	MainFile   string
	Args       []string
	Properties map[string]string
}

// Template holds the job settings shared by every Spec.
type Template struct {
	// MainFile is the URI of the delete script.
	MainFile string

	// Properties are passed to the job runtime.
	Properties map[string]string
}

// DefaultProperties load the Delta Lake runtime the delete script needs.
func DefaultProperties() map[string]string {
	return map[string]string{"spark.jars.packages": "io.delta:delta-core_2.12:1.0.0"}
}

// Resolve builds the payload for spec.
func (t Template) Resolve(spec Spec) (Payload, error) {
	if t.MainFile == "" {
		return Payload{}, retention.NewConfigurationError("jobs.delete_script", "delete script is required")
	}
	if spec.EntityPath == "" || spec.FileFormat == "" {
		return Payload{}, fmt.Errorf("job spec needs an entity path and file format")
	}
	if spec.Window == nil && strings.TrimSpace(spec.FilterExpression) == "" {
		return Payload{}, fmt.Errorf("job spec for %s selects no rows: set a window or a filter expression", spec.EntityPath)
	}

	args := []string{
		"--entity_path=" + spec.EntityPath,
		"--file_format=" + strings.ToLower(spec.FileFormat),
	}
	if w := spec.Window; w != nil {
		if w.Column == "" || w.Value == "" {
			return Payload{}, fmt.Errorf("job window for %s needs both a column and a value", spec.EntityPath)
		}
		args = append(args, "--ts_column="+w.Column, "--ts_value="+w.Value)
	}
	if f := strings.TrimSpace(spec.FilterExpression); f != "" {
		args = append(args, "--sql_filter_exp="+f)
	}

	props := make(map[string]string, len(t.Properties))
	for k, v := range t.Properties {
		props[k] = v
	}
	return Payload{MainFile: t.MainFile, Args: args, Properties: props}, nil
}

// Handle identifies a submitted job.
type Handle interface {
	ID() string
}

// Backend submits payloads and waits for them.
type Backend interface {
	Submit(ctx context.Context, name string, p Payload) (Handle, error)

	// Await blocks until the job reaches a terminal state. A job rejected
	// for a failed precondition yields a *retention.JobPreconditionError.
	Await(ctx context.Context, h Handle) error
}

// Result is the outcome of one dispatched job.
type Result struct {
	JobID   string
	Skipped bool
	Reason  string
}

// Dispatcher runs specs on a backend one at a time.
type Dispatcher struct {
	backend  Backend
	template Template
	dryRun   bool
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithDryRun logs payloads instead of submitting them.
func WithDryRun(enabled bool) Option {
	return func(d *Dispatcher) { d.dryRun = enabled }
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(backend Backend, template Template, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		backend:  backend,
		template: template,
		logger:   slog.Default().With("component", "retention.jobs"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run submits spec and waits for it. Precondition failures are logged and
// reported as a skipped Result with a nil error.
func (d *Dispatcher) Run(ctx context.Context, spec Spec) (Result, error) {
	payload, err := d.template.Resolve(spec)
	if err != nil {
		return Result{}, err
	}

	logger := d.logger.With("job", spec.Name(), "entity", spec.EntityPath)
	if d.dryRun {
		logger.Info("dry run: job not submitted", "args", payload.Args, "properties", sortedKeys(payload.Properties))
		return Result{Skipped: true, Reason: "dry run"}, nil
	}
	if d.backend == nil {
		return Result{}, retention.NewConfigurationError("jobs.backend", "no job backend configured")
	}

	handle, err := d.backend.Submit(ctx, spec.Name(), payload)
	if err != nil {
		return d.handleError(logger, "", err)
	}
	logger.Info("job submitted", "job_id", handle.ID(), "args", payload.Args)

	if err := d.backend.Await(ctx, handle); err != nil {
		return d.handleError(logger, handle.ID(), err)
	}
	logger.Info("job finished", "job_id", handle.ID())
	return Result{JobID: handle.ID()}, nil
}

func (d *Dispatcher) handleError(logger *slog.Logger, id string, err error) (Result, error) {
	if retention.IsJobPrecondition(err) {
		logger.Warn("job skipped: precondition failed", "job_id", id, "error", err)
		return Result{JobID: id, Skipped: true, Reason: err.Error()}, nil
	}
	return Result{JobID: id}, err
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
