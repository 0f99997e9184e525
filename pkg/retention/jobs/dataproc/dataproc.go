// Package dataproc submits retention jobs as PySpark jobs on a Dataproc
// cluster.
package dataproc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	dataproc "cloud.google.com/go/dataproc/v2/apiv1"
	"cloud.google.com/go/dataproc/v2/apiv1/dataprocpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"recordkeeper-hq/keeper/pkg/retention"
	"recordkeeper-hq/keeper/pkg/retention/jobs"
)

// Config locates the cluster jobs run on.
type Config struct {
	Project         string
	Region          string
	Cluster         string
	CredentialsFile string

	// PollInterval is how often Await polls the job operation. Zero uses the
	// client library's backoff.
	PollInterval time.Duration
}

// Endpoint returns the regional API endpoint.
func (c Config) Endpoint() string {
	return fmt.Sprintf("%s-dataproc.googleapis.com:443", c.Region)
}

// Validate checks that the cluster is fully addressed.
func (c Config) Validate() error {
	switch {
	case c.Project == "":
		return retention.NewConfigurationError("jobs.dataproc.project", "project is required")
	case c.Region == "":
		return retention.NewConfigurationError("jobs.dataproc.region", "region is required")
	case c.Cluster == "":
		return retention.NewConfigurationError("jobs.dataproc.cluster", "cluster is required")
	}
	return nil
}

// Backend implements jobs.Backend on the Dataproc job controller.
type Backend struct {
	cfg    Config
	client *dataproc.JobControllerClient
	logger *slog.Logger
}

// New connects to the regional job controller.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := []option.ClientOption{option.WithEndpoint(cfg.Endpoint())}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := dataproc.NewJobControllerClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create dataproc job client: %w", err)
	}
	return &Backend{
		cfg:    cfg,
		client: client,
		logger: slog.Default().With("component", "jobs.dataproc", "cluster", cfg.Cluster),
	}, nil
}

// Close releases the client connection.
func (b *Backend) Close() error {
	return b.client.Close()
}

type handle struct {
	name string
	op   *dataproc.SubmitJobAsOperationOperation
}

func (h *handle) ID() string { return h.op.Name() }

// Submit starts a PySpark job for payload.
func (b *Backend) Submit(ctx context.Context, name string, p jobs.Payload) (jobs.Handle, error) {
	op, err := b.client.SubmitJobAsOperation(ctx, b.request(p))
	if err != nil {
		return nil, classify(name, err)
	}
	b.logger.Debug("job operation started", "job", name, "operation", op.Name())
	return &handle{name: name, op: op}, nil
}

// Await waits for the job operation and checks the final job state.
func (b *Backend) Await(ctx context.Context, h jobs.Handle) error {
	hh, ok := h.(*handle)
	if !ok {
		return fmt.Errorf("dataproc: foreign job handle %T", h)
	}
	if b.cfg.PollInterval <= 0 {
		job, err := hh.op.Wait(ctx)
		if err != nil {
			return classify(hh.name, err)
		}
		return checkJob(hh.name, job)
	}

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()
	for {
		job, err := hh.op.Poll(ctx)
		if err != nil {
			return classify(hh.name, err)
		}
		if hh.op.Done() {
			return checkJob(hh.name, job)
		}
		b.logger.Debug("job still running", "job", hh.name, "state", job.GetStatus().GetState().String())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (b *Backend) request(p jobs.Payload) *dataprocpb.SubmitJobRequest {
	return &dataprocpb.SubmitJobRequest{
		ProjectId: b.cfg.Project,
		Region:    b.cfg.Region,
		Job:       newJob(b.cfg.Cluster, p),
	}
}

func newJob(cluster string, p jobs.Payload) *dataprocpb.Job {
	return &dataprocpb.Job{
		Placement: &dataprocpb.JobPlacement{ClusterName: cluster},
		TypeJob: &dataprocpb.Job_PysparkJob{
			PysparkJob: &dataprocpb.PySparkJob{
				MainPythonFileUri: p.MainFile,
				Args:              p.Args,
				Properties:        p.Properties,
			},
		},
	}
}

func classify(name string, err error) error {
	if status.Code(err) == codes.FailedPrecondition {
		return retention.NewJobPreconditionError(name, err)
	}
	return fmt.Errorf("dataproc job %s: %w", name, err)
}

func checkJob(name string, job *dataprocpb.Job) error {
	st := job.GetStatus()
	switch st.GetState() {
	case dataprocpb.JobStatus_ERROR, dataprocpb.JobStatus_CANCELLED:
		return fmt.Errorf("dataproc job %s (%s) ended in state %s: %s",
			name, job.GetReference().GetJobId(), st.GetState(), st.GetDetails())
	}
	return nil
}
