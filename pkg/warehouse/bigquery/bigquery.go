// Package bigquery implements warehouse.Warehouse on Google BigQuery.
// Exports use extract jobs to Cloud Storage and external tables are native
// BigQuery external tables.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	bq "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"recordkeeper-hq/keeper/pkg/archive"
	"recordkeeper-hq/keeper/pkg/retention"
	"recordkeeper-hq/keeper/pkg/retention/filter"
	"recordkeeper-hq/keeper/pkg/warehouse"
)

// Config configures the BigQuery client.
type Config struct {
	Project         string
	Location        string
	CredentialsFile string
}

// Warehouse is a BigQuery-backed warehouse.
type Warehouse struct {
	client  *bq.Client
	project string
	logger  *slog.Logger
}

// Open creates a BigQuery client for cfg.Project.
func Open(ctx context.Context, cfg Config) (*Warehouse, error) {
	if cfg.Project == "" {
		return nil, retention.NewConfigurationError("warehouse.bigquery.project", "project is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := bq.NewClient(ctx, cfg.Project, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}

	return &Warehouse{
		client:  client,
		project: cfg.Project,
		logger:  slog.Default().With("component", "warehouse.bigquery"),
	}, nil
}

// Dialect implements warehouse.Warehouse.
func (w *Warehouse) Dialect() filter.Dialect {
	return filter.BigQuery{}
}

func (w *Warehouse) run(ctx context.Context, stmt string) (*bq.Job, *bq.JobStatus, error) {
	job, err := w.client.Query(stmt).Run(ctx)
	if err != nil {
		return nil, nil, err
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := status.Err(); err != nil {
		return nil, nil, err
	}
	return job, status, nil
}

// Exec implements warehouse.Executor. The affected row count comes from the
// job's DML statistics.
func (w *Warehouse) Exec(ctx context.Context, stmt string) (int64, error) {
	w.logger.Debug("exec", "statement", stmt)
	_, status, err := w.run(ctx, stmt)
	if err != nil {
		return 0, err
	}
	if status.Statistics != nil {
		if qs, ok := status.Statistics.Details.(*bq.QueryStatistics); ok {
			return qs.NumDMLAffectedRows, nil
		}
	}
	return -1, nil
}

// Query implements warehouse.Executor.
func (w *Warehouse) Query(ctx context.Context, stmt string) (*warehouse.Result, error) {
	w.logger.Debug("query", "statement", stmt)
	job, _, err := w.run(ctx, stmt)
	if err != nil {
		return nil, err
	}
	it, err := job.Read(ctx)
	if err != nil {
		return nil, err
	}

	res := &warehouse.Result{}
	for {
		var row []bq.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = v
		}
		res.Rows = append(res.Rows, values)
	}
	for _, field := range it.Schema {
		res.Columns = append(res.Columns, field.Name)
	}
	return res, nil
}

// table resolves "dataset.table" or "project.dataset.table".
func (w *Warehouse) table(path string) (*bq.Table, error) {
	parts := strings.Split(path, ".")
	switch len(parts) {
	case 2:
		return w.client.Dataset(parts[0]).Table(parts[1]), nil
	case 3:
		return w.client.DatasetInProject(parts[0], parts[1]).Table(parts[2]), nil
	default:
		return nil, fmt.Errorf("table path %q is not dataset.table or project.dataset.table", path)
	}
}

func isStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}

// TableExists implements warehouse.Catalog.
func (w *Warehouse) TableExists(ctx context.Context, path string) (bool, error) {
	t, err := w.table(path)
	if err != nil {
		return false, err
	}
	if _, err := t.Metadata(ctx); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get table %s: %w", path, err)
	}
	return true, nil
}

// ColumnType implements warehouse.Catalog.
func (w *Warehouse) ColumnType(ctx context.Context, path, column string) (string, error) {
	t, err := w.table(path)
	if err != nil {
		return "", err
	}
	md, err := t.Metadata(ctx)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return "", fmt.Errorf("table %s: %w", path, retention.ErrTableNotFound)
		}
		return "", fmt.Errorf("get table %s: %w", path, err)
	}
	for _, field := range md.Schema {
		if strings.EqualFold(field.Name, column) {
			return string(field.Type), nil
		}
	}
	return "", fmt.Errorf("column %s of %s: %w", column, path, retention.ErrTableNotFound)
}

// DropTable implements warehouse.Catalog.
func (w *Warehouse) DropTable(ctx context.Context, path string) error {
	t, err := w.table(path)
	if err != nil {
		return err
	}
	if err := t.Delete(ctx); err != nil && !isStatus(err, http.StatusNotFound) {
		return fmt.Errorf("delete table %s: %w", path, err)
	}
	return nil
}

// Export implements warehouse.Archiver with an extract job.
func (w *Warehouse) Export(ctx context.Context, path string, target warehouse.ExportTarget) error {
	t, err := w.table(path)
	if err != nil {
		return err
	}

	ref := bq.NewGCSReference(target.URI)
	ref.DestinationFormat = bq.DataFormat(target.Format)
	if target.Compression != "" && target.Compression != archive.CompressionNone {
		ref.Compression = bq.Compression(target.Compression)
	}

	job, err := t.ExtractorTo(ref).Run(ctx)
	if err != nil {
		return fmt.Errorf("start extract of %s: %w", path, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for extract of %s: %w", path, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("extract of %s failed: %w", path, err)
	}

	w.logger.Info("table exported", "table", path, "uri", target.URI, "job_id", job.ID())
	return nil
}

// CreateExternalTable implements warehouse.Archiver. An existing table is
// left unchanged.
func (w *Warehouse) CreateExternalTable(ctx context.Context, path string, format archive.Format, uris []string) error {
	t, err := w.table(path)
	if err != nil {
		return err
	}
	md := &bq.TableMetadata{
		ExternalDataConfig: &bq.ExternalDataConfig{
			SourceFormat: bq.DataFormat(format),
			SourceURIs:   uris,
			AutoDetect:   true,
		},
	}
	if err := t.Create(ctx, md); err != nil {
		if isStatus(err, http.StatusConflict) {
			return nil
		}
		return fmt.Errorf("create external table %s: %w", path, err)
	}
	w.logger.Info("external table created", "table", path, "uris", uris)
	return nil
}

// Close closes the client.
func (w *Warehouse) Close() error {
	return w.client.Close()
}

var _ warehouse.Warehouse = (*Warehouse)(nil)
