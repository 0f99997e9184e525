package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "warehouse.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
//
// Settings that only some policies need (datasets, archive bucket, job
// cluster) are checked again when a run loads its policies.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateWarehouse(&cfg.Warehouse)...)
	errs = append(errs, validateArchive(&cfg.Archive)...)
	errs = append(errs, validateJobs(&cfg.Jobs)...)
	errs = append(errs, validateCatalog(&cfg.Catalog)...)
	errs = append(errs, validateSchedule(&cfg.Schedule)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func oneOf(field, value string, allowed ...string) []FieldError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return []FieldError{{
		Field:   field,
		Message: fmt.Sprintf("invalid value %q: must be one of %s", value, strings.Join(allowed, ", ")),
	}}
}

func validateWarehouse(cfg *WarehouseConfig) []FieldError {
	errs := oneOf("warehouse.backend", cfg.Backend, "bigquery", "sql")
	switch cfg.Backend {
	case "bigquery":
		if cfg.BigQuery.Project == "" {
			errs = append(errs, FieldError{Field: "warehouse.bigquery.project", Message: "project is required for the bigquery backend"})
		}
	case "sql":
		errs = append(errs, oneOf("warehouse.sql.driver", cfg.SQL.Driver, "sqlite", "postgres", "mysql")...)
		if cfg.SQL.DSN == "" {
			errs = append(errs, FieldError{Field: "warehouse.sql.dsn", Message: "dsn is required for the sql backend"})
		}
		if len(cfg.SQL.Attach) > 0 && cfg.SQL.Driver != "sqlite" {
			errs = append(errs, FieldError{Field: "warehouse.sql.attach", Message: "attach is only supported by the sqlite driver"})
		}
	}
	return errs
}

func validateArchive(cfg *ArchiveConfig) []FieldError {
	var errs []FieldError
	errs = append(errs, oneOf("archive.file_format", strings.ToUpper(cfg.FileFormat),
		"PARQUET", "AVRO", "CSV", "NEWLINE_DELIMITED_JSON", "JSON")...)
	errs = append(errs, oneOf("archive.compression", strings.ToUpper(cfg.Compression),
		"NONE", "GZIP", "SNAPPY", "DEFLATE")...)
	if strings.HasPrefix(cfg.Bucket, "gs://") {
		errs = append(errs, FieldError{Field: "archive.bucket", Message: "bucket must be a bare bucket name without gs://"})
	}
	return errs
}

func validateJobs(cfg *JobsConfig) []FieldError {
	errs := oneOf("jobs.backend", cfg.Backend, "dataproc", "none")
	if cfg.Backend != "dataproc" {
		return errs
	}
	for field, value := range map[string]string{
		"jobs.project":       cfg.Project,
		"jobs.region":        cfg.Region,
		"jobs.cluster":       cfg.Cluster,
		"jobs.delete_script": cfg.DeleteScript,
	} {
		if value == "" {
			errs = append(errs, FieldError{Field: field, Message: "required for the dataproc backend"})
		}
	}
	if cfg.PollInterval < 0 {
		errs = append(errs, FieldError{Field: "jobs.poll_interval", Message: "poll interval must be positive"})
	}
	return errs
}

func validateCatalog(cfg *CatalogConfig) []FieldError {
	errs := oneOf("catalog.backend", cfg.Backend, "sqlite", "file", "git")
	if cfg.Backend == "git" {
		if cfg.Git.Repository == "" {
			errs = append(errs, FieldError{Field: "catalog.git.repository", Message: "repository is required for the git backend"})
		} else if u, err := url.Parse(cfg.Git.Repository); err != nil || (u.Scheme != "" && u.Scheme != "https" && u.Scheme != "http" && u.Scheme != "file") {
			errs = append(errs, FieldError{Field: "catalog.git.repository", Message: fmt.Sprintf("unsupported repository URL %q", cfg.Git.Repository)})
		}
		if cfg.Git.Token != "" && cfg.Git.Username == "" {
			errs = append(errs, FieldError{Field: "catalog.git.username", Message: "username is required with a token"})
		}
	}
	return errs
}

func validateSchedule(cfg *ScheduleConfig) []FieldError {
	var errs []FieldError
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for field, expr := range map[string]string{
		"schedule.scheduled": cfg.Scheduled,
		"schedule.on_demand": cfg.OnDemand,
	} {
		if expr == "" || expr == "-" {
			continue
		}
		if _, err := parser.Parse(expr); err != nil {
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("invalid cron expression %q: %v", expr, err)})
		}
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	errs = append(errs, oneOf("telemetry.logging.level", cfg.Logging.Level, "debug", "info", "warn", "error")...)
	errs = append(errs, oneOf("telemetry.logging.format", cfg.Logging.Format, "json", "text", "console")...)

	if cfg.Metrics.Pushgateway != "" {
		if u, err := url.Parse(cfg.Metrics.Pushgateway); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.pushgateway",
				Message: fmt.Sprintf("invalid pushgateway URL %q", cfg.Metrics.Pushgateway),
			})
		}
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	return errs
}
