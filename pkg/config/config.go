package config

import "time"

// Config is the root configuration of keeper. Each section configures one
// collaborator of the retention engine.
type Config struct {
	// Warehouse selects and configures the query backend policies run on.
	Warehouse WarehouseConfig `yaml:"warehouse"`

	// Datasets names the warehouse datasets the engine reads and writes.
	Datasets DatasetsConfig `yaml:"datasets"`

	// Archive configures archive export and the object-store buckets.
	Archive ArchiveConfig `yaml:"archive"`

	// Jobs configures the external job backend used for object-store deletes.
	Jobs JobsConfig `yaml:"jobs"`

	// Catalog selects where policies, group assignments and foreign keys
	// are stored.
	Catalog CatalogConfig `yaml:"catalog"`

	// Schedule holds the cron expressions of recurring runs.
	Schedule ScheduleConfig `yaml:"schedule"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Secrets configures resolution of ${secret:name} references.
	Secrets SecretsConfig `yaml:"secrets"`
}

// WarehouseConfig selects the warehouse backend.
type WarehouseConfig struct {
	// Backend is "bigquery" or "sql".
	// Default: "bigquery"
	Backend string `yaml:"backend"`

	BigQuery BigQueryConfig `yaml:"bigquery"`
	SQL      SQLConfig      `yaml:"sql"`
}

// BigQueryConfig configures the BigQuery warehouse.
type BigQueryConfig struct {
	Project string `yaml:"project"`

	// Location is the job location, e.g. "EU" or "us-central1".
	Location string `yaml:"location"`

	// CredentialsFile is a service account key. Application default
	// credentials are used when empty.
	CredentialsFile string `yaml:"credentials_file"`
}

// SQLConfig configures a database/sql warehouse.
type SQLConfig struct {
	// Driver is "sqlite", "postgres" or "mysql".
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// DSN is the driver data source name.
	DSN string `yaml:"dsn"`

	// Attach maps dataset names to database files (sqlite only).
	Attach map[string]string `yaml:"attach"`
}

// DatasetsConfig names the datasets used by retention actions.
type DatasetsConfig struct {
	Project string `yaml:"project"`

	// NativeDataset holds the warehouse copies of object-store entities.
	NativeDataset string `yaml:"native_dataset"`

	// TombstoneDataset holds soft-deleted rows pending purge.
	// Default: "tombstone"
	TombstoneDataset string `yaml:"tombstone_dataset"`

	// TempDataset holds staging tables during archive export.
	// Default: "staging"
	TempDataset string `yaml:"temp_dataset"`

	// ExternalDataset holds external tables over archive files.
	// Default: "external"
	ExternalDataset string `yaml:"external_dataset"`
}

// ArchiveConfig configures archive output.
type ArchiveConfig struct {
	Project string `yaml:"project"`

	// Bucket receives archive exports.
	Bucket string `yaml:"bucket"`

	// LakeBucket holds the object-store entities of GCS policies.
	// Default: Bucket
	LakeBucket string `yaml:"lake_bucket"`

	// FileFormat is PARQUET, AVRO, CSV or NEWLINE_DELIMITED_JSON.
	// Default: "PARQUET"
	FileFormat string `yaml:"file_format"`

	// Compression is NONE, GZIP, SNAPPY or DEFLATE.
	// Default: "SNAPPY"
	Compression string `yaml:"compression"`

	CredentialsFile string `yaml:"credentials_file"`

	// LocalRoot writes archives to a directory instead of a bucket.
	LocalRoot string `yaml:"local_root"`
}

// Base is the archive location: the local root when set, otherwise the
// bucket.
func (a ArchiveConfig) Base() string {
	if a.LocalRoot != "" {
		return a.LocalRoot
	}
	if a.Bucket != "" {
		return "gs://" + a.Bucket
	}
	return ""
}

// JobsConfig configures the external job backend.
type JobsConfig struct {
	// Backend is "dataproc" or "none".
	// Default: "none"
	Backend string `yaml:"backend"`

	Project         string `yaml:"project"`
	Region          string `yaml:"region"`
	Cluster         string `yaml:"cluster"`
	CredentialsFile string `yaml:"credentials_file"`

	// DeleteScript is the URI of the job's main file.
	DeleteScript string `yaml:"delete_script"`

	// Packages is the spark.jars.packages property of every job.
	// Default: "io.delta:delta-core_2.12:1.0.0"
	Packages string `yaml:"packages"`

	// PollInterval is how often a running job is polled.
	// Default: 5s
	PollInterval time.Duration `yaml:"poll_interval"`
}

// CatalogConfig selects the catalog backend.
type CatalogConfig struct {
	// Backend is "sqlite", "file" or "git".
	// Default: "file"
	Backend string `yaml:"backend"`

	SQLite CatalogSQLiteConfig `yaml:"sqlite"`
	File   CatalogFileConfig   `yaml:"file"`
	Git    CatalogGitConfig    `yaml:"git"`
}

// CatalogSQLiteConfig configures the SQLite catalog.
type CatalogSQLiteConfig struct {
	// Default: "data/catalog.db"
	Path string `yaml:"path"`

	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// CatalogFileConfig configures the YAML catalog document.
type CatalogFileConfig struct {
	// Default: "catalog.yaml"
	Path string `yaml:"path"`

	// Watch reloads the document when it changes.
	Watch bool `yaml:"watch"`
}

// CatalogGitConfig configures a catalog document kept in a git repository.
type CatalogGitConfig struct {
	Repository string `yaml:"repository"`

	// Default: "main"
	Branch string `yaml:"branch"`

	// Path of the document inside the repository.
	// Default: "catalog.yaml"
	Path string `yaml:"path"`

	// LocalDir is the clone directory.
	// Default: "data/catalog-repo"
	LocalDir string `yaml:"local_dir"`

	Username string `yaml:"username"`
	Token    string `yaml:"token"`

	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`
}

// ScheduleConfig holds cron expressions for "keeper schedule". The value "-"
// disables that mode.
type ScheduleConfig struct {
	// Default: "0 2 * * *"
	Scheduled string `yaml:"scheduled"`

	// Default: "0 * * * *"
	OnDemand string `yaml:"on_demand"`
}

// SecretsConfig configures where ${secret:name} references in credentials
// are looked up. The directory is tried first, then the environment.
type SecretsConfig struct {
	// EnvPrefix is prepended to the upper-cased secret name.
	// Default: "KEEPER_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir holds one file per secret, e.g. a mounted Kubernetes secret.
	Dir string `yaml:"dir"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics configuration. A run is a batch job, so
// metrics are written to a textfile or pushed to a Pushgateway at the end
// of each run.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Default: "keeper"
	Namespace string `yaml:"namespace"`

	// Default: "retention"
	Subsystem string `yaml:"subsystem"`

	// Textfile is a node_exporter textfile collector path.
	Textfile string `yaml:"textfile"`

	// Pushgateway is the URL of a Prometheus Pushgateway.
	Pushgateway string `yaml:"pushgateway"`

	// Job is the Pushgateway job label.
	// Default: "keeper"
	Job string `yaml:"job"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for the collector connection.
	Insecure bool `yaml:"insecure"`

	// SampleRatio is the fraction of runs traced (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Default: "keeper"
	ServiceName string `yaml:"service_name"`

	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
