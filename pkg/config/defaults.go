package config

import "time"

// Default values for configuration fields.
const (
	DefaultWarehouseBackend = "bigquery"
	DefaultSQLDriver        = "sqlite"

	DefaultTombstoneDataset = "tombstone"
	DefaultTempDataset      = "staging"
	DefaultExternalDataset  = "external"

	DefaultArchiveFileFormat  = "PARQUET"
	DefaultArchiveCompression = "SNAPPY"

	DefaultJobsBackend      = "none"
	DefaultJobsPackages     = "io.delta:delta-core_2.12:1.0.0"
	DefaultJobsPollInterval = 5 * time.Second

	DefaultCatalogBackend           = "file"
	DefaultCatalogSQLitePath        = "data/catalog.db"
	DefaultCatalogSQLiteBusyTimeout = 5 * time.Second
	DefaultCatalogFilePath          = "catalog.yaml"
	DefaultCatalogGitBranch         = "main"
	DefaultCatalogGitPath           = "catalog.yaml"
	DefaultCatalogGitLocalDir       = "data/catalog-repo"
	DefaultCatalogGitTimeout        = 60 * time.Second

	DefaultScheduleScheduled = "0 2 * * *"
	DefaultScheduleOnDemand  = "0 * * * *"

	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "text"

	DefaultMetricsNamespace = "keeper"
	DefaultMetricsSubsystem = "retention"
	DefaultMetricsJob       = "keeper"

	DefaultTracingSampleRatio = 1.0
	DefaultTracingServiceName = "keeper"
	DefaultTracingTimeout     = 10 * time.Second

	DefaultSecretsEnvPrefix = "KEEPER_SECRET_"
)

// ApplyDefaults fills every unset field with its default value.
func ApplyDefaults(cfg *Config) {
	if cfg.Warehouse.Backend == "" {
		cfg.Warehouse.Backend = DefaultWarehouseBackend
	}
	if cfg.Warehouse.SQL.Driver == "" {
		cfg.Warehouse.SQL.Driver = DefaultSQLDriver
	}

	if cfg.Datasets.TombstoneDataset == "" {
		cfg.Datasets.TombstoneDataset = DefaultTombstoneDataset
	}
	if cfg.Datasets.TempDataset == "" {
		cfg.Datasets.TempDataset = DefaultTempDataset
	}
	if cfg.Datasets.ExternalDataset == "" {
		cfg.Datasets.ExternalDataset = DefaultExternalDataset
	}
	if cfg.Datasets.Project == "" {
		cfg.Datasets.Project = cfg.Warehouse.BigQuery.Project
	}

	if cfg.Archive.FileFormat == "" {
		cfg.Archive.FileFormat = DefaultArchiveFileFormat
	}
	if cfg.Archive.Compression == "" {
		cfg.Archive.Compression = DefaultArchiveCompression
	}
	if cfg.Archive.LakeBucket == "" {
		cfg.Archive.LakeBucket = cfg.Archive.Bucket
	}

	if cfg.Jobs.Backend == "" {
		cfg.Jobs.Backend = DefaultJobsBackend
	}
	if cfg.Jobs.Packages == "" {
		cfg.Jobs.Packages = DefaultJobsPackages
	}
	if cfg.Jobs.PollInterval == 0 {
		cfg.Jobs.PollInterval = DefaultJobsPollInterval
	}

	applyCatalogDefaults(&cfg.Catalog)

	if cfg.Schedule.Scheduled == "" {
		cfg.Schedule.Scheduled = DefaultScheduleScheduled
	}
	if cfg.Schedule.OnDemand == "" {
		cfg.Schedule.OnDemand = DefaultScheduleOnDemand
	}

	applyTelemetryDefaults(&cfg.Telemetry)

	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}
}

func applyCatalogDefaults(c *CatalogConfig) {
	if c.Backend == "" {
		c.Backend = DefaultCatalogBackend
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = DefaultCatalogSQLitePath
	}
	if c.SQLite.BusyTimeout == 0 {
		c.SQLite.BusyTimeout = DefaultCatalogSQLiteBusyTimeout
	}
	if c.File.Path == "" {
		c.File.Path = DefaultCatalogFilePath
	}
	if c.Git.Branch == "" {
		c.Git.Branch = DefaultCatalogGitBranch
	}
	if c.Git.Path == "" {
		c.Git.Path = DefaultCatalogGitPath
	}
	if c.Git.LocalDir == "" {
		c.Git.LocalDir = DefaultCatalogGitLocalDir
	}
	if c.Git.Timeout == 0 {
		c.Git.Timeout = DefaultCatalogGitTimeout
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if t.Metrics.Subsystem == "" {
		t.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if t.Metrics.Job == "" {
		t.Metrics.Job = DefaultMetricsJob
	}
	// Zero means unset.
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingServiceName
	}
	if t.Tracing.Timeout == 0 {
		t.Tracing.Timeout = DefaultTracingTimeout
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
