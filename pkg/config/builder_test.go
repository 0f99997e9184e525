package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a new ConfigBuilder with sensible defaults for testing.
// The resulting configuration is valid and can be used immediately.
func NewTestConfig() *ConfigBuilder {
	cfg := Config{}
	cfg.Warehouse.Backend = "sql"
	cfg.Warehouse.SQL.DSN = "file::memory:"
	ApplyDefaults(&cfg)
	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	cfg := b.cfg
	return &cfg
}

func (b *ConfigBuilder) WithBigQuery(project string) *ConfigBuilder {
	b.cfg.Warehouse.Backend = "bigquery"
	b.cfg.Warehouse.BigQuery.Project = project
	return b
}

func (b *ConfigBuilder) WithSQLDriver(driver, dsn string) *ConfigBuilder {
	b.cfg.Warehouse.Backend = "sql"
	b.cfg.Warehouse.SQL.Driver = driver
	b.cfg.Warehouse.SQL.DSN = dsn
	return b
}

func (b *ConfigBuilder) WithDataproc(project, region, cluster, script string) *ConfigBuilder {
	b.cfg.Jobs.Backend = "dataproc"
	b.cfg.Jobs.Project = project
	b.cfg.Jobs.Region = region
	b.cfg.Jobs.Cluster = cluster
	b.cfg.Jobs.DeleteScript = script
	return b
}

func (b *ConfigBuilder) WithCatalogGit(repo string) *ConfigBuilder {
	b.cfg.Catalog.Backend = "git"
	b.cfg.Catalog.Git.Repository = repo
	return b
}

func (b *ConfigBuilder) WithSchedule(scheduled, onDemand string) *ConfigBuilder {
	b.cfg.Schedule.Scheduled = scheduled
	b.cfg.Schedule.OnDemand = onDemand
	return b
}

func (b *ConfigBuilder) WithPollInterval(d time.Duration) *ConfigBuilder {
	b.cfg.Jobs.PollInterval = d
	return b
}

func (b *ConfigBuilder) WithLogging(level, format string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	b.cfg.Telemetry.Logging.Format = format
	return b
}

func (b *ConfigBuilder) WithTracing(endpoint string, ratio float64) *ConfigBuilder {
	b.cfg.Telemetry.Tracing.Enabled = true
	b.cfg.Telemetry.Tracing.Endpoint = endpoint
	b.cfg.Telemetry.Tracing.SampleRatio = ratio
	return b
}
