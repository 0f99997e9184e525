package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix starts every environment variable override.
const EnvPrefix = "KEEPER_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention KEEPER_SECTION_FIELD (e.g., KEEPER_WAREHOUSE_BACKEND).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return &cfg, nil
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envFloat(name string, dst *float64) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Warehouse overrides
	envString("WAREHOUSE_BACKEND", &cfg.Warehouse.Backend)
	envString("WAREHOUSE_BIGQUERY_PROJECT", &cfg.Warehouse.BigQuery.Project)
	envString("WAREHOUSE_BIGQUERY_LOCATION", &cfg.Warehouse.BigQuery.Location)
	envString("WAREHOUSE_BIGQUERY_CREDENTIALS_FILE", &cfg.Warehouse.BigQuery.CredentialsFile)
	envString("WAREHOUSE_SQL_DRIVER", &cfg.Warehouse.SQL.Driver)
	envString("WAREHOUSE_SQL_DSN", &cfg.Warehouse.SQL.DSN)

	// Dataset overrides
	envString("DATASETS_PROJECT", &cfg.Datasets.Project)
	envString("DATASETS_NATIVE_DATASET", &cfg.Datasets.NativeDataset)
	envString("DATASETS_TOMBSTONE_DATASET", &cfg.Datasets.TombstoneDataset)
	envString("DATASETS_TEMP_DATASET", &cfg.Datasets.TempDataset)
	envString("DATASETS_EXTERNAL_DATASET", &cfg.Datasets.ExternalDataset)

	// Archive overrides
	envString("ARCHIVE_BUCKET", &cfg.Archive.Bucket)
	envString("ARCHIVE_LAKE_BUCKET", &cfg.Archive.LakeBucket)
	envString("ARCHIVE_FILE_FORMAT", &cfg.Archive.FileFormat)
	envString("ARCHIVE_COMPRESSION", &cfg.Archive.Compression)
	envString("ARCHIVE_CREDENTIALS_FILE", &cfg.Archive.CredentialsFile)
	envString("ARCHIVE_LOCAL_ROOT", &cfg.Archive.LocalRoot)

	// Job overrides
	envString("JOBS_BACKEND", &cfg.Jobs.Backend)
	envString("JOBS_PROJECT", &cfg.Jobs.Project)
	envString("JOBS_REGION", &cfg.Jobs.Region)
	envString("JOBS_CLUSTER", &cfg.Jobs.Cluster)
	envString("JOBS_DELETE_SCRIPT", &cfg.Jobs.DeleteScript)
	envDuration("JOBS_POLL_INTERVAL", &cfg.Jobs.PollInterval)

	// Catalog overrides
	envString("CATALOG_BACKEND", &cfg.Catalog.Backend)
	envString("CATALOG_SQLITE_PATH", &cfg.Catalog.SQLite.Path)
	envString("CATALOG_FILE_PATH", &cfg.Catalog.File.Path)
	envBool("CATALOG_FILE_WATCH", &cfg.Catalog.File.Watch)
	envString("CATALOG_GIT_REPOSITORY", &cfg.Catalog.Git.Repository)
	envString("CATALOG_GIT_BRANCH", &cfg.Catalog.Git.Branch)
	envString("CATALOG_GIT_PATH", &cfg.Catalog.Git.Path)
	envString("CATALOG_GIT_USERNAME", &cfg.Catalog.Git.Username)
	envString("CATALOG_GIT_TOKEN", &cfg.Catalog.Git.Token)

	// Schedule overrides
	envString("SCHEDULE_SCHEDULED", &cfg.Schedule.Scheduled)
	envString("SCHEDULE_ON_DEMAND", &cfg.Schedule.OnDemand)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_TEXTFILE", &cfg.Telemetry.Metrics.Textfile)
	envString("TELEMETRY_METRICS_PUSHGATEWAY", &cfg.Telemetry.Metrics.Pushgateway)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)

	envString("SECRETS_DIR", &cfg.Secrets.Dir)
}
