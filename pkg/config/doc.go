// Package config provides configuration management for keeper.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("keeper.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("keeper.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention KEEPER_SECTION_FIELD.
// For example:
//
//   - KEEPER_WAREHOUSE_BIGQUERY_PROJECT overrides warehouse.bigquery.project
//   - KEEPER_DATASETS_TOMBSTONE_DATASET overrides datasets.tombstone_dataset
//   - KEEPER_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Values from YAML file
//  2. Environment variable overrides
//  3. Default values for anything still unset
//  4. Validation (fails fast if invalid)
//
// # Sections
//
//	warehouse:   query backend (bigquery, or sql with sqlite/postgres/mysql)
//	datasets:    native, tombstone, temp and external datasets
//	archive:     archive bucket, lake bucket, file format, compression
//	jobs:        external delete jobs (dataproc)
//	catalog:     policy, group and foreign-key store (sqlite, file, git)
//	schedule:    cron expressions for recurring runs
//	telemetry:   logging, metrics, tracing
//
// # Singleton Pattern
//
// For application-wide configuration access, use the singleton pattern:
//
//	if err := config.Initialize("keeper.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// For testing, prefer dependency injection with explicit Config instances.
package config
