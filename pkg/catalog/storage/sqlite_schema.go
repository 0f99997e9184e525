package storage

// SchemaVersion is the current catalog schema version.
const SchemaVersion = 1

// Schema creates the catalog tables.
const Schema = `
CREATE TABLE IF NOT EXISTS foreign_keys (
    id TEXT PRIMARY KEY,
    pk_table TEXT NOT NULL,
    fk_table TEXT NOT NULL,
    pk_columns TEXT NOT NULL,
    fk_columns TEXT NOT NULL,
    seq INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS entity_groups (
    entity_path TEXT PRIMARY KEY,
    group_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS policies (
    policy_id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    storage_system TEXT NOT NULL,
    entity_name TEXT NOT NULL,
    entity_path TEXT NOT NULL,
    grouping BOOLEAN NOT NULL DEFAULT 0,
    entity_groups TEXT NOT NULL DEFAULT '[]',
    policy_action TEXT NOT NULL,
    ts_column TEXT,
    retention_period INTEGER,
    retention_unit TEXT,
    sql_filter_exp TEXT,
    softdelete_period INTEGER,
    softdelete_unit TEXT,
    date_created TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_policies_kind ON policies(kind);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// GetSchemaVersion reads the recorded schema version.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version`
