package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"recordkeeper-hq/keeper/pkg/catalog"
	"recordkeeper-hq/keeper/pkg/retention"
)

// SQLiteConfig contains configuration for the SQLite catalog.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite catalog configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/catalog.db",
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStore is a catalog.Store backed by a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) a SQLite catalog.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:     db,
		logger: slog.Default().With("component", "catalog.storage.sqlite"),
	}

	if err := s.initialize(config); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite catalog initialized", "path", config.Path)
	return s, nil
}

func (s *SQLiteStore) initialize(config *SQLiteConfig) error {
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", config.BusyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("create catalog schema: %w", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return fmt.Errorf("insert schema version: %w", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != SchemaVersion {
		return fmt.Errorf("catalog schema version mismatch: expected %d, got %d", SchemaVersion, version)
	}
	return nil
}

// ForeignKeys implements catalog.RelationshipStore.
func (s *SQLiteStore) ForeignKeys(ctx context.Context) ([]catalog.ForeignKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pk_table, fk_table, pk_columns, fk_columns FROM foreign_keys ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var out []catalog.ForeignKey
	for rows.Next() {
		var fk catalog.ForeignKey
		if err := rows.Scan(&fk.PKEntity, &fk.FKEntity, &fk.PKColumns, &fk.FKColumns); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		out = append(out, fk)
	}
	return out, rows.Err()
}

// SaveForeignKeys upserts records in one transaction. A replaced record keeps
// its original position.
func (s *SQLiteStore) SaveForeignKeys(ctx context.Context, fks []catalog.ForeignKey) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM foreign_keys`).Scan(&next); err != nil {
		return fmt.Errorf("read foreign key sequence: %w", err)
	}

	for _, fk := range fks {
		next++
		_, err := tx.ExecContext(ctx, `
			INSERT INTO foreign_keys (id, pk_table, fk_table, pk_columns, fk_columns, seq)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				pk_table = excluded.pk_table,
				fk_table = excluded.fk_table,
				pk_columns = excluded.pk_columns,
				fk_columns = excluded.fk_columns`,
			fk.ID(), fk.PKEntity, fk.FKEntity, fk.PKColumns, fk.FKColumns, next)
		if err != nil {
			return fmt.Errorf("save foreign key %s: %w", fk.ID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit foreign keys: %w", err)
	}
	s.logger.Debug("foreign keys saved", "count", len(fks))
	return nil
}

// LookupGroup implements catalog.GroupStore.
func (s *SQLiteStore) LookupGroup(ctx context.Context, entityPath string) (string, bool, error) {
	var group string
	err := s.db.QueryRowContext(ctx,
		`SELECT group_name FROM entity_groups WHERE entity_path = ?`, entityPath).Scan(&group)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup group for %s: %w", entityPath, err)
	}
	return group, true, nil
}

// AssignGroup sets an entity's group. An empty group removes the assignment.
func (s *SQLiteStore) AssignGroup(ctx context.Context, entityPath, group string) error {
	var err error
	if group == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM entity_groups WHERE entity_path = ?`, entityPath)
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO entity_groups (entity_path, group_name) VALUES (?, ?)
			ON CONFLICT(entity_path) DO UPDATE SET group_name = excluded.group_name`,
			entityPath, group)
	}
	if err != nil {
		return fmt.Errorf("assign group for %s: %w", entityPath, err)
	}
	return nil
}

// Groups lists assignments ordered by entity path.
func (s *SQLiteStore) Groups(ctx context.Context) ([]catalog.GroupAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entity_path, group_name FROM entity_groups ORDER BY entity_path`)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var out []catalog.GroupAssignment
	for rows.Next() {
		var g catalog.GroupAssignment
		if err := rows.Scan(&g.EntityPath, &g.Group); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

const policyColumns = `policy_id, kind, storage_system, entity_name, entity_path, grouping,
	entity_groups, policy_action, ts_column, retention_period, retention_unit,
	sql_filter_exp, softdelete_period, softdelete_unit, date_created`

// Policies implements catalog.PolicyStore. Filtering happens in SQL; the
// final ordering is the shared catalog ordering.
func (s *SQLiteStore) Policies(ctx context.Context, kind retention.Kind, ids []string) ([]*retention.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE kind = ?`
	args := []any{string(kind)}
	if len(ids) > 0 {
		query += ` AND policy_id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}
	defer rows.Close()

	var out []*retention.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policies: %w", err)
	}
	return catalog.SelectPolicies(out, kind, ids), nil
}

func scanPolicy(rows *sql.Rows) (*retention.Policy, error) {
	var (
		p                     retention.Policy
		groupsJSON            string
		tsColumn, filterExp   sql.NullString
		retUnit, sdUnit       sql.NullString
		retPeriod, sdPeriod   sql.NullInt64
		kind, storage, action string
	)
	err := rows.Scan(&p.ID, &kind, &storage, &p.EntityName, &p.EntityPath, &p.Grouping,
		&groupsJSON, &action, &tsColumn, &retPeriod, &retUnit,
		&filterExp, &sdPeriod, &sdUnit, &p.Created)
	if err != nil {
		return nil, fmt.Errorf("scan policy: %w", err)
	}
	if err := json.Unmarshal([]byte(groupsJSON), &p.EntityGroups); err != nil {
		return nil, fmt.Errorf("decode entity groups of policy %s: %w", p.ID, err)
	}

	p.Kind = retention.Kind(kind)
	p.StorageSystem = retention.StorageSystem(storage)
	p.Action = retention.Action(action)
	p.TimestampColumn = tsColumn.String
	p.FilterExpression = filterExp.String
	p.Retention = retention.Period{Value: int(retPeriod.Int64), Unit: retention.Unit(retUnit.String)}
	p.SoftDelete = retention.Period{Value: int(sdPeriod.Int64), Unit: retention.Unit(sdUnit.String)}
	return &p, nil
}

// PutPolicy creates or replaces a policy.
func (s *SQLiteStore) PutPolicy(ctx context.Context, p *retention.Policy) error {
	catalog.PreparePolicy(p)
	if p.Created.IsZero() {
		p.Created = time.Now().UTC()
	}

	groups := p.EntityGroups
	if groups == nil {
		groups = []string{}
	}
	groupsJSON, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("encode entity groups: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO policies (`+policyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, string(p.Kind), string(p.StorageSystem), p.EntityName, p.EntityPath, p.Grouping,
		string(groupsJSON), string(p.Action), nullString(p.TimestampColumn),
		p.Retention.Value, nullString(string(p.Retention.Unit)),
		nullString(p.FilterExpression), p.SoftDelete.Value, nullString(string(p.SoftDelete.Unit)),
		p.Created)
	if err != nil {
		return fmt.Errorf("save policy %s: %w", p.ID, err)
	}
	s.logger.Debug("policy saved", "policy_id", p.ID, "entity", p.EntityPath)
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ catalog.Store = (*SQLiteStore)(nil)
