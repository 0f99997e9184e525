// Package sqldb implements warehouse.Warehouse over database/sql for SQLite,
// PostgreSQL and MySQL.
//
// Entities are addressed as "dataset.table". On PostgreSQL a dataset is a
// schema, on MySQL a database, and on SQLite an attached database file
// (see Config.Attach). SQL engines have no external tables; archived files
// are written through an archive.Sink and their locations are recorded in the
// keeper_external_tables registry.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"recordkeeper-hq/keeper/pkg/archive"
	"recordkeeper-hq/keeper/pkg/retention"
	"recordkeeper-hq/keeper/pkg/retention/filter"
	"recordkeeper-hq/keeper/pkg/warehouse"
)

// Supported drivers.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
	MySQL    = "mysql"
)

// RegistryTable records external table definitions.
const RegistryTable = "keeper_external_tables"

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config configures a SQL warehouse.
type Config struct {
	// Driver is one of "sqlite", "postgres" or "mysql".
	Driver string

	// DSN is the driver data source name.
	DSN string

	// Attach maps dataset names to database files (SQLite only).
	Attach map[string]string

	// Sink receives archive exports. Default: archive.LocalSink.
	Sink archive.Sink
}

// Warehouse is a database/sql backed warehouse.
type Warehouse struct {
	db      *sql.DB
	driver  string
	dialect filter.Dialect
	sink    archive.Sink
	logger  *slog.Logger
}

// Open connects to the configured database.
func Open(ctx context.Context, cfg Config) (*Warehouse, error) {
	driverName := cfg.Driver
	switch cfg.Driver {
	case SQLite, "sqlite3":
		driverName = SQLite
	case Postgres, "postgresql":
		driverName = Postgres
	case MySQL:
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s warehouse: %w", driverName, err)
	}
	if driverName == SQLite {
		// ATTACH is per connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s warehouse: %w", driverName, err)
	}

	w, err := OpenDB(driverName, db, cfg.Sink)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := w.attach(ctx, cfg.Attach); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

// OpenDB wraps an existing connection pool.
func OpenDB(driver string, db *sql.DB, sink archive.Sink) (*Warehouse, error) {
	d, err := filter.DialectFor(driver)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = archive.LocalSink{}
	}
	return &Warehouse{
		db:      db,
		driver:  driver,
		dialect: d,
		sink:    sink,
		logger:  slog.Default().With("component", "warehouse.sqldb", "driver", driver),
	}, nil
}

func (w *Warehouse) attach(ctx context.Context, datasets map[string]string) error {
	if len(datasets) == 0 {
		return nil
	}
	if w.driver != SQLite {
		return fmt.Errorf("attach is only supported for sqlite")
	}

	names := make([]string, 0, len(datasets))
	for name := range datasets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !identPattern.MatchString(name) {
			return fmt.Errorf("invalid dataset name %q", name)
		}
		if _, err := w.db.ExecContext(ctx, fmt.Sprintf("ATTACH DATABASE ? AS %s", name), datasets[name]); err != nil {
			return fmt.Errorf("attach dataset %s: %w", name, err)
		}
		w.logger.Debug("dataset attached", "dataset", name, "file", datasets[name])
	}
	return nil
}

// Dialect implements warehouse.Warehouse.
func (w *Warehouse) Dialect() filter.Dialect {
	return w.dialect
}

// DB returns the underlying pool.
func (w *Warehouse) DB() *sql.DB {
	return w.db
}

// Exec implements warehouse.Executor.
func (w *Warehouse) Exec(ctx context.Context, stmt string) (int64, error) {
	w.logger.Debug("exec", "statement", stmt)
	res, err := w.db.ExecContext(ctx, stmt)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1, nil
	}
	return n, nil
}

// Query implements warehouse.Executor.
func (w *Warehouse) Query(ctx context.Context, stmt string) (*warehouse.Result, error) {
	w.logger.Debug("query", "statement", stmt)
	rows, err := w.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &warehouse.Result{Columns: columns}
	for rows.Next() {
		values, err := scanRow(rows, len(columns))
		if err != nil {
			return nil, err
		}
		res.Rows = append(res.Rows, values)
	}
	return res, rows.Err()
}

func scanRow(rows *sql.Rows, width int) ([]any, error) {
	values := make([]any, width)
	ptrs := make([]any, width)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = string(b)
		}
	}
	return values, nil
}

// splitTable returns the dataset and table of a path, validating both.
func splitTable(path string) (dataset, table string, err error) {
	dataset, table = retention.Dataset(path), path
	if dataset != "" {
		table = path[len(dataset)+1:]
	}
	if dataset != "" && !identPattern.MatchString(dataset) {
		return "", "", fmt.Errorf("invalid dataset name %q", dataset)
	}
	if !identPattern.MatchString(table) {
		return "", "", fmt.Errorf("invalid table name %q", table)
	}
	return dataset, table, nil
}

func (w *Warehouse) bind(n int) string {
	if w.driver == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// TableExists implements warehouse.Catalog.
func (w *Warehouse) TableExists(ctx context.Context, path string) (bool, error) {
	dataset, table, err := splitTable(path)
	if err != nil {
		return false, err
	}

	var query string
	var args []any
	switch w.driver {
	case SQLite:
		master := "sqlite_master"
		if dataset != "" {
			master = dataset + ".sqlite_master"
		}
		query = fmt.Sprintf("SELECT count(*) FROM %s WHERE type IN ('table', 'view') AND name = ?", master)
		args = []any{table}
	default:
		query = fmt.Sprintf("SELECT count(*) FROM information_schema.tables WHERE table_schema = %s AND table_name = %s",
			w.schemaExpr(dataset, 1), w.bind(w.nextArg(dataset, 1)))
		args = w.schemaArgs(dataset, table)
	}

	var n int64
	if err := w.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("check table %s: %w", path, err)
	}
	return n > 0, nil
}

// schemaExpr is the table_schema value: a bind parameter for an explicit
// dataset, or the connection's default schema.
func (w *Warehouse) schemaExpr(dataset string, n int) string {
	if dataset != "" {
		return w.bind(n)
	}
	if w.driver == Postgres {
		return "current_schema()"
	}
	return "DATABASE()"
}

func (w *Warehouse) nextArg(dataset string, n int) int {
	if dataset != "" {
		return n + 1
	}
	return n
}

func (w *Warehouse) schemaArgs(dataset string, rest ...any) []any {
	if dataset == "" {
		return rest
	}
	return append([]any{dataset}, rest...)
}

// ColumnType implements warehouse.Catalog.
func (w *Warehouse) ColumnType(ctx context.Context, path, column string) (string, error) {
	dataset, table, err := splitTable(path)
	if err != nil {
		return "", err
	}

	var query string
	var args []any
	switch w.driver {
	case SQLite:
		schema := dataset
		if schema == "" {
			schema = "main"
		}
		query = "SELECT type FROM pragma_table_info(?, ?) WHERE name = ?"
		args = []any{table, schema, column}
	default:
		n := w.nextArg(dataset, 1)
		query = fmt.Sprintf("SELECT data_type FROM information_schema.columns WHERE table_schema = %s AND table_name = %s AND column_name = %s",
			w.schemaExpr(dataset, 1), w.bind(n), w.bind(n+1))
		args = w.schemaArgs(dataset, table, column)
	}

	var typ string
	err = w.db.QueryRowContext(ctx, query, args...).Scan(&typ)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("column %s of %s: %w", column, path, retention.ErrTableNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("lookup column %s of %s: %w", column, path, err)
	}
	return typ, nil
}

// DropTable implements warehouse.Catalog.
func (w *Warehouse) DropTable(ctx context.Context, path string) error {
	if _, _, err := splitTable(path); err != nil {
		return err
	}
	_, err := w.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+path)
	if err != nil {
		return fmt.Errorf("drop table %s: %w", path, err)
	}
	return nil
}

// Export implements warehouse.Archiver by streaming rows through the sink.
func (w *Warehouse) Export(ctx context.Context, path string, target warehouse.ExportTarget) error {
	if _, _, err := splitTable(path); err != nil {
		return err
	}

	rows, err := w.db.QueryContext(ctx, "SELECT * FROM "+path)
	if err != nil {
		return fmt.Errorf("read %s for export: %w", path, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}

	file, err := archive.Create(ctx, w.sink, target.URI, target.Format, target.Compression, columns)
	if err != nil {
		return err
	}
	for rows.Next() {
		values, err := scanRow(rows, len(columns))
		if err != nil {
			file.Close()
			return err
		}
		if err := file.WriteRow(values); err != nil {
			file.Close()
			return fmt.Errorf("write archive row: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("finish archive %s: %w", target.URI, err)
	}

	w.logger.Info("table exported", "table", path, "uri", target.URI, "rows", file.Rows())
	return nil
}

// CreateExternalTable implements warehouse.Archiver by recording the
// definition in the registry table.
func (w *Warehouse) CreateExternalTable(ctx context.Context, path string, format archive.Format, uris []string) error {
	if _, _, err := splitTable(path); err != nil {
		return err
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    table_name VARCHAR(255) PRIMARY KEY,
    format VARCHAR(64) NOT NULL,
    uris TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
)`, RegistryTable)
	if _, err := w.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create external table registry: %w", err)
	}

	var n int64
	query := fmt.Sprintf("SELECT count(*) FROM %s WHERE table_name = %s", RegistryTable, w.bind(1))
	if err := w.db.QueryRowContext(ctx, query, path).Scan(&n); err != nil {
		return fmt.Errorf("lookup external table %s: %w", path, err)
	}
	if n > 0 {
		return nil
	}

	insert := fmt.Sprintf("INSERT INTO %s (table_name, format, uris, created_at) VALUES (%s, %s, %s, %s)",
		RegistryTable, w.bind(1), w.bind(2), w.bind(3), w.bind(4))
	if _, err := w.db.ExecContext(ctx, insert, path, string(format), strings.Join(uris, ","), time.Now().UTC()); err != nil {
		return fmt.Errorf("register external table %s: %w", path, err)
	}
	w.logger.Info("external table registered", "table", path, "uris", uris)
	return nil
}

// Close closes the pool.
func (w *Warehouse) Close() error {
	return w.db.Close()
}

var _ warehouse.Warehouse = (*Warehouse)(nil)
