// Package warehouse defines what the retention engine needs from a data
// warehouse: statement execution, table metadata, and archive export.
// Implementations live in the sqldb and bigquery subpackages.
package warehouse

import (
	"context"
	"fmt"

	"recordkeeper-hq/keeper/pkg/archive"
	"recordkeeper-hq/keeper/pkg/retention/filter"
)

// Result holds the rows of a query.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Column returns every value of column i.
func (r *Result) Column(i int) []any {
	out := make([]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		if i < len(row) {
			out = append(out, row[i])
		}
	}
	return out
}

// Executor runs statements synchronously.
type Executor interface {
	// Exec runs a statement that returns no rows and reports the number of
	// affected rows, or -1 when the engine does not say.
	Exec(ctx context.Context, stmt string) (int64, error)

	// Query runs a statement and buffers its rows.
	Query(ctx context.Context, stmt string) (*Result, error)
}

// Catalog answers metadata questions about tables.
type Catalog interface {
	TableExists(ctx context.Context, table string) (bool, error)

	// ColumnType returns the declared type name of a column, or an error
	// wrapping retention.ErrTableNotFound.
	ColumnType(ctx context.Context, table, column string) (string, error)

	// DropTable removes a table if it exists.
	DropTable(ctx context.Context, table string) error
}

// ExportTarget is where and how a table is exported.
type ExportTarget struct {
	URI         string
	Format      archive.Format
	Compression archive.Compression
}

// Archiver moves table contents to archive storage.
type Archiver interface {
	// Export writes every row of table to target.
	Export(ctx context.Context, table string, target ExportTarget) error

	// CreateExternalTable defines table over archive files matching uris.
	// An existing table is left unchanged.
	CreateExternalTable(ctx context.Context, table string, format archive.Format, uris []string) error
}

// Warehouse is a complete backend.
type Warehouse interface {
	Executor
	Catalog
	Archiver

	// Dialect is the SQL dialect statements must be written in.
	Dialect() filter.Dialect

	Close() error
}

// Count returns the number of rows of table matching predicate.
func Count(ctx context.Context, ex Executor, table, predicate string) (int64, error) {
	stmt := "select count(*) as count from " + table
	if predicate != "" {
		stmt += " where " + predicate
	}
	res, err := ex.Query(ctx, stmt)
	if err != nil {
		return 0, err
	}
	if len(res.Rows) == 0 || len(res.Rows[0]) == 0 {
		return 0, fmt.Errorf("count query returned no rows")
	}
	return ToInt64(res.Rows[0][0])
}

// ToInt64 converts a numeric driver value.
func ToInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case []byte:
		var n int64
		_, err := fmt.Sscan(string(x), &n)
		return n, err
	case string:
		var n int64
		_, err := fmt.Sscan(x, &n)
		return n, err
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
