// Package retentiontest provides recording fakes of the retention engine's
// collaborators for tests.
package retentiontest

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"recordkeeper-hq/keeper/pkg/archive"
	"recordkeeper-hq/keeper/pkg/retention"
	"recordkeeper-hq/keeper/pkg/retention/filter"
	"recordkeeper-hq/keeper/pkg/warehouse"
)

// Export records one Warehouse.Export call.
type Export struct {
	Table  string
	Target warehouse.ExportTarget
}

// Warehouse is an in-memory warehouse.Warehouse that records every call.
//
// Count queries answer from Counts, keyed by table. Other queries answer
// from Results, keyed by a substring of the statement. A "create table X as"
// statement makes X exist.
type Warehouse struct {
	mu sync.Mutex

	// Counts maps a table to the count returned for it. Missing tables
	// count zero.
	Counts map[string]int64

	// CountFunc, when set, overrides Counts for statements it accepts.
	CountFunc func(table, predicate string) (int64, bool)

	// Results maps a statement substring to the rows returned.
	Results map[string][][]any

	// Tables lists existing tables.
	Tables map[string]bool

	// Columns maps "table.column" to a declared type.
	Columns map[string]string

	// Errors maps a statement substring to the error Exec or Query returns.
	Errors map[string]error

	// Affected is returned by Exec. Zero means 1.
	Affected int64

	// StrictTables makes a count fail when its table, or a table its
	// predicate reads from, does not exist. A table exists when it is in
	// Tables, Counts or Columns, or was created by a statement.
	StrictTables bool

	SQLDialect filter.Dialect

	statements []string
	execs      []string
	exports    []Export
	external   []string
	dropped    []string
}

// NewWarehouse creates an empty fake using the BigQuery dialect.
func NewWarehouse() *Warehouse {
	return &Warehouse{
		Counts:     make(map[string]int64),
		Results:    make(map[string][][]any),
		Tables:     make(map[string]bool),
		Columns:    make(map[string]string),
		Errors:     make(map[string]error),
		SQLDialect: filter.BigQuery{},
	}
}

var (
	countPattern = regexp.MustCompile(`^select count\(\*\) as count from (\S+)(?: where (.*))?$`)
	ctasPattern  = regexp.MustCompile(`^create table (\S+) as `)
	fromPattern  = regexp.MustCompile(`\bfrom (\S+)`)
)

// known reports whether table exists. The caller holds w.mu.
func (w *Warehouse) known(table string) bool {
	if w.Tables[table] {
		return true
	}
	if _, ok := w.Counts[table]; ok {
		return true
	}
	for key := range w.Columns {
		if i := strings.LastIndex(key, "."); i > 0 && key[:i] == table {
			return true
		}
	}
	return false
}

// missing returns the first table a count over table with predicate reads
// that does not exist.
func (w *Warehouse) missing(table, predicate string) (string, bool) {
	if !w.known(table) {
		return table, true
	}
	for _, m := range fromPattern.FindAllStringSubmatch(predicate, -1) {
		if ref := strings.TrimRight(m[1], ")"); !w.known(ref) {
			return ref, true
		}
	}
	return "", false
}

func (w *Warehouse) failure(stmt string) error {
	keys := make([]string, 0, len(w.Errors))
	for k := range w.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(stmt, k) {
			return w.Errors[k]
		}
	}
	return nil
}

// Exec implements warehouse.Executor.
func (w *Warehouse) Exec(ctx context.Context, stmt string) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.statements = append(w.statements, stmt)
	w.execs = append(w.execs, stmt)
	if err := w.failure(stmt); err != nil {
		return 0, err
	}
	if m := ctasPattern.FindStringSubmatch(stmt); m != nil {
		w.Tables[m[1]] = true
	}
	if w.Affected == 0 {
		return 1, nil
	}
	return w.Affected, nil
}

// Query implements warehouse.Executor.
func (w *Warehouse) Query(ctx context.Context, stmt string) (*warehouse.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.statements = append(w.statements, stmt)
	if err := w.failure(stmt); err != nil {
		return nil, err
	}

	if m := countPattern.FindStringSubmatch(stmt); m != nil {
		if w.StrictTables {
			if table, ok := w.missing(m[1], m[2]); ok {
				return nil, fmt.Errorf("%s: %w", table, retention.ErrTableNotFound)
			}
		}
		var n int64
		if w.CountFunc != nil {
			if v, ok := w.CountFunc(m[1], m[2]); ok {
				n = v
			} else {
				n = w.Counts[m[1]]
			}
		} else {
			n = w.Counts[m[1]]
		}
		return &warehouse.Result{Columns: []string{"count"}, Rows: [][]any{{n}}}, nil
	}

	keys := make([]string, 0, len(w.Results))
	for k := range w.Results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(stmt, k) {
			return &warehouse.Result{Columns: []string{"id"}, Rows: w.Results[k]}, nil
		}
	}
	return &warehouse.Result{Columns: []string{"id"}}, nil
}

// TableExists implements warehouse.Catalog.
func (w *Warehouse) TableExists(ctx context.Context, table string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Tables[table], nil
}

// ColumnType implements warehouse.Catalog.
func (w *Warehouse) ColumnType(ctx context.Context, table, column string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ct, ok := w.Columns[table+"."+column]
	if !ok {
		return "", fmt.Errorf("%s.%s: %w", table, column, retention.ErrTableNotFound)
	}
	return ct, nil
}

// DropTable implements warehouse.Catalog.
func (w *Warehouse) DropTable(ctx context.Context, table string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dropped = append(w.dropped, table)
	delete(w.Tables, table)
	return nil
}

// Export implements warehouse.Archiver.
func (w *Warehouse) Export(ctx context.Context, table string, target warehouse.ExportTarget) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.exports = append(w.exports, Export{Table: table, Target: target})
	return nil
}

// CreateExternalTable implements warehouse.Archiver.
func (w *Warehouse) CreateExternalTable(ctx context.Context, table string, format archive.Format, uris []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.external = append(w.external, table)
	w.Tables[table] = true
	return nil
}

// Dialect implements warehouse.Warehouse.
func (w *Warehouse) Dialect() filter.Dialect { return w.SQLDialect }

// Close implements warehouse.Warehouse.
func (w *Warehouse) Close() error { return nil }

// Statements returns every executed statement and query in order.
func (w *Warehouse) Statements() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.statements...)
}

// Execs returns the mutating statements in order.
func (w *Warehouse) Execs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.execs...)
}

// Exports returns the recorded exports.
func (w *Warehouse) Exports() []Export {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Export(nil), w.exports...)
}

// ExternalTables returns the tables passed to CreateExternalTable.
func (w *Warehouse) ExternalTables() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.external...)
}

// Dropped returns the tables passed to DropTable.
func (w *Warehouse) Dropped() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.dropped...)
}

// Mentions returns the statements that contain s.
func (w *Warehouse) Mentions(s string) []string {
	var out []string
	for _, stmt := range w.Statements() {
		if strings.Contains(stmt, s) {
			out = append(out, stmt)
		}
	}
	return out
}

var _ warehouse.Warehouse = (*Warehouse)(nil)
