package sqldb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordkeeper-hq/keeper/pkg/archive"
	"recordkeeper-hq/keeper/pkg/warehouse"
)

// TestSQLite_AttachedDatasets runs against a real SQLite engine with one
// attached file per dataset.
func TestSQLite_AttachedDatasets(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	w, err := Open(ctx, Config{
		Driver: SQLite,
		DSN:    ":memory:",
		Attach: map[string]string{
			"sales": filepath.Join(dir, "sales.db"),
			"tomb":  filepath.Join(dir, "tomb.db"),
		},
	})
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Exec(ctx, "create table sales.orders (id integer primary key, created_at TIMESTAMP, status text)")
	require.NoError(t, err)
	_, err = w.Exec(ctx, "insert into sales.orders values (1, '2020-01-01 00:00:00', 'old'), (2, datetime('now'), 'new')")
	require.NoError(t, err)

	ok, err := w.TableExists(ctx, "sales.orders")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = w.TableExists(ctx, "tomb.orders")
	require.NoError(t, err)
	assert.False(t, ok)

	typ, err := w.ColumnType(ctx, "sales.orders", "created_at")
	require.NoError(t, err)
	assert.Equal(t, "TIMESTAMP", typ)

	n, err := warehouse.Count(ctx, w, "sales.orders", "created_at < datetime('now', '-1 years')")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = w.Exec(ctx, "create table tomb.orders as select *, '2024-06-01' as softdelete_date from sales.orders where id = 1")
	require.NoError(t, err)
	deleted, err := w.Exec(ctx, "delete from sales.orders where id in (select distinct id from tomb.orders where softdelete_date = '2024-06-01')")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	uri := filepath.Join(dir, "archive", "orders", "export.json")
	require.NoError(t, w.Export(ctx, "tomb.orders", warehouse.ExportTarget{URI: uri, Format: archive.FormatJSON}))
	require.NoError(t, w.CreateExternalTable(ctx, "ext.orders", archive.FormatJSON, []string{uri}))

	require.NoError(t, w.DropTable(ctx, "tomb.orders"))
	ok, err = w.TableExists(ctx, "tomb.orders")
	require.NoError(t, err)
	assert.False(t, ok)
}
