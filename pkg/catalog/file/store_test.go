package file

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"recordkeeper-hq/keeper/pkg/catalog"
	"recordkeeper-hq/keeper/pkg/retention"
)

const sampleDocument = `
foreign_keys:
  - fk_table: sales.order_items
    fk_columns: order_id
    pk_table: sales.orders
    pk_columns: order_id
groups:
  sales.orders: Sales
  sales.order_items: Sales
  ops.audit_log: Ops
policies:
  - policy_id: p-orders
    kind: scheduled
    storage_system: BQ
    entity_path: sales.orders
    grouping: true
    entity_groups: [Sales]
    policy_action: delete
    ts_column: created_at
    retention:
      value: 7
      unit: year
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(sampleDocument), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func TestStore_Load(t *testing.T) {
	ctx := context.Background()
	store, err := Open(writeSample(t))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	fks, _ := store.ForeignKeys(ctx)
	if len(fks) != 1 || fks[0].PKEntity != "sales.orders" {
		t.Errorf("ForeignKeys() = %+v", fks)
	}

	g, ok, _ := store.LookupGroup(ctx, "ops.audit_log")
	if !ok || g != "Ops" {
		t.Errorf("LookupGroup() = %q, %v", g, ok)
	}

	policies, _ := store.Policies(ctx, retention.KindScheduled, nil)
	if len(policies) != 1 {
		t.Fatalf("Policies() returned %d policies", len(policies))
	}
	p := policies[0]
	if p.EntityName != "orders" || p.Retention.Value != 7 || p.Retention.Unit != retention.UnitYear {
		t.Errorf("policy = %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("loaded policy invalid: %v", err)
	}
}

func TestStore_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "catalog.yaml")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() on missing file failed: %v", err)
	}

	ctx := context.Background()
	if err := store.AssignGroup(ctx, "s.orders", "Sales"); err != nil {
		t.Fatalf("AssignGroup() failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("catalog file not created: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if g, ok, _ := reopened.LookupGroup(ctx, "s.orders"); !ok || g != "Sales" {
		t.Errorf("LookupGroup() after reopen = %q, %v", g, ok)
	}
}

func TestStore_Writes(t *testing.T) {
	ctx := context.Background()
	path := writeSample(t)
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	err = store.SaveForeignKeys(ctx, []catalog.ForeignKey{
		{PKEntity: "sales.orders_v2", FKEntity: "sales.order_items", PKColumns: "id", FKColumns: "order_id"},
		{PKEntity: "sales.customers", FKEntity: "sales.orders", PKColumns: "id", FKColumns: "customer_id"},
	})
	if err != nil {
		t.Fatalf("SaveForeignKeys() failed: %v", err)
	}

	p := &retention.Policy{
		Kind: retention.KindOnDemand, StorageSystem: retention.StorageBQ, EntityPath: "sales.customers",
		Action: retention.ActionDelete, FilterExpression: "id = 1",
		SoftDelete: retention.Period{Value: 0, Unit: retention.UnitDay},
	}
	if err := store.PutPolicy(ctx, p); err != nil {
		t.Fatalf("PutPolicy() failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	fks, _ := reopened.ForeignKeys(ctx)
	if len(fks) != 2 || fks[0].PKEntity != "sales.orders_v2" {
		t.Errorf("ForeignKeys() after save = %+v", fks)
	}
	onDemand, _ := reopened.Policies(ctx, retention.KindOnDemand, []string{p.ID})
	if len(onDemand) != 1 || onDemand[0].FilterExpression != "id = 1" {
		t.Errorf("Policies(on-demand) = %+v", onDemand)
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := writeSample(t)
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	w, err := NewWatcher(store, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	go w.Watch(ctx, func() { reloads.Add(1) })
	time.Sleep(50 * time.Millisecond)

	updated := sampleDocument + "  - policy_id: p-extra\n    kind: scheduled\n    storage_system: BQ\n    entity_path: sales.order_items\n    policy_action: delete\n    ts_column: ts\n    retention: {value: 1, unit: day}\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite catalog: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for reloads.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if reloads.Load() == 0 {
		t.Fatal("watcher did not reload the catalog")
	}

	policies, _ := store.Policies(context.Background(), retention.KindScheduled, nil)
	if len(policies) != 2 {
		t.Errorf("Policies() after reload = %d, want 2", len(policies))
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
}

func TestDebouncer_CollapsesBursts(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	for i := 0; i < 5; i++ {
		d.Trigger(func() { calls.Add(1) })
	}
	time.Sleep(100 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("callback ran %d times, want 1", got)
	}
}
