package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"recordkeeper-hq/keeper/pkg/catalog"
	"recordkeeper-hq/keeper/pkg/retention"
)

// storeFactories runs each contract test against every backend.
func storeFactories(t *testing.T) map[string]func() catalog.Store {
	return map[string]func() catalog.Store{
		"memory": func() catalog.Store { return NewMemoryStore() },
		"sqlite": func() catalog.Store {
			s, err := NewSQLiteStore(&SQLiteConfig{
				Path:        filepath.Join(t.TempDir(), "catalog.db"),
				BusyTimeout: time.Second,
			})
			if err != nil {
				t.Fatalf("NewSQLiteStore() failed: %v", err)
			}
			return s
		},
	}
}

func TestStore_ForeignKeys(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer store.Close()

			first := []catalog.ForeignKey{
				{PKEntity: "s.orders", FKEntity: "s.items", PKColumns: "id", FKColumns: "order_id"},
				{PKEntity: "s.customers", FKEntity: "s.orders", PKColumns: "id", FKColumns: "customer_id"},
			}
			if err := store.SaveForeignKeys(ctx, first); err != nil {
				t.Fatalf("SaveForeignKeys() failed: %v", err)
			}

			// Same id replaces the record in place.
			replaced := catalog.ForeignKey{PKEntity: "s.orders_v2", FKEntity: "s.items", PKColumns: "id", FKColumns: "order_id"}
			if err := store.SaveForeignKeys(ctx, []catalog.ForeignKey{replaced}); err != nil {
				t.Fatalf("SaveForeignKeys() failed: %v", err)
			}

			got, err := store.ForeignKeys(ctx)
			if err != nil {
				t.Fatalf("ForeignKeys() failed: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("got %d foreign keys, want 2", len(got))
			}
			if got[0] != replaced {
				t.Errorf("got[0] = %+v, want %+v", got[0], replaced)
			}
			if got[1] != first[1] {
				t.Errorf("got[1] = %+v, want %+v", got[1], first[1])
			}
		})
	}
}

func TestStore_Groups(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer store.Close()

			if _, ok, err := store.LookupGroup(ctx, "s.orders"); err != nil || ok {
				t.Fatalf("LookupGroup() on empty store = ok %v, err %v", ok, err)
			}

			for path, g := range map[string]string{"s.orders": "Sales", "s.audit": "Ops"} {
				if err := store.AssignGroup(ctx, path, g); err != nil {
					t.Fatalf("AssignGroup() failed: %v", err)
				}
			}
			if err := store.AssignGroup(ctx, "s.orders", "Finance"); err != nil {
				t.Fatalf("AssignGroup() failed: %v", err)
			}

			g, ok, err := store.LookupGroup(ctx, "s.orders")
			if err != nil || !ok || g != "Finance" {
				t.Errorf("LookupGroup() = %q, %v, %v; want Finance", g, ok, err)
			}

			groups, err := store.Groups(ctx)
			if err != nil {
				t.Fatalf("Groups() failed: %v", err)
			}
			if len(groups) != 2 || groups[0].EntityPath != "s.audit" {
				t.Errorf("Groups() = %+v", groups)
			}

			if err := store.AssignGroup(ctx, "s.audit", ""); err != nil {
				t.Fatalf("AssignGroup(clear) failed: %v", err)
			}
			if _, ok, _ := store.LookupGroup(ctx, "s.audit"); ok {
				t.Error("group still assigned after clearing")
			}
		})
	}
}

func TestStore_Policies(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer store.Close()

			policies := []*retention.Policy{
				{
					ID: "p-items", Kind: retention.KindScheduled, StorageSystem: retention.StorageBQ,
					EntityPath: "s.items", Action: retention.ActionDelete, TimestampColumn: "ts",
					Retention: retention.Period{Value: 1, Unit: retention.UnitYear},
				},
				{
					ID: "p-orders", Kind: retention.KindScheduled, StorageSystem: retention.StorageBQ,
					EntityPath: "s.orders", Grouping: true, EntityGroups: []string{"Sales"},
					Action: retention.ActionArchive, TimestampColumn: "created_at",
					Retention: retention.Period{Value: 7, Unit: retention.UnitYear},
				},
				{
					Kind: retention.KindOnDemand, StorageSystem: retention.StorageBQ,
					EntityPath: "s.customers", Action: retention.ActionDelete,
					FilterExpression: "id = 7", SoftDelete: retention.Period{Value: 30, Unit: retention.UnitDay},
				},
			}
			for _, p := range policies {
				if err := store.PutPolicy(ctx, p); err != nil {
					t.Fatalf("PutPolicy() failed: %v", err)
				}
			}
			if policies[2].ID == "" {
				t.Fatal("PutPolicy() did not generate an id")
			}

			scheduled, err := store.Policies(ctx, retention.KindScheduled, nil)
			if err != nil {
				t.Fatalf("Policies() failed: %v", err)
			}
			if len(scheduled) != 2 || scheduled[0].ID != "p-items" || scheduled[1].ID != "p-orders" {
				t.Fatalf("Policies(scheduled) = %+v", scheduled)
			}
			orders := scheduled[1]
			if !orders.Grouping || len(orders.EntityGroups) != 1 || orders.EntityGroups[0] != "Sales" {
				t.Errorf("grouping fields not preserved: %+v", orders)
			}
			if orders.Retention != (retention.Period{Value: 7, Unit: retention.UnitYear}) {
				t.Errorf("Retention = %+v", orders.Retention)
			}
			if orders.EntityName != "orders" {
				t.Errorf("EntityName = %q, want orders", orders.EntityName)
			}

			byID, err := store.Policies(ctx, retention.KindScheduled, []string{"p-orders"})
			if err != nil {
				t.Fatalf("Policies(ids) failed: %v", err)
			}
			if len(byID) != 1 || byID[0].ID != "p-orders" {
				t.Errorf("Policies(ids) = %+v", byID)
			}

			onDemand, err := store.Policies(ctx, retention.KindOnDemand, nil)
			if err != nil {
				t.Fatalf("Policies(on-demand) failed: %v", err)
			}
			if len(onDemand) != 1 || onDemand[0].FilterExpression != "id = 7" {
				t.Errorf("Policies(on-demand) = %+v", onDemand)
			}
		})
	}
}
