package cascade

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"recordkeeper-hq/keeper/internal/retentiontest"
	"recordkeeper-hq/keeper/pkg/archive"
	"recordkeeper-hq/keeper/pkg/catalog"
	"recordkeeper-hq/keeper/pkg/catalog/storage"
	"recordkeeper-hq/keeper/pkg/config"
	"recordkeeper-hq/keeper/pkg/retention"
	"recordkeeper-hq/keeper/pkg/retention/action"
	"recordkeeper-hq/keeper/pkg/retention/jobs"
	"recordkeeper-hq/keeper/pkg/telemetry/metrics"
)

var fixedNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

var datasets = action.Datasets{Native: "sales", Tombstone: "tombstone", Temp: "staging", External: "external"}

const ordersWindow = "created_at < timestamp(datetime_sub(current_datetime(), interval 7 year))"

// salesCatalog holds orders with a Sales neighbor (order_items) and an Ops
// neighbor (audit_log).
func salesCatalog(t *testing.T, policies ...*retention.Policy) *storage.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	fks := []catalog.ForeignKey{
		{PKEntity: "sales.orders", FKEntity: "sales.order_items", PKColumns: "order_id", FKColumns: "order_id"},
		{PKEntity: "sales.orders", FKEntity: "sales.audit_log", PKColumns: "order_id", FKColumns: "order_ref"},
	}
	if err := store.SaveForeignKeys(ctx, fks); err != nil {
		t.Fatalf("SaveForeignKeys: %v", err)
	}
	for path, group := range map[string]string{
		"sales.orders":      "Sales",
		"sales.order_items": "Sales",
		"sales.audit_log":   "Ops",
	} {
		if err := store.AssignGroup(ctx, path, group); err != nil {
			t.Fatalf("AssignGroup: %v", err)
		}
	}
	for _, p := range policies {
		if err := store.PutPolicy(ctx, p); err != nil {
			t.Fatalf("PutPolicy: %v", err)
		}
	}
	return store
}

func scheduledPolicy(id string, a retention.Action) *retention.Policy {
	return &retention.Policy{
		ID:              id,
		Kind:            retention.KindScheduled,
		StorageSystem:   retention.StorageBQ,
		EntityPath:      "sales.orders",
		Grouping:        true,
		EntityGroups:    []string{"Sales"},
		Action:          a,
		TimestampColumn: "created_at",
		Retention:       retention.Period{Value: 7, Unit: retention.UnitYear},
	}
}

func newWarehouse() *retentiontest.Warehouse {
	wh := retentiontest.NewWarehouse()
	wh.Columns["sales.orders.created_at"] = "TIMESTAMP"
	return wh
}

func newEngine(store catalog.Reader, wh *retentiontest.Warehouse, opts ...Option) *Engine {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(store, wh, datasets, opts...)
}

func archiveSettings() action.ArchiveSettings {
	return action.ArchiveSettings{Layout: archive.GCSLayout("archive"), Format: archive.FormatParquet, Compression: archive.CompressionSnappy}
}

func mustRun(t *testing.T, e *Engine, mode retention.Mode) *Report {
	t.Helper()
	report, err := e.Run(context.Background(), mode, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	return report
}

func assertNoMention(t *testing.T, wh *retentiontest.Warehouse, s string) {
	t.Helper()
	if got := wh.Mentions(s); len(got) != 0 {
		t.Errorf("statements mention %s: %v", s, got)
	}
}

func TestRun_ScheduledDeleteTouchesOnlyInScopeNeighbors(t *testing.T) {
	wh := newWarehouse()
	wh.Counts["sales.orders"] = 3
	store := salesCatalog(t, scheduledPolicy("p-orders", retention.ActionDelete))

	report := mustRun(t, newEngine(store, wh), retention.ModeScheduled)

	want := []string{
		"delete from sales.order_items where order_id in (select order_id from sales.orders where " + ordersWindow + ")",
		"delete from sales.orders where " + ordersWindow,
	}
	got := wh.Execs()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("Execs =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
	assertNoMention(t, wh, "audit_log")

	pr := report.Policies[0]
	if pr.Status != StatusSuccess {
		t.Errorf("status = %s (%s)", pr.Status, pr.Error)
	}
	if len(pr.Steps) != 3 || pr.Steps[0].Action != "count" || pr.Steps[0].Rows != 3 {
		t.Errorf("steps = %+v", pr.Steps)
	}
}

func TestRun_ZeroCountArchiveIsNoOp(t *testing.T) {
	wh := newWarehouse()
	store := salesCatalog(t, scheduledPolicy("p-orders", retention.ActionArchive))

	report := mustRun(t, newEngine(store, wh, WithArchive(archiveSettings())), retention.ModeScheduled)

	if n := len(wh.Execs()); n != 0 {
		t.Errorf("Execs = %v, want none", wh.Execs())
	}
	if len(wh.Exports()) != 0 || len(wh.ExternalTables()) != 0 || len(wh.Dropped()) != 0 {
		t.Error("zero-count archive touched archive storage")
	}
	assertNoMention(t, wh, "order_items")
	if pr := report.Policies[0]; pr.Status != StatusSkipped || pr.Reason != action.ReasonNoRows {
		t.Errorf("policy = %+v", pr)
	}
}

func TestRun_ArchiveThenDelete(t *testing.T) {
	wh := newWarehouse()
	wh.Counts["sales.orders"] = 3
	wh.Counts["sales.order_items"] = 7
	store := salesCatalog(t, scheduledPolicy("p-orders", retention.ActionArchive))

	report := mustRun(t, newEngine(store, wh, WithArchive(archiveSettings())), retention.ModeScheduled)

	if pr := report.Policies[0]; pr.Status != StatusSuccess {
		t.Fatalf("status = %s (%s)", pr.Status, pr.Error)
	}
	exports := wh.Exports()
	if len(exports) != 2 || exports[0].Table != "staging.orders" || exports[1].Table != "staging.order_items" {
		t.Errorf("exports = %+v", exports)
	}
	if uri := exports[0].Target.URI; uri != "gs://archive/orders/2024-06-01-00-00-00.parquet" {
		t.Errorf("orders archive URI = %s", uri)
	}
	ext := wh.ExternalTables()
	if len(ext) != 2 || ext[0] != "external.orders" || ext[1] != "external.order_items" {
		t.Errorf("external tables = %v", ext)
	}

	execs := wh.Execs()
	last := execs[len(execs)-2:]
	if !strings.HasPrefix(last[0], "delete from sales.order_items where order_id in") ||
		!strings.HasPrefix(last[1], "delete from sales.orders where") {
		t.Errorf("deletes = %v", last)
	}
	assertNoMention(t, wh, "audit_log")
}

func TestRun_RelatedFailureLeavesSourceUnchanged(t *testing.T) {
	wh := newWarehouse()
	wh.Counts["sales.orders"] = 3
	wh.Errors["delete from sales.order_items"] = errors.New("quota exceeded")
	store := salesCatalog(t, scheduledPolicy("p-orders", retention.ActionDelete))

	report := mustRun(t, newEngine(store, wh), retention.ModeScheduled)

	assertNoMention(t, wh, "delete from sales.orders")
	pr := report.Policies[0]
	if pr.Status != StatusFailed || pr.Error != errRelatedFailed.Error() {
		t.Errorf("policy = %+v", pr)
	}
	if pr.Steps[1].Error == "" {
		t.Errorf("failed step not recorded: %+v", pr.Steps)
	}
}

func TestRun_ArchiveFailurePreventsDelete(t *testing.T) {
	wh := newWarehouse()
	wh.Counts["sales.orders"] = 3
	wh.Errors["create table staging.orders"] = errors.New("permission denied")
	store := salesCatalog(t, scheduledPolicy("p-orders", retention.ActionArchive))

	report := mustRun(t, newEngine(store, wh, WithArchive(archiveSettings())), retention.ModeScheduled)

	assertNoMention(t, wh, "delete from")
	if pr := report.Policies[0]; pr.Status != StatusFailed {
		t.Errorf("status = %s", pr.Status)
	}
}

func TestRun_PolicyFailureIsIsolated(t *testing.T) {
	wh := newWarehouse()
	wh.Columns["crm.customers.updated_at"] = "DATE"
	wh.Counts["sales.orders"] = 3
	wh.Counts["crm.customers"] = 2
	wh.Errors["delete from sales.orders"] = errors.New("backend unavailable")

	orders := scheduledPolicy("p-orders", retention.ActionDelete)
	orders.Grouping, orders.EntityGroups = false, nil
	customers := &retention.Policy{
		ID:              "p-customers",
		Kind:            retention.KindScheduled,
		StorageSystem:   retention.StorageBQ,
		EntityPath:      "crm.customers",
		Action:          retention.ActionDelete,
		TimestampColumn: "updated_at",
		Retention:       retention.Period{Value: 30, Unit: retention.UnitDay},
	}
	store := salesCatalog(t, orders, customers)

	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Namespace: "test", Subsystem: "keeper"}, nil)
	report, err := newEngine(store, wh, WithMetrics(collector)).Run(context.Background(), retention.ModeScheduled, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(report.Policies) != 2 {
		t.Fatalf("policies = %d, want 2", len(report.Policies))
	}
	// Policies run in entity-name order.
	if report.Policies[0].PolicyID != "p-customers" || report.Policies[0].Status != StatusSuccess {
		t.Errorf("customers = %+v", report.Policies[0])
	}
	if report.Policies[1].PolicyID != "p-orders" || report.Policies[1].Status != StatusFailed {
		t.Errorf("orders = %+v", report.Policies[1])
	}
	if report.Status() != "partial" {
		t.Errorf("Status() = %s, want partial", report.Status())
	}
	if got := len(wh.Mentions("delete from crm.customers where updated_at < date_sub(current_date(), interval 30 day)")); got != 1 {
		t.Errorf("customers delete issued %d times", got)
	}

	if n, err := testutil.GatherAndCount(collector.Registry(), "test_keeper_policies_total"); err != nil || n != 2 {
		t.Errorf("policies_total series = %d (%v), want 2", n, err)
	}
	if n, err := testutil.GatherAndCount(collector.Registry(), "test_keeper_runs_total"); err != nil || n != 1 {
		t.Errorf("runs_total series = %d (%v), want 1", n, err)
	}
}

func TestRun_OnDemandCycleSoftDeletesEachEntityOnce(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.SaveForeignKeys(ctx, []catalog.ForeignKey{
		{PKEntity: "s.a", FKEntity: "s.b", PKColumns: "id", FKColumns: "a_id"},
		{PKEntity: "s.b", FKEntity: "s.c", PKColumns: "id", FKColumns: "b_id"},
		{PKEntity: "s.c", FKEntity: "s.a", PKColumns: "id", FKColumns: "c_id"},
	})
	for _, path := range []string{"s.a", "s.b", "s.c"} {
		store.AssignGroup(ctx, path, "G")
	}
	store.PutPolicy(ctx, &retention.Policy{
		ID:               "p-a",
		Kind:             retention.KindOnDemand,
		StorageSystem:    retention.StorageBQ,
		EntityPath:       "s.a",
		Grouping:         true,
		EntityGroups:     []string{"G"},
		Action:           retention.ActionDelete,
		FilterExpression: "id = 1",
		SoftDelete:       retention.Period{Value: 30, Unit: retention.UnitDay},
	})

	wh := newWarehouse()
	wh.StrictTables = true
	wh.Counts["s.a"] = 1
	wh.Counts["s.b"] = 2
	wh.Counts["s.c"] = 4

	report := mustRun(t, newEngine(store, wh), retention.ModeOnDemand)
	if pr := report.Policies[0]; pr.Status != StatusSuccess {
		t.Fatalf("status = %s (%s)", pr.Status, pr.Error)
	}

	for _, table := range []string{"tombstone.a", "tombstone.b", "tombstone.c"} {
		if got := len(wh.Mentions("create table " + table + " as")); got != 1 {
			t.Errorf("%s created %d times, want 1", table, got)
		}
		if got := len(wh.Mentions("delete from " + table + " where purge_date <= date '2024-06-01'")); got != 1 {
			t.Errorf("%s purged %d times, want 1", table, got)
		}
	}

	today := "softdelete_date = date '2024-06-01'"
	wantOrder := []string{
		// b is scoped against the live source.
		"create table tombstone.b as select *, date '2024-06-01' as softdelete_date, date '2024-07-01' as purge_date from s.b where a_id in (select distinct id from s.a where id = 1)",
		"delete from s.b where a_id in (select a_id from tombstone.b where " + today + ")",
		"delete from tombstone.b where purge_date <= date '2024-06-01'",
		// c is scoped against b's tombstone batch.
		"create table tombstone.c as select *, date '2024-06-01' as softdelete_date, date '2024-07-01' as purge_date from s.c where b_id in (select distinct id from tombstone.b where " + today + ")",
		"delete from s.c where b_id in (select b_id from tombstone.c where " + today + ")",
		"delete from tombstone.c where purge_date <= date '2024-06-01'",
		// The source goes last.
		"create table tombstone.a as select *, date '2024-06-01' as softdelete_date, date '2024-07-01' as purge_date from s.a where id = 1",
		"delete from s.a where id = 1",
		"delete from tombstone.a where purge_date <= date '2024-06-01'",
	}
	got := wh.Execs()
	if strings.Join(got, "\n") != strings.Join(wantOrder, "\n") {
		t.Errorf("Execs =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(wantOrder, "\n"))
	}
}

func TestRun_OnDemandZeroMatchSkipsTraversal(t *testing.T) {
	p := &retention.Policy{
		ID:               "p-orders",
		Kind:             retention.KindOnDemand,
		StorageSystem:    retention.StorageBQ,
		EntityPath:       "sales.orders",
		Grouping:         true,
		EntityGroups:     []string{"Sales"},
		Action:           retention.ActionDelete,
		FilterExpression: "customer_id = 42",
		SoftDelete:       retention.Period{Value: 0, Unit: retention.UnitDay},
	}
	wh := newWarehouse()
	report := mustRun(t, newEngine(salesCatalog(t, p), wh), retention.ModeOnDemand)

	if stmts := wh.Statements(); len(stmts) != 1 {
		t.Errorf("statements = %v, want only the source count", stmts)
	}
	if report.Policies[0].Status != StatusSkipped {
		t.Errorf("status = %s", report.Policies[0].Status)
	}
}

// chainCatalog holds s.a <- s.b <- s.c, all in group G, and policies.
func chainCatalog(t *testing.T, policies ...*retention.Policy) *storage.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	if err := store.SaveForeignKeys(ctx, []catalog.ForeignKey{
		{PKEntity: "s.a", FKEntity: "s.b", PKColumns: "id", FKColumns: "a_id"},
		{PKEntity: "s.b", FKEntity: "s.c", PKColumns: "id", FKColumns: "b_id"},
	}); err != nil {
		t.Fatalf("SaveForeignKeys: %v", err)
	}
	for _, path := range []string{"s.a", "s.b", "s.c"} {
		if err := store.AssignGroup(ctx, path, "G"); err != nil {
			t.Fatalf("AssignGroup: %v", err)
		}
	}
	for _, p := range policies {
		if err := store.PutPolicy(ctx, p); err != nil {
			t.Fatalf("PutPolicy: %v", err)
		}
	}
	return store
}

func onDemandPolicy(id, path string, groups ...string) *retention.Policy {
	return &retention.Policy{
		ID:               id,
		Kind:             retention.KindOnDemand,
		StorageSystem:    retention.StorageBQ,
		EntityPath:       path,
		Grouping:         len(groups) > 0,
		EntityGroups:     groups,
		Action:           retention.ActionDelete,
		FilterExpression: "id = 1",
		SoftDelete:       retention.Period{Value: 30, Unit: retention.UnitDay},
	}
}

func TestRun_OnDemandZeroMatchNeighborEndsBranch(t *testing.T) {
	wh := newWarehouse()
	wh.StrictTables = true
	wh.Counts["s.a"] = 1
	wh.Counts["s.b"] = 0
	wh.Counts["s.c"] = 5

	report := mustRun(t, newEngine(chainCatalog(t, onDemandPolicy("p-a", "s.a", "G")), wh), retention.ModeOnDemand)

	pr := report.Policies[0]
	if pr.Status != StatusSuccess {
		t.Fatalf("status = %s (%s)", pr.Status, pr.Error)
	}
	assertNoMention(t, wh, "s.c")
	assertNoMention(t, wh, "tombstone.b")

	want := []string{
		"create table tombstone.a as select *, date '2024-06-01' as softdelete_date, date '2024-07-01' as purge_date from s.a where id = 1",
		"delete from s.a where id = 1",
		"delete from tombstone.a where purge_date <= date '2024-06-01'",
	}
	got := wh.Execs()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("Execs =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}

	var skippedB bool
	for _, step := range pr.Steps {
		if step.Entity == "s.b" && step.Action == "softdelete" && step.Skipped && step.Reason == action.ReasonNoRows {
			skippedB = true
		}
		if step.Error != "" {
			t.Errorf("step %+v failed", step)
		}
	}
	if !skippedB {
		t.Errorf("steps = %+v, want s.b soft-delete skipped with no rows", pr.Steps)
	}
}

func TestRun_OnDemandNeighborFailureContinuesSiblings(t *testing.T) {
	wh := newWarehouse()
	wh.Counts["sales.orders"] = 1
	wh.Counts["sales.order_items"] = 2
	wh.Counts["sales.audit_log"] = 1
	wh.Errors["create table tombstone.order_items"] = errors.New("quota exceeded")
	p := onDemandPolicy("p-orders", "sales.orders", "Sales", "Ops")

	report := mustRun(t, newEngine(salesCatalog(t, p), wh), retention.ModeOnDemand)

	pr := report.Policies[0]
	if pr.Status != StatusFailed || pr.Error != errRelatedFailed.Error() {
		t.Errorf("policy = %+v", pr)
	}
	if got := len(wh.Mentions("create table tombstone.audit_log as")); got != 1 {
		t.Errorf("audit_log soft-deleted %d times after order_items failed, want 1", got)
	}
	assertNoMention(t, wh, "delete from sales.orders")
	assertNoMention(t, wh, "tombstone.orders")
}

func TestRun_NegativeSoftDeletePeriodPurgesSameDay(t *testing.T) {
	wh := newWarehouse()
	wh.Counts["s.x"] = 1
	wh.Counts["s.y"] = 1
	neg := onDemandPolicy("p-neg", "s.x")
	neg.SoftDelete = retention.Period{Value: -1, Unit: retention.UnitDay}
	valid := onDemandPolicy("p-ok", "s.y")

	report := mustRun(t, newEngine(salesCatalog(t, neg, valid), wh), retention.ModeOnDemand)

	if len(report.Policies) != 2 {
		t.Fatalf("policies = %+v, want both", report.Policies)
	}
	for _, pr := range report.Policies {
		if pr.Status != StatusSuccess {
			t.Errorf("%s status = %s (%s)", pr.PolicyID, pr.Status, pr.Error)
		}
	}
	copyX := "create table tombstone.x as select *, date '2024-06-01' as softdelete_date, date '2024-05-31' as purge_date from s.x where id = 1"
	if got := len(wh.Mentions(copyX)); got != 1 {
		t.Errorf("statements = %v, want %q", wh.Statements(), copyX)
	}
	if got := len(wh.Mentions("delete from tombstone.x where purge_date <= date '2024-06-01'")); got != 1 {
		t.Errorf("tombstone.x purged %d times, want 1", got)
	}
}

// countingReader counts relationship loads.
type countingReader struct {
	*storage.MemoryStore
	fkCalls int
}

func (r *countingReader) ForeignKeys(ctx context.Context) ([]catalog.ForeignKey, error) {
	r.fkCalls++
	return r.MemoryStore.ForeignKeys(ctx)
}

func TestRun_GraphBuiltOnlyForGroupingPolicies(t *testing.T) {
	tests := []struct {
		name     string
		grouping bool
		want     int
	}{
		{"ungrouped", false, 0},
		{"grouped", true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := scheduledPolicy("p-orders", retention.ActionDelete)
			if !tt.grouping {
				p.Grouping, p.EntityGroups = false, nil
			}
			reader := &countingReader{MemoryStore: salesCatalog(t, p)}
			wh := newWarehouse()
			wh.Counts["sales.orders"] = 3

			mustRun(t, newEngine(reader, wh), retention.ModeScheduled)

			if reader.fkCalls != tt.want {
				t.Errorf("ForeignKeys calls = %d, want %d", reader.fkCalls, tt.want)
			}
		})
	}
}

func TestRun_ObjectStoreDelete(t *testing.T) {
	p := &retention.Policy{
		ID:              "p-lake",
		Kind:            retention.KindScheduled,
		StorageSystem:   retention.StorageGCS,
		EntityPath:      "lake/orders",
		Grouping:        true,
		EntityGroups:    []string{"Sales"},
		Action:          retention.ActionDelete,
		TimestampColumn: "created_at",
		Retention:       retention.Period{Value: 7, Unit: retention.UnitYear},
	}
	wh := retentiontest.NewWarehouse()
	wh.Columns["sales.orders.created_at"] = "DATE"
	wh.Counts["external.orders"] = 2
	wh.Results["select distinct order_id as id from external.orders"] = [][]any{{int64(10)}, {int64(11)}}

	backend := &retentiontest.JobBackend{}
	dispatcher := jobs.NewDispatcher(backend, jobs.Template{MainFile: "gs://scripts/delete.py", Properties: jobs.DefaultProperties()})
	engine := newEngine(salesCatalog(t, p), wh, WithObjectStore(dispatcher, "lake", "PARQUET"))

	report := mustRun(t, engine, retention.ModeScheduled)
	if pr := report.Policies[0]; pr.Status != StatusSuccess {
		t.Fatalf("status = %s (%s)", pr.Status, pr.Error)
	}

	subs := backend.Submissions()
	if len(subs) != 2 {
		t.Fatalf("submissions = %d, want 2", len(subs))
	}
	if subs[0].Name != "delete-order_items" ||
		strings.Join(subs[0].Payload.Args, " ") != "--entity_path=lake/order_items --file_format=parquet --sql_filter_exp=order_id in (10, 11)" {
		t.Errorf("related job = %+v", subs[0])
	}
	if subs[1].Name != "delete-orders" ||
		strings.Join(subs[1].Payload.Args, " ") != "--entity_path=lake/orders --file_format=parquet --ts_column=created_at --ts_value=2017-06-01" {
		t.Errorf("source job = %+v", subs[1])
	}
	assertNoMention(t, wh, "audit_log")
	if n := len(wh.Execs()); n != 0 {
		t.Errorf("object-store delete executed warehouse statements: %v", wh.Execs())
	}
}

func TestRun_UnsupportedCombinationSkipped(t *testing.T) {
	p := &retention.Policy{
		ID:               "p-lake",
		Kind:             retention.KindOnDemand,
		StorageSystem:    retention.StorageGCS,
		EntityPath:       "lake/orders",
		Action:           retention.ActionDelete,
		FilterExpression: "id = 1",
		SoftDelete:       retention.Period{Value: 1, Unit: retention.UnitDay},
	}
	wh := newWarehouse()
	report := mustRun(t, newEngine(salesCatalog(t, p), wh), retention.ModeOnDemand)

	if report.Policies[0].Status != StatusUnsupported {
		t.Errorf("status = %s", report.Policies[0].Status)
	}
	if n := len(wh.Statements()); n != 0 {
		t.Errorf("statements = %v", wh.Statements())
	}
	if report.Status() != "success" {
		t.Errorf("Status() = %s", report.Status())
	}
}

func TestRun_ConfigurationErrorAbortsBeforeMutation(t *testing.T) {
	wh := newWarehouse()
	wh.Counts["sales.orders"] = 3
	store := salesCatalog(t,
		scheduledPolicy("p-delete", retention.ActionDelete),
		scheduledPolicy("p-archive", retention.ActionArchive),
	)

	_, err := newEngine(store, wh).Run(context.Background(), retention.ModeScheduled, nil)
	if !retention.IsConfigurationError(err) {
		t.Fatalf("Run() error = %v, want configuration error", err)
	}
	if n := len(wh.Statements()); n != 0 {
		t.Errorf("statements = %v, want none", wh.Statements())
	}
}

func TestRun_PolicyIDFilter(t *testing.T) {
	wh := newWarehouse()
	wh.Counts["sales.orders"] = 3
	other := scheduledPolicy("p-other", retention.ActionDelete)
	other.EntityPath = "sales.returns"
	store := salesCatalog(t, scheduledPolicy("p-orders", retention.ActionDelete), other)

	report, err := newEngine(store, wh).Run(context.Background(), retention.ModeScheduled, []string{"p-orders"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(report.Policies) != 1 || report.Policies[0].PolicyID != "p-orders" {
		t.Errorf("policies = %+v", report.Policies)
	}
	assertNoMention(t, wh, "sales.returns")
}

func TestRun_DryRunIssuesNoMutations(t *testing.T) {
	wh := newWarehouse()
	wh.Counts["sales.orders"] = 3
	store := salesCatalog(t, scheduledPolicy("p-orders", retention.ActionDelete))

	report := mustRun(t, newEngine(store, wh, WithDryRun(true)), retention.ModeScheduled)

	if n := len(wh.Execs()); n != 0 {
		t.Errorf("dry run executed %v", wh.Execs())
	}
	if !report.DryRun {
		t.Error("report not marked dry run")
	}
	for _, s := range report.Policies[0].Steps[1:] {
		if !s.Skipped || s.Reason != action.ReasonDryRun {
			t.Errorf("step = %+v, want dry-run skip", s)
		}
	}
}

func TestValidate_ReportsEveryInvalidPolicy(t *testing.T) {
	wh := newWarehouse()
	broken := scheduledPolicy("p-broken", retention.ActionDelete)
	broken.TimestampColumn = ""
	store := salesCatalog(t,
		scheduledPolicy("p-delete", retention.ActionDelete),
		scheduledPolicy("p-archive", retention.ActionArchive),
		broken,
	)

	policies, errs, err := newEngine(store, wh).Validate(context.Background(), retention.ModeScheduled)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if len(policies) != 3 {
		t.Errorf("policies = %d, want 3", len(policies))
	}
	if len(errs) != 2 {
		t.Fatalf("errors = %v, want 2 (archive without destination, missing ts_column)", errs)
	}
	for _, e := range errs {
		if !retention.IsConfigurationError(e) {
			t.Errorf("error %v is not a configuration error", e)
		}
	}
	if n := len(wh.Statements()); n != 0 {
		t.Errorf("statements = %v, want none", wh.Statements())
	}
}
