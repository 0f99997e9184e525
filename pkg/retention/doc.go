// Package retention defines the domain model of the keeper retention engine:
// retention policies, their actions and periods, and the error taxonomy shared
// by every component that applies them.
//
// # Policies
//
// A Policy targets one entity (a warehouse table or an object-store folder)
// and carries either a retention window (scheduled policies) or a soft-delete
// period and filter expression (on-demand policies):
//
//	policy := &retention.Policy{
//	    ID:              "p-orders",
//	    Kind:            retention.KindScheduled,
//	    StorageSystem:   retention.StorageBQ,
//	    EntityPath:      "sales.orders",
//	    Grouping:        true,
//	    EntityGroups:    []string{"Sales"},
//	    Action:          retention.ActionDelete,
//	    TimestampColumn: "created_at",
//	    Retention:       retention.Period{Value: 7, Unit: retention.UnitYear},
//	}
//
// When Grouping is set, the action cascades to related entities whose group is
// one of EntityGroups. The cascade itself lives in the cascade subpackage; the
// graph, filter, action and jobs subpackages provide its building blocks.
//
// # Errors
//
// Failures are classified so that a multi-policy batch is never terminated by
// a single failing step:
//
//   - ConfigurationError aborts a run before any mutation.
//   - QueryExecutionError abandons the current cascade step or policy.
//   - JobPreconditionError is logged and treated as a skipped job.
//   - UnsupportedJoinError abandons a step whose join key spans several columns.
//
// A step whose candidate-row count is zero is not an error; it is reported as a
// skipped Outcome.
package retention
