// Keeper applies data-retention policies to warehouse tables and
// object-store folders.
//
// Scheduled policies archive or delete rows older than a retention window.
// On-demand policies soft-delete rows matching a filter into tombstone
// tables and purge them once the soft-delete period has elapsed. Grouped
// policies cascade the same action to related entities that share one of
// the policy's groups.
//
// Usage:
//
//	# Apply every scheduled policy
//	keeper run scheduled
//
//	# Apply two on-demand policies, printing JSON
//	keeper run d p-orders,p-customers --output json
//
//	# Show what a run would do without changing anything
//	keeper run s --dry-run
//
//	# Run both modes on their cron schedules
//	keeper schedule --metrics-addr :9090
//
//	# Load foreign keys into the catalog
//	keeper catalog fk import schema.sql
package main

import "os"

func main() {
	os.Exit(Execute())
}
