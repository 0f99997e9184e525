// Package catalog holds the metadata the retention engine reads: foreign-key
// relationships between entities, entity group assignments, and retention
// policies.
//
// The engine depends only on the read contracts (RelationshipStore,
// GroupStore, PolicyStore). Writers are used by the command line to maintain
// the catalog. Backends live in subpackages:
//
//   - storage: in-memory and SQLite stores
//   - file:    a YAML document on disk, optionally watched for changes
//   - git:     a YAML document kept in a Git repository
//
// Foreign keys are authored as SQL statements:
//
//	ALTER TABLE sales.order_items ADD FOREIGN KEY (order_id) REFERENCES sales.orders(order_id);
//
// ParseForeignKeyStatements turns such a list into ForeignKey records and
// FormatForeignKeyStatements renders records back.
package catalog
