// Package file implements a catalog kept in a single YAML document.
//
// The document layout is:
//
//	foreign_keys:
//	  - fk_table: sales.order_items
//	    fk_columns: order_id
//	    pk_table: sales.orders
//	    pk_columns: order_id
//	groups:
//	  sales.orders: Sales
//	  sales.order_items: Sales
//	policies:
//	  - policy_id: p-orders
//	    kind: scheduled
//	    ...
//
// A Watcher reloads the Store when the document changes on disk.
package file
