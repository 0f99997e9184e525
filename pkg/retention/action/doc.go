// Package action implements the operations a retention policy applies to one
// entity: Archive, HardDelete, and the two-phase SoftDelete/Purge protocol.
// ObjectDelete covers object-store entities, which are deleted by external
// jobs instead of statements.
//
// Every backend follows the same contract: it receives a Target (an entity
// and the predicate selecting its rows) and returns an Outcome. A target with
// no matching rows yields a skipped Outcome and no further statements.
//
// The Runner shared by the backends wraps statement failures in
// *retention.QueryExecutionError. In dry-run mode it logs mutating
// statements instead of executing them, while counts and id lookups still
// run against live tables.
package action
