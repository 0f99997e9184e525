// Package cascade applies retention policies, carrying each policy's action
// to related entities of the policy's groups.
//
// Scheduled policies act on the source entity's direct neighbors only, then
// on the source. On-demand policies soft-delete transitively: a depth-first
// walk tombstones each in-scope neighbor, purges it, and continues from it,
// visiting every entity name at most once per policy. The source entity is
// always processed last.
//
// Engine.Run loads the policies of one mode, validates their configuration,
// builds the relationship graph when any policy groups, and processes the
// policies one at a time:
//
//	engine := cascade.New(store, wh, datasets,
//	    cascade.WithArchive(settings),
//	    cascade.WithObjectStore(dispatcher, "lake", "PARQUET"),
//	)
//	report, err := engine.Run(ctx, retention.ModeScheduled, nil)
//
// A failing step fails its policy but never the run. Run returns an error
// only for configuration problems and catalog read failures, before any
// statement is issued.
package cascade
