// Package core validates product-import rows against an attribute schema.
//
// This package holds the validation logic independent of any transport.
// It can be used by the web handlers, by tests, or by a batch job without
// modification.
//
// # Architecture
//
//   - RowValidator: checks each attribute of a row in a fixed order
//     (applicability, requiredness, blank, empty sentinel, type, uniqueness)
//     and records Messages instead of returning errors.
//   - OptionResolver: validates select and multiselect values and creates
//     options the catalog does not know yet, through the OptionRegistrar.
//   - RunState: the DynamicOptionCache and UniquenessTracker shared by all
//     rows of one run.
//   - RunManager: opens, tracks and expires runs; caps them with a RunLimiter.
//
// # Dynamic Options
//
// The first time a run sees a select or multiselect label that is neither in
// the schema nor already created, the label is submitted to the catalog once:
//
//	v := core.NewRowValidator(core.NewRunState(), core.NewOptionRegistrar(store))
//	res := v.ValidateRow(ctx, core.RowData{"sku": "A", "color": "Teal"}, schema)
//	// "Teal" is created, and later rows with "teal" validate without a new call
//
// A failed creation is not remembered, so a later row asks again.
//
// # Error Handling
//
// Validation failures are data (ErrorKind). Operational failures (unknown
// run, database errors, bad feeds) are Go errors and are mapped to
// user-facing messages with support codes by [MapError].
package core
