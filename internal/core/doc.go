// Package core reconciles a supplier's bulk inventory sheet against the
// product catalog and commits the result to inventory.
//
// The package has no transport dependencies: the web handlers and the
// reconcile CLI drive the same [Service].
//
// # Flow
//
//  1. [ReadRows] parses the CSV and locates the header for the [ImportMode]
//  2. [Validate] turns each row into an [ImportRecord], pending or invalid
//  3. [Matcher] classifies pending records as matched, similar, new or invalid
//  4. The operator resolves similar records ([Session.Resolve], [Session.Undo]),
//     adds or removes records by hand, or edits invalid rows
//  5. [Committer] submits matched and new records to the [InventoryStore]
//     in chunks, one at a time, removing each chunk once it is stored
//
// # Matching
//
// A barcode hit is an exact match. Otherwise catalog products found by
// name/brand search are scored: +0.5 for an equal name or +0.3 for a name
// contained in the other, plus +0.3 for an equal brand or +0.2 for a
// contained brand. Names are compared lower-case with strength tokens such
// as "250mg" removed. Scores range from 0 to 0.8.
//
// # Commit
//
// Records that are similar or invalid are skipped and must be acknowledged
// before a commit starts. The first failing chunk aborts the commit; the
// [CommitResult] lists committed, failed and never-attempted records, and
// the error is a [*CommitBatchError]. Nothing is retried automatically.
//
// # Error Handling
//
// [MapError] maps errors to operator messages with support codes
// (VAL, MAT, RES, COM, SES, FILE, DB, RATE, ERR000).
package core
