// Package ledger records pipeline runs and their per-stage results in a
// SQLite database.
//
// The ledger is an audit trail, not the source of truth for progress: resume
// decisions come from artifacts on disk. Writes retry briefly when SQLite
// reports the database as busy so concurrent CLI invocations (for example
// `mediaflow history` during a run) do not fail spuriously.
package ledger
