// Package deleter implements the bulk record purge.
//
// A run has two phases:
//   - Enumerate: one SuiteQL query lists the ids of the target record type
//   - Fan-out: one delete request per id, at most Concurrency in flight
//
// Every id is processed exactly once. A failed delete never stops the
// remaining ones; each id ends with an Outcome, and the run ends with a
// Report aggregating them. Successful deletions print "Deleted ID <id>" to the
// configured output writer. Failures are logged through slog and reported,
// never silently dropped.
//
// A query failure aborts the run before any delete is issued.
package deleter
