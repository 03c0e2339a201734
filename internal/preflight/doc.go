// Package preflight provides readiness checks for the watch directories and
// external search tools open-buckets depends on.
//
// The CLI validates watch directories with CheckWatchDirectory before
// starting a session, and the "status" command renders RunAll results.
// Checks never fail the daemon: a missing search tool degrades to zero
// matches at search time.
package preflight
