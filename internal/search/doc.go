// Package search runs pattern searches over configured directories using an
// external tool, preferring ripgrep and falling back to grep.
//
// Searches are sequential: directories in the order given, patterns in
// configured order. Each tool invocation runs under its own timeout that is
// detached from caller cancellation, so a call already started is allowed to
// finish; cancellation is observed only between invocations. Tool failures
// degrade to zero matches for that pattern and are logged.
package search
