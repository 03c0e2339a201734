// Package logging assembles structured slog loggers and formatting helpers used
// across open-buckets.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with drop IDs and stage names. Logs default to stderr so assembled
// reports on stdout stay clean. A no-op logger is provided for tests.
package logging
