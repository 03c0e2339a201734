// Package config resolves the layered include/exclude configuration that
// drives context assembly, plus process-wide runtime settings.
//
// A dropped file's effective Config is built from built-in defaults, the
// global profile, the project's .bucket-include.toml, and at most one
// extension-specific skill file. Layers are TOML. Files that are missing or
// unparseable count as empty, so resolution always succeeds; the Resolved
// provenance records which layers were consulted for diagnostics.
//
// Settings carry logging, debounce and search timeouts read from
// OPEN_BUCKETS_* environment variables.
package config
