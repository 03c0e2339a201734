// Package services defines shared utilities consumed by the drop pipeline
// stages.
//
// Key responsibilities:
//   - Context helpers that stamp drop IDs, stage names, and watched
//     directories for logging.
//   - Structured error markers plus the Wrap helper so stage failures can be
//     classified when a drop degrades instead of failing.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
