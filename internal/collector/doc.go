// Package collector gathers the related files named by a resolved
// configuration's include patterns.
//
// Patterns are doublestar globs evaluated against slash-separated paths
// relative to the base directory. Exclusion always wins over inclusion, the
// baseline denylist is applied even when the caller omits it, and symlinks are
// never followed. Every returned path is an existing, readable regular file
// within the configured size limit.
package collector
