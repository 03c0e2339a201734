// Package deps reports whether the external binaries open-buckets shells out
// to are present on PATH.
package deps
