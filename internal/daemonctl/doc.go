// Package daemonctl manages the background open-buckets process through a
// PID file in the working directory.
//
// Start re-executes the current binary in a new session with
// OPEN_BUCKETS_DAEMON=1 and records the child PID once it has survived a
// short startup window. Stop sends SIGTERM and waits briefly; a process that
// ignores the signal is reported, never force-killed. A gofrs/flock lock
// beside the PID file serializes concurrent start attempts.
package daemonctl
