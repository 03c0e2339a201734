// Package watcher observes directories for newly dropped files and hands each
// stable file to a handler exactly once.
//
// A Session owns one fsnotify handle per directory. Create and rename events
// arm a per-path debounce timer; writes re-arm a timer that is already
// pending. When a timer fires the path must still exist as a regular file,
// otherwise the event is dropped silently. Stable drops are queued and handed
// to the handler by a single worker in drop order, so a burst of drops is
// processed one at a time.
package watcher
