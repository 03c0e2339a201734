package watcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"

	"openbuckets/internal/logging"
	"openbuckets/internal/services"
)

// ErrNoDirectories is returned by Run when no directory could be watched or
// every watched directory has gone away.
var ErrNoDirectories = errors.New("no watchable directories")

const (
	defaultDebounce    = 100 * time.Millisecond
	defaultDedupWindow = 2 * time.Second
	dedupCapacity      = 1024
)

// Drop is a file that settled in a watched directory.
type Drop struct {
	Path     string
	WatchDir string
	Size     int64
	ModTime  time.Time
}

// Handler processes one drop. Calls never overlap.
type Handler func(ctx context.Context, drop Drop)

// Option configures a Session.
type Option func(*Session)

// WithDebounce sets how long a path must stay quiet before it is checked.
func WithDebounce(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithDedupWindow sets how long an identical appearance is suppressed.
func WithDedupWindow(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.dedupWindow = d
		}
	}
}

// WithIgnore skips paths for which ignore returns true.
func WithIgnore(ignore func(path string) bool) Option {
	return func(s *Session) {
		s.ignore = ignore
	}
}

type dirEvent struct {
	dir   string
	event fsnotify.Event
}

type dirFailure struct {
	dir string
	err error
}

type fired struct {
	path string
	gen  uint64
}

type pendingDrop struct {
	dir   string
	gen   uint64
	timer *time.Timer
}

// Session watches a fixed set of directories.
type Session struct {
	logger      *slog.Logger
	dirs        []string
	handler     Handler
	debounce    time.Duration
	dedupWindow time.Duration
	ignore      func(string) bool

	events   chan dirEvent
	failures chan dirFailure
	fired    chan fired

	mu      sync.Mutex
	handles map[string]*fsnotify.Watcher
	pending map[string]*pendingDrop
	gen     uint64
	seen    *expirable.LRU[string, struct{}]
	cancel  context.CancelFunc
}

// New constructs a Session for dirs. Nothing is watched until Run.
func New(logger *slog.Logger, dirs []string, handler Handler, opts ...Option) *Session {
	s := &Session{
		logger:      logging.NewComponentLogger(logger, "watcher"),
		dirs:        append([]string(nil), dirs...),
		handler:     handler,
		debounce:    defaultDebounce,
		dedupWindow: defaultDedupWindow,
		events:      make(chan dirEvent),
		failures:    make(chan dirFailure),
		fired:       make(chan fired),
		handles:     map[string]*fsnotify.Watcher{},
		pending:     map[string]*pendingDrop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.seen = expirable.NewLRU[string, struct{}](dedupCapacity, nil, s.dedupWindow)
	return s
}

// Run watches until ctx is cancelled or Close is called, then releases every
// handle. It returns ErrNoDirectories when nothing could be watched.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer s.shutdown()

	opened := s.openHandles()
	if len(opened) == 0 {
		return ErrNoDirectories
	}

	g, gctx := errgroup.WithContext(ctx)
	work := make(chan Drop)
	for dir, w := range opened {
		g.Go(func() error { return s.forward(gctx, dir, w) })
	}
	g.Go(func() error {
		defer close(work)
		return s.loop(gctx, work)
	})
	g.Go(func() error {
		for drop := range work {
			s.handler(gctx, drop)
		}
		return nil
	})

	s.logger.Info("watching directories", logging.Strings("directories", keys(opened)))
	return g.Wait()
}

// Close stops a running session and releases its resources. It is safe to
// call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.shutdown()
	return nil
}

// Watching returns the directories currently holding an open handle.
func (s *Session) Watching() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return keys(s.handles)
}

func (s *Session) openHandles() map[string]*fsnotify.Watcher {
	opened := map[string]*fsnotify.Watcher{}
	for _, raw := range s.dirs {
		dir, err := filepath.Abs(raw)
		if err != nil {
			dir = raw
		}
		if _, dup := opened[dir]; dup {
			continue
		}
		w, err := fsnotify.NewWatcher()
		if err == nil {
			err = w.Add(dir)
			if err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			logging.WarnWithContext(s.logger, "cannot watch directory; skipping", "watch_open_failed",
				logging.String(logging.FieldWatchDir, dir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the directory exists and is readable"),
				logging.String(logging.FieldImpact, "drops into this directory are ignored"),
			)
			continue
		}
		opened[dir] = w
	}
	s.mu.Lock()
	for dir, w := range opened {
		s.handles[dir] = w
	}
	s.mu.Unlock()
	return opened
}

// forward fans one handle's channels into the session loop.
func (s *Session) forward(ctx context.Context, dir string, w *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			select {
			case s.events <- dirEvent{dir: dir, event: ev}:
			case <-ctx.Done():
				return nil
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			select {
			case s.failures <- dirFailure{dir: dir, err: err}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// loop is the single goroutine that owns debounce state. Settled drops are
// kept in a FIFO backlog and handed to the worker one at a time.
func (s *Session) loop(ctx context.Context, work chan<- Drop) error {
	var backlog []Drop
	for {
		var out chan<- Drop
		var next Drop
		if len(backlog) > 0 {
			out = work
			next = backlog[0]
		}
		select {
		case <-ctx.Done():
			if len(backlog) > 0 {
				s.logger.Info("shutdown discarded queued drops", logging.Int("queued", len(backlog)))
			}
			return nil
		case ev := <-s.events:
			if s.handleEvent(ctx, ev) && len(s.Watching()) == 0 {
				return ErrNoDirectories
			}
		case f := <-s.failures:
			logging.WarnWithContext(s.logger, "watch error reported", "watch_error",
				logging.String(logging.FieldWatchDir, f.dir),
				logging.Error(f.err),
				logging.String(logging.FieldImpact, "some events may have been missed"),
			)
		case f := <-s.fired:
			if drop, ok := s.settle(f); ok {
				backlog = append(backlog, drop)
			}
		case out <- next:
			backlog = backlog[1:]
		}
	}
}

// handleEvent arms debounce timers. It reports true when the event closed a
// watched directory.
func (s *Session) handleEvent(ctx context.Context, ev dirEvent) bool {
	name := ev.event.Name
	if name == ev.dir && (ev.event.Has(fsnotify.Remove) || ev.event.Has(fsnotify.Rename)) {
		logging.WarnWithContext(s.logger, "watched directory removed; closing its watch", "watch_dir_removed",
			logging.String(logging.FieldWatchDir, ev.dir),
			logging.String(logging.FieldImpact, "drops into this directory are ignored"),
		)
		s.closeHandle(ev.dir)
		return true
	}
	if s.ignore != nil && s.ignore(name) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, isPending := s.pending[name]
	switch {
	case ev.event.Has(fsnotify.Create), ev.event.Has(fsnotify.Rename):
	case ev.event.Has(fsnotify.Write) && isPending:
	default:
		return false
	}

	s.gen++
	gen := s.gen
	if isPending {
		existing.timer.Stop()
	}
	done := ctx.Done()
	s.pending[name] = &pendingDrop{
		dir: ev.dir,
		gen: gen,
		timer: time.AfterFunc(s.debounce, func() {
			select {
			case s.fired <- fired{path: name, gen: gen}:
			case <-done:
			}
		}),
	}
	return false
}

// settle checks a path whose debounce elapsed.
func (s *Session) settle(f fired) (Drop, bool) {
	s.mu.Lock()
	p, ok := s.pending[f.path]
	if !ok || p.gen != f.gen {
		s.mu.Unlock()
		return Drop{}, false
	}
	delete(s.pending, f.path)
	s.mu.Unlock()

	info, err := os.Stat(f.path)
	if err != nil {
		s.logger.Debug("dropped path vanished before settling", logging.String("path", f.path))
		return Drop{}, false
	}
	if !info.Mode().IsRegular() {
		return Drop{}, false
	}
	key := f.path + "|" + strconv.FormatInt(info.Size(), 10) + "|" + strconv.FormatInt(info.ModTime().UnixNano(), 10)
	if _, dup := s.seen.Get(key); dup {
		s.logger.Debug("duplicate drop suppressed", logging.String("path", f.path))
		return Drop{}, false
	}
	s.seen.Add(key, struct{}{})

	ctx := services.WithWatchDir(context.Background(), p.dir)
	logging.WithContext(ctx, s.logger).Debug("drop settled",
		logging.String("path", f.path),
		logging.Int64("size_bytes", info.Size()),
	)
	return Drop{Path: f.path, WatchDir: p.dir, Size: info.Size(), ModTime: info.ModTime()}, true
}

func (s *Session) closeHandle(dir string) {
	s.mu.Lock()
	w, ok := s.handles[dir]
	delete(s.handles, dir)
	for path, p := range s.pending {
		if p.dir == dir {
			p.timer.Stop()
			delete(s.pending, path)
		}
	}
	s.mu.Unlock()
	if ok {
		if err := w.Close(); err != nil {
			s.logger.Debug("close watch handle failed", logging.String(logging.FieldWatchDir, dir), logging.Error(err))
		}
	}
}

// shutdown closes every handle, stops timers and clears state.
func (s *Session) shutdown() {
	s.mu.Lock()
	handles := s.handles
	s.handles = map[string]*fsnotify.Watcher{}
	for _, p := range s.pending {
		p.timer.Stop()
	}
	s.pending = map[string]*pendingDrop{}
	s.mu.Unlock()

	s.seen.Purge()
	for dir, w := range handles {
		if err := w.Close(); err != nil {
			s.logger.Debug("close watch handle failed", logging.String(logging.FieldWatchDir, dir), logging.Error(err))
		}
	}
}

func keys(m map[string]*fsnotify.Watcher) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
