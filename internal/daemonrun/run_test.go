package daemonrun_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"openbuckets/internal/config"
	"openbuckets/internal/daemonctl"
	"openbuckets/internal/daemonrun"
	"openbuckets/internal/logging"
	"openbuckets/internal/testsupport"
	"openbuckets/internal/watcher"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunWritesReportForDrop(t *testing.T) {
	ws := testsupport.NewWorkspace(t,
		testsupport.WithLocalLayer("include = [\"src/**/*.go\"]\n"),
		testsupport.WithStubbedBinaries(map[string]string{}),
	)
	testsupport.WriteText(t, ws.Path("src", "main.go"), "package main\n")

	settings := config.DefaultSettings()
	settings.Debounce = 30 * time.Millisecond
	out := &lockedBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- daemonrun.Run(ctx, logging.NewNop(), daemonrun.Options{
			WatchDirs:  []string{ws.WatchDir},
			BaseDir:    ws.BaseDir,
			Settings:   settings,
			Resolver:   ws.Resolver,
			Controller: daemonctl.New(logging.NewNop(), ws.Root),
			Out:        out,
		})
	}()

	dropped := filepath.Join(ws.WatchDir, "note.txt")
	deadline := time.Now().Add(5 * time.Second)
	written := false
	for !strings.Contains(out.String(), "# Context: note.txt") {
		if time.Now().After(deadline) {
			t.Fatalf("no report written; output so far: %q", out.String())
		}
		if !written {
			time.Sleep(100 * time.Millisecond)
			testsupport.WriteText(t, dropped, "hello")
			written = true
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.Contains(out.String(), "src/main.go") {
		t.Fatalf("expected related file in report, got:\n%s", out.String())
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunFailsWithoutWatchableDirectories(t *testing.T) {
	root := t.TempDir()
	err := daemonrun.Run(context.Background(), logging.NewNop(), daemonrun.Options{
		WatchDirs:  []string{filepath.Join(root, "missing")},
		BaseDir:    root,
		Settings:   config.DefaultSettings(),
		Resolver:   config.NewResolver(filepath.Join(root, "profile")),
		Controller: daemonctl.New(logging.NewNop(), root),
		Out:        &lockedBuffer{},
	})
	if !errors.Is(err, watcher.ErrNoDirectories) {
		t.Fatalf("expected ErrNoDirectories, got %v", err)
	}
}

func TestRunRequiresWatchDirectories(t *testing.T) {
	err := daemonrun.Run(context.Background(), logging.NewNop(), daemonrun.Options{
		Controller: daemonctl.New(logging.NewNop(), t.TempDir()),
	})
	if err == nil {
		t.Fatal("expected error without watch directories")
	}
}
