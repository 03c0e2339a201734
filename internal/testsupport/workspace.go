package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"openbuckets/internal/config"
)

// Workspace is a throwaway project layout: a base directory with a watched
// inbox and a separate global profile directory.
type Workspace struct {
	Root      string
	BaseDir   string
	WatchDir  string
	GlobalDir string
	BinDir    string
	Resolver  *config.Resolver
}

// WorkspaceOption customizes a generated workspace.
type WorkspaceOption func(*Workspace, testing.TB)

// NewWorkspace creates the directories under t.TempDir and applies options.
func NewWorkspace(t testing.TB, opts ...WorkspaceOption) *Workspace {
	t.Helper()

	root := t.TempDir()
	ws := &Workspace{
		Root:      root,
		BaseDir:   filepath.Join(root, "project"),
		WatchDir:  filepath.Join(root, "project", "inbox"),
		GlobalDir: filepath.Join(root, "profile"),
		BinDir:    filepath.Join(root, "bin"),
	}
	for _, dir := range []string{ws.BaseDir, ws.WatchDir, ws.GlobalDir, ws.BinDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	ws.Resolver = config.NewResolver(ws.GlobalDir)
	for _, opt := range opts {
		opt(ws, t)
	}
	return ws
}

// WithLocalLayer writes the project's .bucket-include.toml.
func WithLocalLayer(body string) WorkspaceOption {
	return func(ws *Workspace, t testing.TB) {
		WriteText(t, filepath.Join(ws.BaseDir, config.LocalFileName), body)
	}
}

// WithGlobalLayer writes the global profile's .bucket-include.toml.
func WithGlobalLayer(body string) WorkspaceOption {
	return func(ws *Workspace, t testing.TB) {
		WriteText(t, filepath.Join(ws.GlobalDir, config.LocalFileName), body)
	}
}

// WithStubbedBinaries writes shell scripts into the workspace bin directory
// and makes that directory the only PATH entry, so real tools are hidden.
// Each value is the script body placed after the shebang line.
func WithStubbedBinaries(stubs map[string]string) WorkspaceOption {
	return func(ws *Workspace, t testing.TB) {
		for name, body := range stubs {
			target := filepath.Join(ws.BinDir, name)
			script := []byte("#!/bin/sh\n" + body + "\n")
			if err := os.WriteFile(target, script, 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", ws.BinDir)
	}
}

// Path joins elements onto the workspace base directory.
func (ws *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{ws.BaseDir}, elem...)...)
}
