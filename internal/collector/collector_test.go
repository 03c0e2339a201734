package collector_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"openbuckets/internal/collector"
	"openbuckets/internal/config"
	"openbuckets/internal/logging"
	"openbuckets/internal/testsupport"
)

func relPaths(t *testing.T, base string, files []string) []string {
	t.Helper()
	out := make([]string, 0, len(files))
	for _, f := range files {
		if !filepath.IsAbs(f) {
			t.Fatalf("expected absolute path, got %q", f)
		}
		rel, err := filepath.Rel(base, f)
		if err != nil {
			t.Fatalf("rel: %v", err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func defaultLimits() config.Limits {
	return config.Default().Limits
}

func TestCollectEmptyIncludeReturnsNothing(t *testing.T) {
	base := t.TempDir()
	testsupport.WriteText(t, filepath.Join(base, "a.txt"), "a")

	res, err := collector.New(logging.NewNop()).Collect(context.Background(), nil, nil, base, defaultLimits())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(res.Files) != 0 || res.Stats.Count != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestCollectMatchesIncludesAndExcludes(t *testing.T) {
	base := t.TempDir()
	for _, rel := range []string{
		"README.md",
		"src/main.go",
		"src/util/strings.go",
		"src/util/strings_test.go",
		"vendor/lib/lib.go",
		"node_modules/pkg/index.go",
		"build/out.go",
		"src/debug.log",
	} {
		testsupport.WriteText(t, filepath.Join(base, rel), "content of "+rel)
	}

	res, err := collector.New(nil).Collect(context.Background(),
		[]string{"**/*.go", "README.md", "**/*.log"},
		[]string{"**/*_test.go", "vendor/**"},
		base, defaultLimits())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	got := relPaths(t, base, res.Files)
	want := []string{"README.md", "src/main.go", "src/util/strings.go"}
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected files\n got: %v\nwant: %v", got, want)
	}
	if res.Stats.Count != 3 {
		t.Fatalf("expected count 3, got %d", res.Stats.Count)
	}
	var total int64
	for _, f := range res.Files {
		info, err := os.Stat(f)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		total += info.Size()
	}
	if res.Stats.TotalSizeBytes != total {
		t.Fatalf("expected total %d, got %d", total, res.Stats.TotalSizeBytes)
	}
}

func TestCollectRespectsSizeLimit(t *testing.T) {
	base := t.TempDir()
	testsupport.WriteSizedText(t, filepath.Join(base, "small.txt"), 10)
	testsupport.WriteSizedText(t, filepath.Join(base, "exact.txt"), 100)
	testsupport.WriteSizedText(t, filepath.Join(base, "large.txt"), 101)

	limits := config.Limits{MaxFiles: 10, MaxSizeBytes: 100}
	res, err := collector.New(nil).Collect(context.Background(), []string{"*.txt"}, nil, base, limits)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, f := range res.Files {
		info, err := os.Stat(f)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if info.Size() > limits.MaxSizeBytes {
			t.Fatalf("file %s exceeds limit: %d", f, info.Size())
		}
	}
	if got := relPaths(t, base, res.Files); !slices.Equal(got, []string{"exact.txt", "small.txt"}) {
		t.Fatalf("unexpected files %v", got)
	}
	if res.Stats.Skipped != 1 {
		t.Fatalf("expected one skipped file, got %d", res.Stats.Skipped)
	}
}

func TestCollectFileLimitIsAdvisory(t *testing.T) {
	base := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		testsupport.WriteText(t, filepath.Join(base, name), name)
	}

	res, err := collector.New(nil).Collect(context.Background(), []string{"*.txt"}, nil, base, config.Limits{MaxFiles: 2, MaxSizeBytes: 1024})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(res.Files) != 3 || !res.Stats.OverFileLimit {
		t.Fatalf("expected all files with limit flag, got %+v", res)
	}
}

func TestCollectSkipsSymlinks(t *testing.T) {
	base := t.TempDir()
	outside := t.TempDir()
	testsupport.WriteText(t, filepath.Join(outside, "secret.txt"), "secret")
	testsupport.WriteText(t, filepath.Join(base, "real.txt"), "real")
	if err := os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(base, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(base, "linked-dir")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	res, err := collector.New(nil).Collect(context.Background(), []string{"**/*.txt"}, nil, base, defaultLimits())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got := relPaths(t, base, res.Files); !slices.Equal(got, []string{"real.txt"}) {
		t.Fatalf("expected symlinks to be skipped, got %v", got)
	}
}

func TestCollectFollowsSymlinkedBaseDir(t *testing.T) {
	target := t.TempDir()
	testsupport.WriteTree(t, target, map[string]string{
		"src/main.go":   "package main\n",
		"src/notes.txt": "notes",
		"build/out.go":  "package out\n",
	})
	base := filepath.Join(t.TempDir(), "checkout")
	if err := os.Symlink(target, base); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	res, err := collector.New(nil).Collect(context.Background(), []string{"src/**/*.go", "**/*.go"}, nil, base, defaultLimits())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got := relPaths(t, base, res.Files); !slices.Equal(got, []string{"src/main.go"}) {
		t.Fatalf("expected files reported under the symlinked base, got %v", got)
	}
}

func TestCollectIgnoresInvalidPatterns(t *testing.T) {
	base := t.TempDir()
	testsupport.WriteText(t, filepath.Join(base, "a.txt"), "a")

	res, err := collector.New(nil).Collect(context.Background(), []string{"[", "/etc/**", "../**", "*.txt"}, nil, base, defaultLimits())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got := relPaths(t, base, res.Files); !slices.Equal(got, []string{"a.txt"}) {
		t.Fatalf("unexpected files %v", got)
	}
}

func TestCollectMissingBaseDir(t *testing.T) {
	_, err := collector.New(nil).Collect(context.Background(), []string{"**"}, nil, filepath.Join(t.TempDir(), "missing"), defaultLimits())
	if err == nil {
		t.Fatal("expected error for missing base directory")
	}
}

func TestCollectHonoursCancellation(t *testing.T) {
	base := t.TempDir()
	testsupport.WriteText(t, filepath.Join(base, "a.txt"), "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := collector.New(nil).Collect(ctx, []string{"*.txt"}, nil, base, defaultLimits())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
