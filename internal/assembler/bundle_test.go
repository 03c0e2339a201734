package assembler_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"openbuckets/internal/assembler"
	"openbuckets/internal/collector"
	"openbuckets/internal/config"
	"openbuckets/internal/search"
	"openbuckets/internal/testsupport"
)

type fakeSearcher struct {
	matches []search.Match
	calls   int
	dirs    []string
}

func (f *fakeSearcher) Search(_ context.Context, directories []string, _ map[string][]string, _ string) []search.Match {
	f.calls++
	f.dirs = directories
	return f.matches
}

type failingCollector struct{ err error }

func (f failingCollector) Collect(context.Context, []string, []string, string, config.Limits) (collector.Result, error) {
	return collector.Result{}, f.err
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC) }
}

func TestBuildFiftyByteTextFileWithoutIncludes(t *testing.T) {
	ws := testsupport.NewWorkspace(t)
	dropped := filepath.Join(ws.WatchDir, "note.txt")
	content := strings.Repeat("x", 49) + "\n"
	testsupport.WriteText(t, dropped, content)

	searcher := &fakeSearcher{}
	builder := assembler.NewBuilder(nil, collector.New(nil), searcher)
	resolved := ws.Resolver.Resolve(dropped, ws.BaseDir)
	bundle := builder.BuildForFile(context.Background(), dropped, resolved, ws.BaseDir)

	if bundle.Dropped.SizeBytes != 50 || !bundle.Dropped.IsText {
		t.Fatalf("unexpected dropped file %+v", bundle.Dropped)
	}
	if bundle.Dropped.Content == nil || *bundle.Dropped.Content != content {
		t.Fatalf("expected content to be captured, got %v", bundle.Dropped.Content)
	}
	if len(bundle.Related) != 0 || len(bundle.Matches) != 0 || len(bundle.Problems) != 0 {
		t.Fatalf("expected empty sections, got %+v", bundle)
	}

	report := assembler.Render(bundle)
	if !strings.Contains(report, content) {
		t.Fatalf("report missing content:\n%s", report)
	}
	if !strings.Contains(report, "## Related Files (0, 0 B)\n\n(none)") || !strings.Contains(report, "## Search Matches (0)\n\n(none)") {
		t.Fatalf("report missing empty sections:\n%s", report)
	}
}

func TestBuildIsIdempotentForUnchangedInputs(t *testing.T) {
	ws := testsupport.NewWorkspace(t, testsupport.WithLocalLayer(`
include = ["src/**/*.go"]
[directories]
"src" = ["TODO"]
`))
	testsupport.WriteTree(t, ws.BaseDir, map[string]string{
		"src/main.go": "package main\n// TODO: more\n",
		"src/util.go": "package main\n",
	})
	dropped := filepath.Join(ws.WatchDir, "task.go")
	testsupport.WriteText(t, dropped, "package task\n")

	line := 2
	searcher := &fakeSearcher{matches: []search.Match{{SourceFile: ws.Path("src", "main.go"), LineNumber: &line, Text: "// TODO: more", Pattern: "TODO"}}}
	builder := assembler.NewBuilder(nil, collector.New(nil), searcher, assembler.WithClock(fixedClock()))

	first := assembler.Render(builder.BuildForFile(context.Background(), dropped, ws.Resolver.Resolve(dropped, ws.BaseDir), ws.BaseDir))
	second := assembler.Render(builder.BuildForFile(context.Background(), dropped, ws.Resolver.Resolve(dropped, ws.BaseDir), ws.BaseDir))
	if first != second {
		t.Fatalf("reports differ:\n%s\n---\n%s", first, second)
	}
	if !strings.Contains(first, "- src/main.go") || !strings.Contains(first, "- src/util.go") {
		t.Fatalf("expected related files in report:\n%s", first)
	}
	if len(searcher.dirs) != 1 || searcher.dirs[0] != "src" {
		t.Fatalf("expected src to be searched, got %v", searcher.dirs)
	}
}

func TestBuildDegradesMissingDroppedFile(t *testing.T) {
	ws := testsupport.NewWorkspace(t)
	missing := filepath.Join(ws.WatchDir, "gone.txt")

	builder := assembler.NewBuilder(nil, collector.New(nil), &fakeSearcher{})
	bundle := builder.BuildForFile(context.Background(), missing, ws.Resolver.Resolve(missing, ws.BaseDir), ws.BaseDir)
	if len(bundle.Problems) != 1 || bundle.Problems[0].Stage != assembler.StageReadDropped || bundle.Problems[0].Kind != "not-found" {
		t.Fatalf("expected read stage problem, got %+v", bundle.Problems)
	}
	if bundle.Dropped.Content != nil || bundle.Dropped.Err == "" {
		t.Fatalf("expected error on dropped file, got %+v", bundle.Dropped)
	}
	if !strings.Contains(assembler.Render(bundle), "- Type: unreadable") {
		t.Fatal("expected unreadable type in report")
	}
}

func TestBuildDegradesCollectorFailure(t *testing.T) {
	ws := testsupport.NewWorkspace(t)
	dropped := filepath.Join(ws.WatchDir, "a.txt")
	testsupport.WriteText(t, dropped, "a")

	searcher := &fakeSearcher{}
	builder := assembler.NewBuilder(nil, failingCollector{err: errors.New("disk on fire")}, searcher)
	bundle := builder.BuildForFile(context.Background(), dropped, ws.Resolver.Resolve(dropped, ws.BaseDir), ws.BaseDir)

	if len(bundle.Problems) != 1 || bundle.Problems[0].Stage != assembler.StageCollect {
		t.Fatalf("expected collect problem, got %+v", bundle.Problems)
	}
	if searcher.calls != 1 {
		t.Fatal("expected search stage to run after collector failure")
	}
}

func TestBuildBinaryDropHasNoContent(t *testing.T) {
	ws := testsupport.NewWorkspace(t)
	dropped := filepath.Join(ws.WatchDir, "doc.pdf")
	testsupport.WriteText(t, dropped, "%PDF-1.4 body")

	bundle := assembler.NewBuilder(nil, nil, nil).BuildForFile(context.Background(), dropped, ws.Resolver.Resolve(dropped, ws.BaseDir), ws.BaseDir)
	if bundle.Dropped.IsText || bundle.Dropped.Content != nil {
		t.Fatalf("expected binary classification, got %+v", bundle.Dropped)
	}
}

func TestBuildOmitsOversizedTextContent(t *testing.T) {
	ws := testsupport.NewWorkspace(t, testsupport.WithLocalLayer("[limits]\nmax_size_bytes = 16\n"))
	dropped := filepath.Join(ws.WatchDir, "big.txt")
	testsupport.WriteSizedText(t, dropped, 64)

	bundle := assembler.NewBuilder(nil, nil, nil).BuildForFile(context.Background(), dropped, ws.Resolver.Resolve(dropped, ws.BaseDir), ws.BaseDir)
	if !bundle.Dropped.IsText || bundle.Dropped.Content != nil || !strings.Contains(bundle.Dropped.Err, "content omitted") {
		t.Fatalf("expected omitted content, got %+v", bundle.Dropped)
	}
}

func TestProcessorWritesWholeReports(t *testing.T) {
	ws := testsupport.NewWorkspace(t)
	var out syncBuffer
	builder := assembler.NewBuilder(nil, collector.New(nil), &fakeSearcher{})
	proc := assembler.NewProcessor(nil, ws.Resolver, builder, ws.BaseDir, &out)

	var wg sync.WaitGroup
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
		path := filepath.Join(ws.WatchDir, name)
		testsupport.WriteText(t, path, "body of "+name+"\n")
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := proc.HandleDrop(context.Background(), path, ws.WatchDir); err != nil {
				t.Errorf("HandleDrop: %v", err)
			}
		}()
	}
	wg.Wait()

	reports := strings.Split(out.String(), "# Context: ")[1:]
	if len(reports) != 4 {
		t.Fatalf("expected 4 reports, got %d", len(reports))
	}
	for _, r := range reports {
		name := strings.SplitN(r, "\n", 2)[0]
		if !strings.Contains(r, "body of "+name) {
			t.Fatalf("report for %s interleaved:\n%s", name, r)
		}
	}
}

func TestProcessorIgnoresCorruptLayer(t *testing.T) {
	ws := testsupport.NewWorkspace(t, testsupport.WithLocalLayer("include = [oops"))
	var out syncBuffer
	proc := assembler.NewProcessor(nil, ws.Resolver, assembler.NewBuilder(nil, collector.New(nil), nil), ws.BaseDir, &out)

	path := filepath.Join(ws.WatchDir, "x.txt")
	testsupport.WriteText(t, path, "x")
	if err := proc.HandleDrop(context.Background(), path, ws.WatchDir); err != nil {
		t.Fatalf("HandleDrop: %v", err)
	}
	if !strings.Contains(out.String(), "- Config: default") {
		t.Fatalf("expected default config after corrupt local layer:\n%s", out.String())
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
