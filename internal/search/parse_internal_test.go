package search

import "testing"

func TestParseLine(t *testing.T) {
	cases := []struct {
		line     string
		wantOK   bool
		wantFile string
		wantLine int
		wantText string
	}{
		{"", false, "", 0, ""},
		{"--", false, "", 0, ""},
		{"/p/a.go\x0012:func main() {", true, "/p/a.go", 12, "func main() {"},
		{"/p/a-1-b.go\x007-context: here", true, "/p/a-1-b.go", 0, "context: here"},
		{"/p/c:3:d.txt\x003:x:1:y", true, "/p/c:3:d.txt", 3, "x:1:y"},
		{"Binary file /p/x matches", true, ContextSource, 0, "Binary file /p/x matches"},
		{"/p/weird\x00no-number", true, "/p/weird", 0, "no-number"},
	}
	for _, tc := range cases {
		m, ok := parseLine(tc.line, "pat")
		if ok != tc.wantOK {
			t.Fatalf("parseLine(%q) ok = %v, want %v", tc.line, ok, tc.wantOK)
		}
		if !ok {
			continue
		}
		if m.SourceFile != tc.wantFile || m.Text != tc.wantText || m.Pattern != "pat" {
			t.Fatalf("parseLine(%q) = %+v", tc.line, m)
		}
		if tc.wantLine == 0 && m.LineNumber != nil {
			t.Fatalf("parseLine(%q) expected context line, got %d", tc.line, *m.LineNumber)
		}
		if tc.wantLine != 0 && (m.LineNumber == nil || *m.LineNumber != tc.wantLine) {
			t.Fatalf("parseLine(%q) expected line %d, got %+v", tc.line, tc.wantLine, m.LineNumber)
		}
	}
}

func TestBuildArgsRipgrep(t *testing.T) {
	args := buildArgs(ToolRipgrep, "-dash", "/d", 2)
	want := []string{"--color=never", "--no-heading", "--with-filename", "--line-number", "--null", "--context", "2", "--regexp", "-dash", "/d"}
	if len(args) != len(want) {
		t.Fatalf("unexpected args %v", args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("arg %d = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestSelectToolPrefersRipgrep(t *testing.T) {
	tool, path, ok := selectTool(func(name string) (string, error) { return "/bin/" + name, nil })
	if !ok || tool != ToolRipgrep || path != "/bin/rg" {
		t.Fatalf("unexpected selection %s %s %v", tool, path, ok)
	}
}
