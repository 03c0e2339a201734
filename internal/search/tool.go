package search

import (
	"os/exec"
	"strconv"
)

// Tool names the external search program chosen for an invocation.
type Tool string

const (
	ToolRipgrep Tool = "rg"
	ToolGrep    Tool = "grep"
)

// excludedDirs are skipped by grep; rg already honours ignore files and
// skips hidden directories.
var excludedDirs = []string{".git", "node_modules", "dist", "build"}

// selectTool prefers rg and falls back to grep. It reports false when neither
// is on PATH.
func selectTool(lookPath func(string) (string, error)) (Tool, string, bool) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	for _, tool := range []Tool{ToolRipgrep, ToolGrep} {
		if path, err := lookPath(string(tool)); err == nil {
			return tool, path, true
		}
	}
	return "", "", false
}

// buildArgs returns the arguments for one pattern over one directory. Both
// tools print the file name followed by a NUL byte so names containing ':'
// or '-' parse unambiguously.
func buildArgs(tool Tool, pattern, dir string, contextLines int) []string {
	ctxArg := strconv.Itoa(contextLines)
	switch tool {
	case ToolRipgrep:
		return []string{
			"--color=never",
			"--no-heading",
			"--with-filename",
			"--line-number",
			"--null",
			"--context", ctxArg,
			"--regexp", pattern,
			dir,
		}
	default:
		args := []string{"-r", "-n", "-H", "-I", "-E", "--null", "-C", ctxArg}
		for _, excluded := range excludedDirs {
			args = append(args, "--exclude-dir="+excluded)
		}
		return append(args, "-e", pattern, dir)
	}
}
