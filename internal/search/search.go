package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"openbuckets/internal/logging"
	"openbuckets/internal/services"
)

// Match is one line of search output. LineNumber is nil for context lines.
type Match struct {
	SourceFile string
	LineNumber *int
	Text       string
	Pattern    string
}

// IsContext reports whether the match is a surrounding context line.
func (m Match) IsContext() bool {
	return m.LineNumber == nil
}

const (
	defaultTimeout      = 30 * time.Second
	defaultContextLines = 2
)

// Option configures the engine.
type Option func(*Engine)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(e *Engine) {
		if exec != nil {
			e.exec = exec
		}
	}
}

// WithLookPath overrides how tool binaries are located.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(e *Engine) {
		if fn != nil {
			e.lookPath = fn
		}
	}
}

// WithTimeout bounds each tool invocation.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// WithContextLines sets how many surrounding lines the tools print.
func WithContextLines(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.contextLines = n
		}
	}
}

// Engine runs directory searches.
type Engine struct {
	logger       *slog.Logger
	exec         Executor
	lookPath     func(string) (string, error)
	timeout      time.Duration
	contextLines int
}

// New constructs a search engine. A nil logger discards output.
func New(logger *slog.Logger, opts ...Option) *Engine {
	engine := &Engine{
		logger:       logging.NewComponentLogger(logger, "search"),
		exec:         commandExecutor{},
		timeout:      defaultTimeout,
		contextLines: defaultContextLines,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Search runs every pattern configured for each directory, in order, and
// returns the concatenated matches. Relative directories resolve against
// baseDir. Directories without patterns, missing directories and failed tool
// invocations are logged and contribute no matches. Once ctx is done no new
// invocation starts and the matches gathered so far are returned.
func (e *Engine) Search(ctx context.Context, directories []string, patterns map[string][]string, baseDir string) []Match {
	if len(directories) == 0 {
		return nil
	}
	logger := logging.WithContext(ctx, e.logger)

	tool, binary, ok := selectTool(e.lookPath)
	if !ok {
		logging.WarnWithContext(logger, "no search tool available", "search_tool_missing",
			logging.String(logging.FieldErrorHint, "install ripgrep (rg) or grep"),
			logging.String(logging.FieldImpact, "report contains no search matches"),
		)
		return nil
	}

	var matches []Match
	for _, dir := range directories {
		if ctx.Err() != nil {
			logger.Debug("search interrupted between directories", logging.String("directory", dir))
			return matches
		}
		dirPatterns := patterns[dir]
		if len(dirPatterns) == 0 {
			logging.WarnWithContext(logger, "directory has no search patterns; skipping", "search_no_patterns",
				logging.String("directory", dir),
				logging.String(logging.FieldErrorHint, "add patterns under [directories] or remove the entry"),
				logging.String(logging.FieldImpact, "directory not searched"),
			)
			continue
		}
		resolved := dir
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(baseDir, resolved)
		}
		if info, err := os.Stat(resolved); err != nil || !info.IsDir() {
			logging.WarnWithContext(logger, "search directory missing; skipping", "search_directory_missing",
				logging.String("directory", resolved),
				logging.String(logging.FieldErrorHint, "check the [directories] entries in .bucket-include.toml"),
				logging.String(logging.FieldImpact, "directory not searched"),
			)
			continue
		}

		for _, pattern := range dirPatterns {
			if ctx.Err() != nil {
				logger.Debug("search interrupted between patterns",
					logging.String("directory", resolved),
					logging.String("pattern", pattern),
				)
				return matches
			}
			found, err := e.runPattern(ctx, tool, binary, pattern, resolved)
			if err != nil {
				logging.WarnWithContext(logger, "search failed; continuing", "search_failed",
					logging.String("tool", string(tool)),
					logging.String("directory", resolved),
					logging.String("pattern", pattern),
					logging.String("failure_kind", services.FailureKind(err)),
					logging.Error(err),
					logging.String(logging.FieldImpact, "no matches for this pattern"),
				)
				continue
			}
			logger.Debug("search pattern complete",
				logging.String("tool", string(tool)),
				logging.String("directory", resolved),
				logging.String("pattern", pattern),
				logging.Int("match_count", len(found)),
			)
			matches = append(matches, found...)
		}
	}
	return matches
}

// runPattern executes one invocation. The call is detached from ctx
// cancellation so a started process runs to completion or timeout.
// Exit status 1 means no matches. Any other failure, including rg's exit
// status 2 for unreadable files, discards every line already parsed for
// this pattern and returns the error, so a pattern yields all of its
// matches or none.
func (e *Engine) runPattern(ctx context.Context, tool Tool, binary, pattern, dir string) ([]Match, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	var found []Match
	err := e.exec.Run(callCtx, binary, buildArgs(tool, pattern, dir, e.contextLines), func(line string) {
		if m, ok := parseLine(line, pattern); ok {
			found = append(found, m)
		}
	})
	if err == nil {
		return found, nil
	}
	if exitCode(err) == 1 {
		return nil, nil
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return nil, services.Wrap(services.ErrTimeout, "search-directories", string(tool), fmt.Sprintf("exceeded %s", e.timeout), err)
	}
	return nil, services.Wrap(services.ErrExternalTool, "search-directories", string(tool), strings.TrimSpace(pattern), err)
}
