package collector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sys/unix"

	"openbuckets/internal/config"
	"openbuckets/internal/logging"
	"openbuckets/internal/services"
)

// Stats summarizes one collection run.
type Stats struct {
	Count          int
	TotalSizeBytes int64
	// Skipped counts matched entries dropped for being unreadable, oversized
	// or not regular files.
	Skipped       int
	OverFileLimit bool
}

// Result is the ordered list of absolute file paths plus run statistics.
type Result struct {
	Files []string
	Stats Stats
}

// Collector walks a base directory and applies include/exclude globs.
type Collector struct {
	logger *slog.Logger
	access func(path string) error
}

// New constructs a Collector. A nil logger discards output.
func New(logger *slog.Logger) *Collector {
	return &Collector{
		logger: logging.NewComponentLogger(logger, "collector"),
		access: func(path string) error { return unix.Access(path, unix.R_OK) },
	}
}

// Collect returns every file under baseDir matching at least one include
// pattern and no exclude pattern. An empty include list yields an empty
// result. MaxFiles is advisory: exceeding it is logged and flagged in Stats
// without truncating the list. On cancellation the files gathered so far are
// returned together with the context error.
func (c *Collector) Collect(ctx context.Context, include, exclude []string, baseDir string, limits config.Limits) (Result, error) {
	var result Result
	logger := logging.WithContext(ctx, c.logger)

	includes := c.validPatterns(logger, include, "include")
	if len(includes) == 0 {
		return result, nil
	}
	excludes := c.validPatterns(logger, append(append([]string(nil), exclude...), config.BaselineExcludes...), "exclude")
	pruneDirs := dirPrefixes(excludes)

	root, err := filepath.Abs(baseDir)
	if err != nil {
		return result, services.Wrap(services.ErrValidation, "collect-related", "resolve base", baseDir, err)
	}
	// A symlinked base is walked at its target; matches are still
	// reported under root.
	walkRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return result, services.Wrap(services.ErrNotFound, "collect-related", "resolve base", fmt.Sprintf("base directory %s", root), err)
	}

	walkErr := filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == walkRoot {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == walkRoot {
			return nil
		}
		rel, err := filepath.Rel(walkRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if matchAny(pruneDirs, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !matchAny(includes, rel) || matchAny(excludes, rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil || !info.Mode().IsRegular() || (limits.MaxSizeBytes > 0 && info.Size() > limits.MaxSizeBytes) {
			result.Stats.Skipped++
			return nil
		}
		if c.access(path) != nil {
			result.Stats.Skipped++
			return nil
		}
		result.Files = append(result.Files, filepath.Join(root, filepath.FromSlash(rel)))
		result.Stats.Count++
		result.Stats.TotalSizeBytes += info.Size()
		return nil
	})

	if limits.MaxFiles > 0 && result.Stats.Count > limits.MaxFiles {
		result.Stats.OverFileLimit = true
		logging.WarnWithContext(logger, "related file count exceeds configured limit", "collector_file_limit",
			logging.Int("file_count", result.Stats.Count),
			logging.Int("max_files", limits.MaxFiles),
			logging.String(logging.FieldErrorHint, "narrow include patterns or raise limits.max_files"),
			logging.String(logging.FieldImpact, "report lists every matched file"),
		)
	}

	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return result, walkErr
		}
		return result, services.Wrap(services.ErrNotFound, "collect-related", "walk", fmt.Sprintf("base directory %s", root), walkErr)
	}
	return result, nil
}

func (c *Collector) validPatterns(logger *slog.Logger, patterns []string, kind string) []string {
	out := make([]string, 0, len(patterns))
	seen := make(map[string]struct{}, len(patterns))
	for _, raw := range patterns {
		pattern := filepath.ToSlash(strings.TrimSpace(raw))
		pattern = strings.TrimPrefix(pattern, "./")
		if pattern == "" {
			continue
		}
		if _, ok := seen[pattern]; ok {
			continue
		}
		seen[pattern] = struct{}{}
		if strings.HasPrefix(pattern, "/") || pattern == ".." || strings.HasPrefix(pattern, "../") || !doublestar.ValidatePattern(pattern) {
			logging.WarnWithContext(logger, "ignoring invalid glob pattern", "collector_invalid_pattern",
				logging.String("pattern", raw),
				logging.String("pattern_kind", kind),
				logging.String(logging.FieldErrorHint, "patterns must be valid globs relative to the base directory"),
				logging.String(logging.FieldImpact, "pattern has no effect"),
			)
			continue
		}
		out = append(out, pattern)
	}
	return out
}

// dirPrefixes turns "x/**" excludes into directory patterns so whole subtrees
// can be skipped during the walk.
func dirPrefixes(excludes []string) []string {
	var out []string
	for _, pattern := range excludes {
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok && prefix != "" {
			out = append(out, prefix)
		}
	}
	return out
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
