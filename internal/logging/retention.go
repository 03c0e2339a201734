package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const rotatedStampLayout = "20060102-150405"

// RotateIfLarger renames path to "<stem>-<stamp><ext>" when it holds more than
// limit bytes. It returns the rotated path, or "" when nothing was rotated.
func RotateIfLarger(path string, limit int64, now time.Time) (string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("inspect log file: %w", err)
	}
	if limit <= 0 || info.Size() <= limit {
		return "", nil
	}
	ext := filepath.Ext(path)
	rotated := strings.TrimSuffix(path, ext) + "-" + now.Format(rotatedStampLayout) + ext
	if err := os.Rename(path, rotated); err != nil {
		return "", fmt.Errorf("rotate log file: %w", err)
	}
	return rotated, nil
}

// PruneRotated removes files rotated from path whose modification time is
// older than retentionDays. A retentionDays value of 0 disables pruning.
// The live file itself is never removed.
func PruneRotated(logger *slog.Logger, path string, retentionDays int, now time.Time) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	pattern := strings.TrimSuffix(filepath.Base(path), ext) + "-*" + ext

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if matched, err := filepath.Match(pattern, name); err != nil || !matched {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		fullPath := filepath.Join(dir, name)
		if err := os.Remove(fullPath); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", fullPath),
				Error(err),
				String(FieldErrorHint, "check file permissions in the working directory"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("rotated log pruned",
				String("path", fullPath),
				String(FieldEventType, "log_pruned"),
			)
		}
	}
	return removed
}
