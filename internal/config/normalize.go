package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

func (l *fileLayer) normalize() error {
	l.Include = trimPatterns(l.Include)
	l.Exclude = trimPatterns(l.Exclude)
	if len(l.Directories) > 0 {
		dirs := make(map[string][]string, len(l.Directories))
		for dir, patterns := range l.Directories {
			key := strings.TrimSpace(dir)
			if key == "" {
				return fmt.Errorf("directories: empty directory name")
			}
			dirs[filepath.Clean(key)] = trimPatterns(patterns)
		}
		l.Directories = dirs
	}
	if l.Limits.MaxFiles != nil && *l.Limits.MaxFiles <= 0 {
		return fmt.Errorf("limits.max_files must be positive")
	}
	if l.Limits.MaxSizeBytes != nil && *l.Limits.MaxSizeBytes <= 0 {
		return fmt.Errorf("limits.max_size_bytes must be positive")
	}
	return nil
}

func trimPatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (s *Settings) normalize() {
	if value, ok := os.LookupEnv(EnvLogLevel); ok && strings.TrimSpace(value) != "" {
		s.LogLevel = value
	}
	if value, ok := os.LookupEnv(EnvLogFormat); ok && strings.TrimSpace(value) != "" {
		s.LogFormat = value
	}
	if value, ok := os.LookupEnv(EnvLogJSON); ok {
		s.LogJSONPath = strings.TrimSpace(value)
	}
	if ms, ok := lookupInt(EnvDebounceMillis); ok {
		s.Debounce = time.Duration(ms) * time.Millisecond
	}
	if ms, ok := lookupInt(EnvDedupMillis); ok {
		s.DedupWindow = time.Duration(ms) * time.Millisecond
	}
	if secs, ok := lookupInt(EnvSearchTimeout); ok {
		s.SearchTimeout = time.Duration(secs) * time.Second
	}
	if days, ok := lookupInt(EnvLogRetentionDays); ok {
		s.LogRetentionDays = days
	}
	s.LogLevel = strings.ToLower(strings.TrimSpace(s.LogLevel))
	s.LogFormat = strings.ToLower(strings.TrimSpace(s.LogFormat))
	if s.LogLevel == "" {
		s.LogLevel = defaultLogLevel
	}
	if s.LogFormat == "" {
		s.LogFormat = defaultLogFormat
	}
	if s.LogJSONPath != "" {
		if expanded, err := expandPath(s.LogJSONPath); err == nil {
			s.LogJSONPath = expanded
		}
	}
}

func lookupInt(key string) (int, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, false
	}
	return n, true
}
