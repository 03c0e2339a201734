package config

import (
	"errors"
	"fmt"
	"slices"
)

// Validate ensures the settings are usable.
func (s Settings) Validate() error {
	switch s.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log format must be console or json, got %q", s.LogFormat)
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log level must be debug, info, warn or error, got %q", s.LogLevel)
	}
	if s.Debounce <= 0 {
		return errors.New("debounce interval must be positive")
	}
	if s.DedupWindow <= 0 {
		return errors.New("dedup window must be positive")
	}
	if s.SearchTimeout <= 0 {
		return errors.New("search timeout must be positive")
	}
	if s.LogRetentionDays < 0 {
		return errors.New("log retention days must not be negative")
	}
	return nil
}

// Validate reports whether a merged configuration keeps its invariants.
func (c Config) Validate() error {
	for _, baseline := range BaselineExcludes {
		if !slices.Contains(c.Exclude, baseline) {
			return fmt.Errorf("exclude list is missing baseline pattern %q", baseline)
		}
	}
	if c.Limits.MaxFiles <= 0 {
		return errors.New("limits.max_files must be positive")
	}
	if c.Limits.MaxSizeBytes <= 0 {
		return errors.New("limits.max_size_bytes must be positive")
	}
	return nil
}
