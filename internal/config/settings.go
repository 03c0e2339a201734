package config

import "time"

// Environment variables read by LoadSettings.
const (
	EnvDaemon           = "OPEN_BUCKETS_DAEMON"
	EnvLogLevel         = "OPEN_BUCKETS_LOG_LEVEL"
	EnvLogFormat        = "OPEN_BUCKETS_LOG_FORMAT"
	EnvLogJSON          = "OPEN_BUCKETS_LOG_JSON"
	EnvDebounceMillis   = "OPEN_BUCKETS_DEBOUNCE_MS"
	EnvDedupMillis      = "OPEN_BUCKETS_DEDUP_MS"
	EnvSearchTimeout    = "OPEN_BUCKETS_SEARCH_TIMEOUT"
	EnvLogRetentionDays = "OPEN_BUCKETS_LOG_RETENTION_DAYS"
)

// Settings holds process-wide runtime knobs. Unlike Config they are read once
// at startup, not per drop.
type Settings struct {
	LogLevel         string
	LogFormat        string
	LogJSONPath      string
	LogRetentionDays int
	Debounce         time.Duration
	// DedupWindow suppresses a path that reappears with the same size and mtime.
	DedupWindow      time.Duration
	SearchTimeout    time.Duration
	ContextLines     int
}

// LoadSettings returns DefaultSettings overridden by environment variables.
func LoadSettings() (Settings, error) {
	s := DefaultSettings()
	s.normalize()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
