package config

import "time"

const (
	// LocalFileName is the project-level config file looked up in the base directory.
	LocalFileName = ".bucket-include.toml"
	// GlobalDirName is the per-user profile directory under the XDG config home.
	GlobalDirName = "open-buckets"

	skillFileSuffix = ".bucket-include.toml"

	defaultMaxFiles     = 1000
	defaultMaxSizeBytes = int64(10 * 1024 * 1024)

	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 14
	defaultDebounce         = 100 * time.Millisecond
	defaultDedupWindow      = 2 * time.Second
	defaultSearchTimeout    = 30 * time.Second
	defaultContextLines     = 2
)

// BaselineExcludes is the denylist present in every resolved configuration.
var BaselineExcludes = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/dist/**",
	"**/build/**",
	"**/*.log",
}

// Default returns a Config populated with the built-in defaults: the
// baseline denylist, no includes, no search directories.
func Default() Config {
	return Config{
		Include:     []string{},
		Exclude:     append([]string(nil), BaselineExcludes...),
		Directories: map[string][]string{},
		Limits: Limits{
			MaxFiles:     defaultMaxFiles,
			MaxSizeBytes: defaultMaxSizeBytes,
		},
	}
}

// DefaultSettings returns runtime settings used when no environment overrides exist.
func DefaultSettings() Settings {
	return Settings{
		LogLevel:         defaultLogLevel,
		LogFormat:        defaultLogFormat,
		LogRetentionDays: defaultLogRetentionDays,
		Debounce:         defaultDebounce,
		DedupWindow:      defaultDedupWindow,
		SearchTimeout:    defaultSearchTimeout,
		ContextLines:     defaultContextLines,
	}
}
