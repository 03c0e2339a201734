package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"openbuckets/internal/config"
	"openbuckets/internal/daemonctl"
	"openbuckets/internal/logging"
)

type commandContext struct {
	logLevel  *string
	logFormat *string
	baseFlag  *string

	settingsOnce sync.Once
	settings     config.Settings
	settingsErr  error
}

func newCommandContext(logLevel, logFormat, baseFlag *string) *commandContext {
	return &commandContext{
		logLevel:  logLevel,
		logFormat: logFormat,
		baseFlag:  baseFlag,
	}
}

func (c *commandContext) ensureSettings() (config.Settings, error) {
	c.settingsOnce.Do(func() {
		settings, err := config.LoadSettings()
		if err != nil {
			c.settingsErr = fmt.Errorf("load settings: %w", err)
			return
		}
		if c.logLevel != nil && strings.TrimSpace(*c.logLevel) != "" {
			settings.LogLevel = strings.ToLower(strings.TrimSpace(*c.logLevel))
		}
		if c.logFormat != nil && strings.TrimSpace(*c.logFormat) != "" {
			settings.LogFormat = strings.ToLower(strings.TrimSpace(*c.logFormat))
		}
		if err := settings.Validate(); err != nil {
			c.settingsErr = err
			return
		}
		c.settings = settings
	})
	return c.settings, c.settingsErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	settings, err := c.ensureSettings()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromSettings(settings)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// baseDir returns the --base directory, or the working directory.
func (c *commandContext) baseDir() (string, error) {
	base := ""
	if c.baseFlag != nil {
		base = strings.TrimSpace(*c.baseFlag)
	}
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
		return wd, nil
	}
	abs, err := config.ExpandPath(base)
	if err != nil {
		return "", fmt.Errorf("resolve base directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("base directory %s is not an existing directory", abs)
	}
	return abs, nil
}

// controller manages the PID file in the working directory.
func (c *commandContext) controller(logger *slog.Logger) (*daemonctl.Controller, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determine working directory: %w", err)
	}
	retention := config.DefaultSettings().LogRetentionDays
	if settings, err := c.ensureSettings(); err == nil {
		retention = settings.LogRetentionDays
	}
	return daemonctl.New(logger, wd, daemonctl.WithLogRetention(retention)), nil
}
