package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"openbuckets/internal/config"
	"openbuckets/internal/daemonctl"
	"openbuckets/internal/daemonrun"
	"openbuckets/internal/preflight"
)

func newRootCommand() *cobra.Command {
	var logLevel string
	var logFormat string
	var baseFlag string
	var watchFlags []string
	var daemonFlag bool

	ctx := newCommandContext(&logLevel, &logFormat, &baseFlag)

	rootCmd := &cobra.Command{
		Use:           "openbuckets [DIR...]",
		Short:         "Assemble context reports for files dropped into watched directories",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs := append(append([]string{}, args...), watchFlags...)
			return runWatch(cmd, ctx, dirs, daemonFlag)
		},
	}

	rootCmd.Flags().StringArrayVarP(&watchFlags, "watch", "w", nil, "Directory to watch (repeatable)")
	rootCmd.Flags().BoolVarP(&daemonFlag, "daemon", "d", false, "Run in the background; output goes to open-buckets.log")
	rootCmd.PersistentFlags().StringVar(&baseFlag, "base", "", "Project base directory (default: working directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or json")

	rootCmd.AddCommand(newStopCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

func runWatch(cmd *cobra.Command, ctx *commandContext, dirs []string, daemonMode bool) error {
	watchDirs, err := validateWatchDirs(dirs)
	if err != nil {
		return err
	}
	baseDir, err := ctx.baseDir()
	if err != nil {
		return err
	}
	settings, err := ctx.ensureSettings()
	if err != nil {
		return err
	}
	logger, err := ctx.logger()
	if err != nil {
		return err
	}
	ctl, err := ctx.controller(logger)
	if err != nil {
		return err
	}

	if daemonMode && !daemonctl.IsDaemonChild() {
		res, err := ctl.Start(os.Args[1:])
		if err != nil {
			if errors.Is(err, daemonctl.ErrAlreadyRunning) {
				return fmt.Errorf("%w; run `openbuckets stop` first", err)
			}
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Started open-buckets daemon (pid %d)\n", res.PID)
		fmt.Fprintf(out, "Reports and logs: %s\n", res.LogPath)
		return nil
	}

	return daemonrun.Run(cmd.Context(), logger, daemonrun.Options{
		WatchDirs:  watchDirs,
		BaseDir:    baseDir,
		Settings:   settings,
		Resolver:   config.NewResolver(config.DefaultGlobalDir()),
		Controller: ctl,
		Out:        cmd.OutOrStdout(),
	})
}

// validateWatchDirs resolves dirs to absolute paths and reports every
// unusable one at once.
func validateWatchDirs(dirs []string) ([]string, error) {
	if len(dirs) == 0 {
		return nil, errors.New("no watch directories given; pass DIR arguments or --watch DIR")
	}
	var (
		out      []string
		problems []string
		seen     = map[string]struct{}{}
	)
	for _, raw := range dirs {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			problems = append(problems, fmt.Sprintf("%q (error: empty path)", raw))
			continue
		}
		abs, err := config.ExpandPath(trimmed)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s (error: %v)", raw, err))
			continue
		}
		if result := preflight.CheckWatchDirectory(abs); !result.Passed {
			problems = append(problems, result.Detail)
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid watch directories:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return out, nil
}
