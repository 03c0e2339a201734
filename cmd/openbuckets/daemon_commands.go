package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"openbuckets/internal/daemonctl"
	"openbuckets/internal/logging"
	"openbuckets/internal/preflight"
)

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon started from this directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := ctx.controller(logging.NewNop())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			res, err := ctl.Stop()
			switch {
			case errors.Is(err, daemonctl.ErrNotRunning):
				fmt.Fprintln(out, "open-buckets daemon is not running")
				return nil
			case errors.Is(err, daemonctl.ErrStillRunning):
				return fmt.Errorf("daemon (pid %d) did not exit after SIGTERM; stop it manually", res.PID)
			case err != nil:
				return err
			}
			fmt.Fprintf(out, "Stopped open-buckets daemon (pid %d)\n", res.PID)
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [DIR...]",
		Short: "Show daemon state and readiness checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := ctx.controller(logging.NewNop())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			st := ctl.Status()

			lines := []string{renderSectionHeader("open-buckets", colorize)}
			switch {
			case st.Running:
				lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", st.PID), colorize))
			case st.Stale:
				lines = append(lines, renderStatusLine("Daemon", statusWarn, fmt.Sprintf("Not running (removed stale PID file for %d)", st.PID), colorize))
			default:
				lines = append(lines, renderStatusLine("Daemon", statusInfo, "Not running", colorize))
			}
			lines = append(lines,
				renderStatusLine("PID file", statusInfo, st.PIDPath, colorize),
				renderStatusLine("Log file", statusInfo, st.LogPath, colorize),
			)
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			fmt.Fprintln(out)

			results := preflight.RunAll(args)
			fmt.Fprintln(out, renderSectionHeader("Readiness", colorize))
			fmt.Fprintln(out, renderChecksTable(results, colorize))
			return nil
		},
	}
}
