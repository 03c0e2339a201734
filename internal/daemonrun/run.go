package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"openbuckets/internal/assembler"
	"openbuckets/internal/collector"
	"openbuckets/internal/config"
	"openbuckets/internal/daemonctl"
	"openbuckets/internal/deps"
	"openbuckets/internal/logging"
	"openbuckets/internal/search"
	"openbuckets/internal/watcher"
)

// Options configures a watch runtime.
type Options struct {
	WatchDirs  []string
	BaseDir    string
	Settings   config.Settings
	Resolver   *config.Resolver
	Controller *daemonctl.Controller
	Out        io.Writer
}

// Run watches opts.WatchDirs and writes one report per drop to opts.Out until
// ctx is cancelled or a termination signal arrives.
func Run(ctx context.Context, logger *slog.Logger, opts Options) error {
	if len(opts.WatchDirs) == 0 {
		return errors.New("at least one watch directory is required")
	}
	if opts.Controller == nil {
		return errors.New("daemon controller is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = config.NewResolver(config.DefaultGlobalDir())
	}

	sigCtx, cleanup := opts.Controller.InstallShutdownHook(ctx)
	defer cleanup()

	logDependencySnapshot(logger, opts, resolver)

	engine := search.New(logger,
		search.WithTimeout(opts.Settings.SearchTimeout),
		search.WithContextLines(opts.Settings.ContextLines),
	)
	builder := assembler.NewBuilder(logger, collector.New(logger), engine)
	processor := assembler.NewProcessor(logger, resolver, builder, opts.BaseDir, out)

	session := watcher.New(logger, opts.WatchDirs,
		func(ctx context.Context, drop watcher.Drop) {
			if err := processor.HandleDrop(ctx, drop.Path, drop.WatchDir); err != nil {
				logging.ErrorWithContext(logger, "drop processing failed", "drop_failed",
					logging.String("path", drop.Path),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check that stdout is writable"),
				)
			}
		},
		watcher.WithDebounce(opts.Settings.Debounce),
		watcher.WithDedupWindow(opts.Settings.DedupWindow),
		watcher.WithIgnore(opts.Controller.IsManagedPath),
	)
	defer session.Close()

	logger.Info("open-buckets started",
		logging.String(logging.FieldEventType, "runtime_started"),
		logging.Strings("watch_dirs", opts.WatchDirs),
		logging.String("base_dir", opts.BaseDir),
		logging.Bool("daemon_child", daemonctl.IsDaemonChild()),
		logging.Int("pid", os.Getpid()),
	)

	err := session.Run(sigCtx)
	if err != nil {
		return fmt.Errorf("watch session: %w", err)
	}
	logger.Info("open-buckets shutting down", logging.String(logging.FieldEventType, "runtime_stopped"))
	return nil
}

func logDependencySnapshot(logger *slog.Logger, opts Options, resolver *config.Resolver) {
	statuses := deps.CheckBinaries(deps.SearchTools())
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("global_config_dir", resolver.GlobalDir()),
		logging.Duration("debounce", opts.Settings.Debounce),
		logging.Duration("dedup_window", opts.Settings.DedupWindow),
		logging.Duration("search_timeout", opts.Settings.SearchTimeout),
	}
	for _, st := range statuses {
		attrs = append(attrs,
			logging.Bool(st.Command+"_available", st.Available()),
			logging.String(st.Command+"_binary", st.Path),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)

	if _, ok := deps.FirstAvailable(statuses); !ok {
		logging.WarnWithContext(logger, "no search tool on PATH", "search_tool_missing",
			logging.String(logging.FieldErrorHint, "install ripgrep or grep"),
			logging.String(logging.FieldImpact, "directory searches return no matches"),
		)
	}
}
