package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"openbuckets/internal/config"
	"openbuckets/internal/logging"
	"openbuckets/internal/services"
)

const (
	PIDFileName  = "open-buckets.pid"
	LockFileName = "open-buckets.pid.lock"
	LogFileName  = "open-buckets.log"

	defaultStartupWait = 500 * time.Millisecond
	defaultStopGrace   = time.Second
	stopPollInterval   = 50 * time.Millisecond
	logRotateBytes     = int64(10 * 1024 * 1024)
)

var (
	// ErrAlreadyRunning is returned by Start when the PID file names a live process.
	ErrAlreadyRunning = errors.New("daemon already running")
	// ErrNotRunning is returned by Stop when no live daemon is recorded.
	ErrNotRunning = errors.New("daemon not running")
	// ErrStillRunning is returned by Stop when the process outlives the grace period.
	ErrStillRunning = errors.New("daemon still running after SIGTERM")
)

// CommandFunc builds the command that becomes the daemon child.
type CommandFunc func(args []string) (*exec.Cmd, error)

// Option configures a Controller.
type Option func(*Controller)

// WithCommand overrides how the daemon child is built.
func WithCommand(fn CommandFunc) Option {
	return func(c *Controller) {
		if fn != nil {
			c.command = fn
		}
	}
}

// WithProbe overrides the liveness probe.
func WithProbe(fn func(pid int) bool) Option {
	return func(c *Controller) {
		if fn != nil {
			c.alive = fn
		}
	}
}

// WithTimings overrides the startup wait and stop grace period.
func WithTimings(startupWait, stopGrace time.Duration) Option {
	return func(c *Controller) {
		if startupWait > 0 {
			c.startupWait = startupWait
		}
		if stopGrace > 0 {
			c.stopGrace = stopGrace
		}
	}
}

// WithLogRetention sets how many days rotated daemon logs are kept.
func WithLogRetention(days int) Option {
	return func(c *Controller) {
		c.retentionDays = days
	}
}

// StartResult describes a successful Start.
type StartResult struct {
	PID          int
	LogPath      string
	RemovedStale bool
}

// StopResult describes the process Stop signalled.
type StopResult struct {
	PID int
}

// Status describes the recorded daemon.
type Status struct {
	Running bool
	PID     int
	PIDPath string
	LogPath string
	Stale   bool
}

// Controller starts, stops and inspects the daemon recorded in dir.
type Controller struct {
	logger        *slog.Logger
	dir           string
	command       CommandFunc
	alive         func(pid int) bool
	startupWait   time.Duration
	stopGrace     time.Duration
	retentionDays int
	now           func() time.Time
}

// New returns a Controller keeping its PID file in dir.
func New(logger *slog.Logger, dir string, opts ...Option) *Controller {
	c := &Controller{
		logger:      logging.NewComponentLogger(logger, "daemon"),
		dir:         dir,
		command:     selfCommand,
		alive:       processAlive,
		startupWait: defaultStartupWait,
		stopGrace:   defaultStopGrace,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PIDPath returns the PID file location.
func (c *Controller) PIDPath() string { return filepath.Join(c.dir, PIDFileName) }

// LockPath returns the start lock location.
func (c *Controller) LockPath() string { return filepath.Join(c.dir, LockFileName) }

// LogPath returns the daemon output log location.
func (c *Controller) LogPath() string { return filepath.Join(c.dir, LogFileName) }

// IsManagedPath reports whether path is one of the controller's own files,
// including rotated logs.
func (c *Controller) IsManagedPath(path string) bool {
	if filepath.Dir(path) != filepath.Clean(c.dir) {
		return false
	}
	switch base := filepath.Base(path); {
	case base == PIDFileName, base == LockFileName, base == LogFileName:
		return true
	case strings.HasPrefix(base, "open-buckets-") && strings.HasSuffix(base, ".log"):
		return true
	default:
		return false
	}
}

// IsDaemonChild reports whether this process was spawned by Start.
func IsDaemonChild() bool {
	return os.Getenv(config.EnvDaemon) == "1"
}

// Start spawns the daemon child with args and records its PID.
func (c *Controller) Start(args []string) (StartResult, error) {
	lock := flock.New(c.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return StartResult{}, services.Wrap(services.ErrTransient, "daemon", "acquire lock", "cannot lock PID file", err)
	}
	if !locked {
		return StartResult{}, fmt.Errorf("%w: another start is in progress", ErrAlreadyRunning)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			c.logger.Debug("release start lock failed", logging.Error(err))
		}
	}()

	result := StartResult{LogPath: c.LogPath()}
	pid, err := c.readPID()
	switch {
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		c.logger.Warn("unreadable PID file treated as stale",
			logging.String("pid_path", c.PIDPath()),
			logging.Error(err),
			logging.String(logging.FieldEventType, "pid_file_invalid"),
		)
		result.RemovedStale = c.removePIDFile() == nil
	case err == nil && c.alive(pid):
		return StartResult{PID: pid}, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
	case err == nil:
		c.logger.Info("removing stale PID file",
			logging.Int("pid", pid),
			logging.String(logging.FieldEventType, "pid_file_stale"),
		)
		result.RemovedStale = c.removePIDFile() == nil
	}

	logFile, err := c.openLog()
	if err != nil {
		return StartResult{}, err
	}
	defer logFile.Close()

	cmd, err := c.command(args)
	if err != nil {
		return StartResult{}, services.Wrap(services.ErrConfiguration, "daemon", "resolve executable", "cannot build daemon command", err)
	}
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = append(os.Environ(), config.EnvDaemon+"=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return StartResult{}, services.Wrap(services.ErrExternalTool, "daemon", "spawn", "cannot start daemon process", err)
	}

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()
	select {
	case waitErr := <-exited:
		if waitErr == nil {
			waitErr = errors.New("exited with status 0")
		}
		return StartResult{}, fmt.Errorf("daemon exited during startup (see %s): %w", c.LogPath(), waitErr)
	case <-time.After(c.startupWait):
	}

	result.PID = cmd.Process.Pid
	if err := os.WriteFile(c.PIDPath(), []byte(strconv.Itoa(result.PID)+"\n"), 0o644); err != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
		return StartResult{}, fmt.Errorf("write pid file: %w", err)
	}
	c.logger.Info("daemon started",
		logging.Int("pid", result.PID),
		logging.String("log_path", result.LogPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return result, nil
}

// Stop sends SIGTERM to the recorded daemon and waits for it to exit.
func (c *Controller) Stop() (StopResult, error) {
	pid, err := c.readPID()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			_ = c.removePIDFile()
		}
		return StopResult{}, ErrNotRunning
	}
	if !c.alive(pid) {
		_ = c.removePIDFile()
		return StopResult{PID: pid}, ErrNotRunning
	}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			_ = c.removePIDFile()
			return StopResult{PID: pid}, ErrNotRunning
		}
		return StopResult{PID: pid}, fmt.Errorf("signal daemon %d: %w", pid, err)
	}

	deadline := c.now().Add(c.stopGrace)
	for c.alive(pid) {
		if !c.now().Before(deadline) {
			logging.WarnWithContext(c.logger, "daemon ignored SIGTERM", "daemon_stop_timeout",
				logging.Int("pid", pid),
				logging.Duration("grace", c.stopGrace),
				logging.String(logging.FieldErrorHint, fmt.Sprintf("kill %d manually if it does not exit", pid)),
				logging.String(logging.FieldImpact, "PID file left in place"),
			)
			return StopResult{PID: pid}, fmt.Errorf("%w (pid %d)", ErrStillRunning, pid)
		}
		time.Sleep(stopPollInterval)
	}
	if err := c.removePIDFile(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return StopResult{PID: pid}, fmt.Errorf("remove pid file: %w", err)
	}
	c.logger.Info("daemon stopped",
		logging.Int("pid", pid),
		logging.String(logging.FieldEventType, "daemon_stopped"),
	)
	return StopResult{PID: pid}, nil
}

// Status reports whether the recorded daemon is alive. A stale PID file is
// removed.
func (c *Controller) Status() Status {
	st := Status{PIDPath: c.PIDPath(), LogPath: c.LogPath()}
	pid, err := c.readPID()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			st.Stale = c.removePIDFile() == nil
		}
		return st
	}
	st.PID = pid
	if c.alive(pid) {
		st.Running = true
		return st
	}
	st.Stale = c.removePIDFile() == nil
	return st
}

// InstallShutdownHook returns a context cancelled on SIGINT or SIGTERM. The
// cleanup func stops signal delivery and, in the daemon child, removes the
// PID file if it still names this process.
func (c *Controller) InstallShutdownHook(ctx context.Context) (context.Context, func()) {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	return sigCtx, func() {
		stop()
		if !IsDaemonChild() {
			return
		}
		pid, err := c.readPID()
		if err != nil || pid != os.Getpid() {
			return
		}
		if err := c.removePIDFile(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("remove pid file on shutdown failed", logging.Error(err))
		}
	}
}

func (c *Controller) readPID() (int, error) {
	data, err := os.ReadFile(c.PIDPath())
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file contents %q", strings.TrimSpace(string(data)))
	}
	return pid, nil
}

func (c *Controller) removePIDFile() error {
	return os.Remove(c.PIDPath())
}

func (c *Controller) openLog() (*os.File, error) {
	path := c.LogPath()
	now := c.now()
	if rotated, err := logging.RotateIfLarger(path, logRotateBytes, now); err != nil {
		c.logger.Warn("daemon log rotation failed", logging.Error(err))
	} else if rotated != "" {
		c.logger.Info("daemon log rotated", logging.String("rotated_path", rotated))
	}
	logging.PruneRotated(c.logger, path, c.retentionDays, now)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open daemon log: %w", err)
	}
	return f, nil
}

func selfCommand(args []string) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return exec.Command(exe, args...), nil
}

// processAlive treats EPERM as alive: the process exists but belongs to
// another user.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
