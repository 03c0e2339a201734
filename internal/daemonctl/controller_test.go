package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"openbuckets/internal/config"
	"openbuckets/internal/daemonctl"
	"openbuckets/internal/logging"
)

func shellCommand(script string) daemonctl.CommandFunc {
	return func([]string) (*exec.Cmd, error) {
		return exec.Command("/bin/sh", "-c", script), nil
	}
}

func newController(t *testing.T, script string, opts ...daemonctl.Option) (*daemonctl.Controller, string) {
	t.Helper()
	dir := t.TempDir()
	opts = append([]daemonctl.Option{
		daemonctl.WithCommand(shellCommand(script)),
		daemonctl.WithTimings(100*time.Millisecond, 500*time.Millisecond),
	}, opts...)
	return daemonctl.New(logging.NewNop(), dir, opts...), dir
}

func readPID(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("parse pid: %v", err)
	}
	return pid
}

func killOnCleanup(t *testing.T, pid int) {
	t.Cleanup(func() { _ = syscall.Kill(pid, syscall.SIGKILL) })
}

func TestStartReplacesStalePIDFile(t *testing.T) {
	ctl, _ := newController(t, "exec sleep 5", daemonctl.WithProbe(func(pid int) bool {
		return pid != 999999 && syscall.Kill(pid, 0) == nil
	}))
	if err := os.WriteFile(ctl.PIDPath(), []byte("999999\n"), 0o644); err != nil {
		t.Fatalf("seed pid file: %v", err)
	}

	res, err := ctl.Start([]string{"inbox"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	killOnCleanup(t, res.PID)
	if !res.RemovedStale {
		t.Fatal("expected stale PID file to be reported removed")
	}
	if got := readPID(t, ctl.PIDPath()); got != res.PID {
		t.Fatalf("expected pid file to hold %d, got %d", res.PID, got)
	}
	if _, err := os.Stat(ctl.LogPath()); err != nil {
		t.Fatalf("expected daemon log to exist: %v", err)
	}

	st := ctl.Status()
	if !st.Running || st.PID != res.PID {
		t.Fatalf("expected running status for %d, got %+v", res.PID, st)
	}

	stopped, err := ctl.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if stopped.PID != res.PID {
		t.Fatalf("expected stop of %d, got %d", res.PID, stopped.PID)
	}
	if _, err := os.Stat(ctl.PIDPath()); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, stat err=%v", err)
	}
}

func TestStartRefusesLiveProcess(t *testing.T) {
	ctl, _ := newController(t, "exec sleep 5")
	if err := os.WriteFile(ctl.PIDPath(), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatalf("seed pid file: %v", err)
	}
	_, err := ctl.Start(nil)
	if !errors.Is(err, daemonctl.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if got := readPID(t, ctl.PIDPath()); got != os.Getpid() {
		t.Fatalf("expected pid file untouched, got %d", got)
	}
}

func TestStartReportsEarlyExit(t *testing.T) {
	ctl, _ := newController(t, "echo boom >&2; exit 3")
	_, err := ctl.Start(nil)
	if err == nil {
		t.Fatal("expected error for child that exits during startup")
	}
	if _, statErr := os.Stat(ctl.PIDPath()); !os.IsNotExist(statErr) {
		t.Fatalf("expected no pid file, stat err=%v", statErr)
	}
	data, readErr := os.ReadFile(ctl.LogPath())
	if readErr != nil {
		t.Fatalf("read log: %v", readErr)
	}
	if !strings.Contains(string(data), "boom") {
		t.Fatalf("expected child stderr in log, got %q", data)
	}
}

func TestStartPassesDaemonEnvironment(t *testing.T) {
	ctl, dir := newController(t, `echo "$`+config.EnvDaemon+`" > "$OUT"; exec sleep 5`)
	out := filepath.Join(dir, "env.txt")
	t.Setenv("OUT", out)

	res, err := ctl.Start(nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	killOnCleanup(t, res.PID)
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read env marker: %v", err)
	}
	if strings.TrimSpace(string(data)) != "1" {
		t.Fatalf("expected %s=1 in child, got %q", config.EnvDaemon, data)
	}
}

func TestStopWithoutPIDFile(t *testing.T) {
	ctl, _ := newController(t, "true")
	if _, err := ctl.Stop(); !errors.Is(err, daemonctl.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestStopReportsProcessIgnoringTerm(t *testing.T) {
	ctl, _ := newController(t, `trap "" TERM; sleep 5`)
	res, err := ctl.Start(nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	killOnCleanup(t, res.PID)

	_, err = ctl.Stop()
	if !errors.Is(err, daemonctl.ErrStillRunning) {
		t.Fatalf("expected ErrStillRunning, got %v", err)
	}
	if got := readPID(t, ctl.PIDPath()); got != res.PID {
		t.Fatalf("expected pid file kept, got %d", got)
	}
}

func TestStatusCleansStalePIDFile(t *testing.T) {
	ctl, _ := newController(t, "true", daemonctl.WithProbe(func(int) bool { return false }))
	if err := os.WriteFile(ctl.PIDPath(), []byte("4242\n"), 0o644); err != nil {
		t.Fatalf("seed pid file: %v", err)
	}
	st := ctl.Status()
	if st.Running || !st.Stale || st.PID != 4242 {
		t.Fatalf("expected stale status, got %+v", st)
	}
	if _, err := os.Stat(ctl.PIDPath()); !os.IsNotExist(err) {
		t.Fatalf("expected stale pid file removed, stat err=%v", err)
	}
}

func TestShutdownHookRemovesOwnPIDFile(t *testing.T) {
	ctl, _ := newController(t, "true")
	t.Setenv(config.EnvDaemon, "1")
	if err := os.WriteFile(ctl.PIDPath(), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatalf("seed pid file: %v", err)
	}

	ctx, cleanup := ctl.InstallShutdownHook(context.Background())
	if ctx.Err() != nil {
		t.Fatal("expected live context before any signal")
	}
	cleanup()
	if _, err := os.Stat(ctl.PIDPath()); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, stat err=%v", err)
	}
}

func TestShutdownHookKeepsForeignPIDFile(t *testing.T) {
	ctl, _ := newController(t, "true")
	t.Setenv(config.EnvDaemon, "1")
	if err := os.WriteFile(ctl.PIDPath(), []byte("1"), 0o644); err != nil {
		t.Fatalf("seed pid file: %v", err)
	}
	_, cleanup := ctl.InstallShutdownHook(context.Background())
	cleanup()
	if _, err := os.Stat(ctl.PIDPath()); err != nil {
		t.Fatalf("expected foreign pid file kept: %v", err)
	}
}

func TestIsManagedPath(t *testing.T) {
	ctl, dir := newController(t, "true")
	for _, name := range []string{daemonctl.PIDFileName, daemonctl.LockFileName, daemonctl.LogFileName, "open-buckets-20260101-120000.log"} {
		if !ctl.IsManagedPath(filepath.Join(dir, name)) {
			t.Fatalf("expected %s to be managed", name)
		}
	}
	if ctl.IsManagedPath(filepath.Join(dir, "notes.txt")) {
		t.Fatal("expected unrelated file to be unmanaged")
	}
	if ctl.IsManagedPath(filepath.Join(dir, "sub", daemonctl.PIDFileName)) {
		t.Fatal("expected pid file in another directory to be unmanaged")
	}
}
