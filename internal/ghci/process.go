package ghci

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/ghcisup/internal/logger"
)

// killGrace is how long ProcessWatcher waits after SIGTERM before
// escalating to SIGKILL.
const killGrace = 5 * time.Second

// ExitReport describes how the REPL process group ended.
type ExitReport struct {
	Err         error
	Intentional bool
}

// setProcessGroup configures cmd to run in its own process group, so a
// single signal to the group reaches every child the REPL spawns (build
// drivers, test runners) — necessary for SIGINT to cancel an in-flight
// compilation without the signal being lost to a grandchild.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// ProcessWatcher owns the spawned REPL process group: it waits for the
// child to exit and either reports an unexpected death upward or, if an
// intentional restart/shutdown signal arrived first, exits quietly after
// tearing the group down itself.
type ProcessWatcher struct {
	cmd  *exec.Cmd
	pgid int

	restart  chan struct{}
	exitedCh chan error
}

// NewProcessWatcher wraps an already-started cmd (started with
// setProcessGroup applied) for lifecycle supervision.
func NewProcessWatcher(cmd *exec.Cmd) (*ProcessWatcher, error) {
	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil {
		return nil, fmt.Errorf("ghci: resolve process group: %w", err)
	}
	w := &ProcessWatcher{
		cmd:      cmd,
		pgid:     pgid,
		restart:  make(chan struct{}, 1),
		exitedCh: make(chan error, 1),
	}
	go func() {
		w.exitedCh <- cmd.Wait()
	}()
	return w, nil
}

// Interrupt sends SIGINT to the process group, canceling in-flight
// compilation without killing the REPL itself.
func (w *ProcessWatcher) Interrupt() error {
	return w.signalGroup(syscall.SIGINT)
}

// RequestRestart signals the watcher to tear the group down and return
// quietly, without reporting the exit as unexpected. Non-blocking: a
// watcher can only be asked to restart once before it's replaced.
func (w *ProcessWatcher) RequestRestart() {
	select {
	case w.restart <- struct{}{}:
	default:
	}
}

// Run selects between the child exiting on its own, a restart request, or
// ctx being canceled (program shutdown), in all non-exit cases terminating
// the group with SIGTERM and a SIGKILL fallback. It returns an ExitReport
// exactly once the process group is confirmed gone.
func (w *ProcessWatcher) Run(ctx context.Context) ExitReport {
	select {
	case err := <-w.exitedCh:
		return ExitReport{Err: err, Intentional: false}
	case <-w.restart:
		w.terminateAndWait()
		return ExitReport{Intentional: true}
	case <-ctx.Done():
		w.terminateAndWait()
		return ExitReport{Err: ctx.Err(), Intentional: true}
	}
}

// terminateAndWait sends SIGTERM to the group, escalating to SIGKILL if
// the group hasn't exited within killGrace, and blocks until it has.
func (w *ProcessWatcher) terminateAndWait() {
	if err := w.signalGroup(syscall.SIGTERM); err != nil {
		logger.Debug("ghci: SIGTERM to process group failed", "pgid", w.pgid, "error", err)
	}
	select {
	case <-w.exitedCh:
		return
	case <-time.After(killGrace):
	}
	if err := w.signalGroup(syscall.SIGKILL); err != nil {
		logger.Debug("ghci: SIGKILL to process group failed", "pgid", w.pgid, "error", err)
	}
	<-w.exitedCh
}

func (w *ProcessWatcher) signalGroup(sig syscall.Signal) error {
	return unix.Kill(-w.pgid, sig)
}
