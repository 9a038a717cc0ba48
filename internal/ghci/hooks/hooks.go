// Package hooks implements lifecycle-hook selection and execution: hooks
// are (event, command) pairs where command is either an in-REPL command
// string or an external shell command, run synchronously or in the
// background.
package hooks

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/google/uuid"

	"github.com/ehrlich-b/ghcisup/internal/logger"
)

// Event is a point in the session lifecycle at which hooks may fire.
type Event int

const (
	StartupBefore Event = iota
	StartupAfter
	ReloadBefore
	ReloadAfter
	RestartBefore
	RestartAfter
	Test
)

// ParseEvent parses the kebab-case event names used on the CLI and in
// project config files ("startup-before", "reload-after", "test", ...).
func ParseEvent(name string) (Event, bool) {
	switch name {
	case "startup-before":
		return StartupBefore, true
	case "startup-after":
		return StartupAfter, true
	case "reload-before":
		return ReloadBefore, true
	case "reload-after":
		return ReloadAfter, true
	case "restart-before":
		return RestartBefore, true
	case "restart-after":
		return RestartAfter, true
	case "test":
		return Test, true
	default:
		return 0, false
	}
}

func (e Event) String() string {
	switch e {
	case StartupBefore:
		return "startup (before)"
	case StartupAfter:
		return "startup (after)"
	case ReloadBefore:
		return "reload (before)"
	case ReloadAfter:
		return "reload (after)"
	case RestartBefore:
		return "restart (before)"
	case RestartAfter:
		return "restart (after)"
	case Test:
		return "test"
	default:
		return "unknown"
	}
}

// Command is a tagged variant: either an in-REPL command string, or a
// shell command with a background flag.
type Command struct {
	// Repl holds an in-REPL command (e.g. ":set +s"). Empty if this is a
	// shell command.
	Repl string
	// Shell holds a shell command line. Empty if this is an in-REPL
	// command.
	Shell string
	// Background runs Shell without blocking the lifecycle step; the
	// handle is tracked for later pruning. Ignored for Repl commands.
	Background bool
}

func (c Command) String() string {
	if c.Shell != "" {
		if c.Background {
			return fmt.Sprintf("background shell %q", c.Shell)
		}
		return fmt.Sprintf("shell %q", c.Shell)
	}
	return fmt.Sprintf("ghci %q", c.Repl)
}

// Hook binds a Command to the Event that triggers it.
type Hook struct {
	Event   Event
	Command Command
}

// Opts is the full configured set of hooks, selected per lifecycle event
// in declaration order.
type Opts struct {
	Hooks []Hook
}

// Select returns the hooks registered for event, in declaration order.
func (o Opts) Select(event Event) []Hook {
	var out []Hook
	for _, h := range o.Hooks {
		if h.Event == event {
			out = append(out, h)
		}
	}
	return out
}

// backgroundHandle tracks one running background shell hook.
type backgroundHandle struct {
	id   string
	cmd  *exec.Cmd
	done chan error
}

// ReplRunner executes an in-REPL hook command. Its output is mirrored by
// the session but not added to any compilation log. Implemented by the
// session's stdin writer; injected here to avoid a dependency cycle
// between the hooks and ghci packages.
type ReplRunner func(ctx context.Context, command string) error

// Runner executes hooks selected by Opts, tracking background shell
// handles so they can be pruned once finished.
type Runner struct {
	mu      sync.Mutex
	handles []*backgroundHandle
	runRepl ReplRunner
}

// NewRunner returns a Runner that dispatches in-REPL hook commands to runRepl.
func NewRunner(runRepl ReplRunner) *Runner {
	return &Runner{runRepl: runRepl}
}

// Run executes hook's command. In-REPL commands and synchronous shell
// commands block until finished; background shell commands return once
// started, with their handle retained for Prune.
func (r *Runner) Run(ctx context.Context, hook Hook) error {
	switch {
	case hook.Command.Shell != "":
		return r.runShell(ctx, hook.Command)
	default:
		if r.runRepl == nil {
			return fmt.Errorf("hooks: no REPL runner configured for %s", hook.Command)
		}
		return r.runRepl(ctx, hook.Command.Repl)
	}
}

func (r *Runner) runShell(ctx context.Context, cmd Command) error {
	id := uuid.NewString()
	c := exec.CommandContext(ctx, "sh", "-c", cmd.Shell)
	logger.Info("running hook command", "id", id, "shell", cmd.Shell, "background", cmd.Background)

	if !cmd.Background {
		out, err := c.CombinedOutput()
		if len(out) > 0 {
			logger.Debug("hook output", "id", id, "output", string(out))
		}
		if err != nil {
			return fmt.Errorf("hooks: shell command %q: %w", cmd.Shell, err)
		}
		return nil
	}

	if err := c.Start(); err != nil {
		return fmt.Errorf("hooks: start background shell command %q: %w", cmd.Shell, err)
	}
	done := make(chan error, 1)
	h := &backgroundHandle{id: id, cmd: c, done: done}
	go func() {
		done <- c.Wait()
	}()

	r.mu.Lock()
	r.handles = append(r.handles, h)
	r.mu.Unlock()
	return nil
}

// Prune removes handles for background commands that have finished,
// logging any that exited with an error. Called after every reload, never
// eagerly — matching the lifecycle's "opportunistic" pruning discipline.
func (r *Runner) Prune() {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.handles[:0]
	for _, h := range r.handles {
		select {
		case err := <-h.done:
			if err != nil {
				logger.Warn("background hook command exited with error", "id", h.id, "error", err)
			}
		default:
			kept = append(kept, h)
		}
	}
	r.handles = kept
}

// Abandon is called on shutdown: outstanding background handles are
// deliberately left to run to completion independently, matching the
// resource model's "background shell tasks ... abandoned on shutdown".
func (r *Runner) Abandon() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.handles)
	r.handles = nil
	return n
}
