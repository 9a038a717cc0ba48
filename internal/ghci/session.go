// Package ghci implements the session supervisor: the component owning
// the REPL subprocess, its three standard streams, the compilation state
// machine, the reload-decision algorithm, lifecycle-hook orchestration,
// and the interruption/cancellation discipline that makes interactive
// reloads feel instantaneous.
package ghci

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/ehrlich-b/ghcisup/internal/ghci/complog"
	"github.com/ehrlich-b/ghcisup/internal/ghci/hooks"
	"github.com/ehrlich-b/ghcisup/internal/ghci/ioreader"
	"github.com/ehrlich-b/ghcisup/internal/ghci/reload"
	"github.com/ehrlich-b/ghcisup/internal/logger"
)

// ErrorKind classifies why a session-level operation failed, independent
// of the wrapped error's text, so callers (and the manager loop) can
// decide what's fatal without string-matching.
type ErrorKind int

const (
	// ErrSpawn means the child process could not be started.
	ErrSpawn ErrorKind = iota
	// ErrIO means a pipe read/write or file access failed.
	ErrIO
	// ErrParse means REPL output didn't match a recognized format.
	ErrParse
	// ErrUserCommand means a hook exited non-zero. Session does not
	// return this kind: runHooks logs every hook failure and carries on,
	// and no hook can be marked as required.
	ErrUserCommand
	// ErrUnexpectedExit means the REPL died outside an intentional
	// restart. Session does not return this kind: the process watcher
	// runs only during teardown, so an unexpected exit surfaces as an
	// error from the next REPL read or write and does not shut the
	// program down.
	ErrUnexpectedExit
	// ErrInterrupted means a reload was canceled; recovered locally,
	// never surfaced to the user beyond a debug log.
	ErrInterrupted
)

// Error wraps an underlying error with an ErrorKind.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Options configures one session supervisor for its whole lifetime,
// including across restarts (a restart replaces the subprocess and
// readers, but Options is reused unchanged).
type Options struct {
	// Command is the REPL launch command, e.g. ["cabal", "repl"].
	Command []string
	WorkDir string

	ErrorLogPath string
	EnableEval   bool

	RestartGlobs []string
	ReloadGlobs  []string

	NoInterruptReloads bool
	Clear              bool

	SourceExtensions map[string]bool

	Hooks hooks.Opts

	Stdout io.Writer
	Stderr io.Writer

	// History, if non-nil, receives a record of every completed
	// compilation. Optional.
	History HistorySink
}

// HistorySink receives a durable record of each completed compilation.
// Implemented by internal/ghci/history.DB; defined here (rather than
// imported as a concrete type) to avoid a dependency cycle.
type HistorySink interface {
	RecordCompilation(kind string, ok bool, modules int, diagnostics int)
}

// Session is a single supervisor instance: the process group, the three
// stream components, the error-log sink, the target set, and the
// session's view of the REPL's module search paths.
type Session struct {
	opts Options

	// mu guards every field below against concurrent access between the
	// goroutine driving Reload/Restart/Initialize and a separate
	// goroutine (the manager loop) calling InterruptSignal or
	// ResyncAfterInterrupt while that's in flight. It is held only for
	// brief field reads/writes, never across a blocked REPL I/O call:
	// holding it for the latter would deadlock, since unblocking that
	// I/O is exactly what InterruptSignal is for.
	mu sync.Mutex

	// rootCtx outlives any single Reload/Restart call; it roots the
	// background Handle so a superseded per-batch context (canceled by
	// the manager when a fresher file-event batch arrives) never tears
	// down the stderr reader of a REPL process that's still alive.
	rootCtx    context.Context
	rootCancel context.CancelFunc

	cmd     *exec.Cmd
	stdinFh io.WriteCloser
	watcher *ProcessWatcher

	stdin  *StdinWriter
	stdout *StdoutReader
	stderr *StderrReader

	bg *Handle

	targets *TargetSet
	evalCmd map[string][]EvalCommand
	paths   ShowPaths

	restartGlobs *reload.GlobMatcher
	reloadGlobs  *reload.GlobMatcher

	errorLog   *complog.ErrorLog
	hookRunner *hooks.Runner

	interrupted bool
}

// New constructs a session supervisor without spawning anything; call
// Initialize to start the REPL.
func New(opts Options) (*Session, error) {
	restartGlobs, err := reload.NewGlobMatcher(opts.RestartGlobs)
	if err != nil {
		return nil, newError(ErrParse, "ghci: restart globs: %w", err)
	}
	reloadGlobs, err := reload.NewGlobMatcher(opts.ReloadGlobs)
	if err != nil {
		return nil, newError(ErrParse, "ghci: reload globs: %w", err)
	}
	if opts.SourceExtensions == nil {
		opts.SourceExtensions = map[string]bool{"hs": true, "lhs": true}
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	s := &Session{
		opts:         opts,
		rootCtx:      rootCtx,
		rootCancel:   rootCancel,
		targets:      NewTargetSet(),
		evalCmd:      make(map[string][]EvalCommand),
		restartGlobs: restartGlobs,
		reloadGlobs:  reloadGlobs,
		errorLog:     complog.NewErrorLog(opts.ErrorLogPath),
	}
	s.hookRunner = hooks.NewRunner(s.runReplHook)
	return s, nil
}

// streams snapshots the current stdin writer and stdout reader under
// mu, so a caller mid-Restart can't hand back a stale pointer to
// something teardown is about to discard.
func (s *Session) streams() (*StdinWriter, *StdoutReader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stdin, s.stdout
}

// runReplHook adapts the session's stdin writer to hooks.ReplRunner.
func (s *Session) runReplHook(ctx context.Context, command string) error {
	stdinW, stdoutR := s.streams()
	_, err := stdinW.RunCommand(ctx, stdoutR, command)
	return err
}

// Initialize runs StartupBefore shell hooks, spawns the REPL, awaits its
// first prompt, runs StartupBefore in-REPL hooks, enumerates the initial
// target set, and runs any configured after-events. It is not
// cancel-safe: callers must complete or abandon it atomically.
func (s *Session) Initialize(ctx context.Context, after []hooks.Event) error {
	s.runStartupBeforeHooks(ctx, true)
	if err := s.spawn(); err != nil {
		return err
	}
	stdinW, stdoutR := s.streams()

	log := &complog.Log{}
	if err := stdinW.ConfigurePrompt(ctx, stdoutR, log); err != nil {
		return newError(ErrIO, "ghci: initial prompt: %w", err)
	}

	s.runStartupBeforeHooks(ctx, false)
	if err := s.refreshTargets(ctx); err != nil {
		return err
	}
	if s.opts.EnableEval {
		s.refreshEvalCommands()
	}
	return s.finishCompilation(ctx, log, "initialize", after)
}

// spawn starts the REPL subprocess in its own process group and wires up
// the stdin/stdout/stderr components and process watcher. The background
// stderr-reader goroutine is rooted in s.rootCtx, not any per-call
// context, so it outlives whatever caller (Initialize, or Restart from
// inside a per-batch Reload) happened to spawn this process.
func (s *Session) spawn() error {
	if len(s.opts.Command) == 0 {
		return newError(ErrSpawn, "ghci: no launch command configured")
	}
	cmd := exec.Command(s.opts.Command[0], s.opts.Command[1:]...)
	cmd.Dir = s.opts.WorkDir
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return newError(ErrSpawn, "ghci: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return newError(ErrSpawn, "ghci: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return newError(ErrSpawn, "ghci: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return newError(ErrSpawn, "ghci: start %v: %w", s.opts.Command, err)
	}

	watcher, err := NewProcessWatcher(cmd)
	if err != nil {
		return newError(ErrSpawn, "ghci: %w", err)
	}

	outMirror := s.mirror(s.opts.Stdout, os.Stdout)
	errMirror := s.mirror(s.opts.Stderr, os.Stderr)

	stderrReader := NewStderrReader(stderr, errMirror)
	stdoutReader := NewStdoutReader(stdout, outMirror, stderrReader.Lines())
	stdinWriter := NewStdinWriter(stdin)
	bg := NewHandle(s.rootCtx)

	s.mu.Lock()
	s.cmd = cmd
	s.stdinFh = stdin
	s.watcher = watcher
	s.stderr = stderrReader
	s.stdout = stdoutReader
	s.stdin = stdinWriter
	s.bg = bg
	s.mu.Unlock()

	bg.Spawn(func(ctx context.Context) { stderrReader.Run(ctx) })
	return nil
}

func (s *Session) mirror(configured io.Writer, fallback io.Writer) io.Writer {
	if configured != nil {
		return configured
	}
	return fallback
}

// Reload computes the reload actions for events and, for anything short
// of a full restart, applies them: clearing the screen and running
// ReloadBefore hooks if anything will be added or reloaded, issuing
// ":add" for new targets and a single ":reload" for changed ones, then
// refreshing eval commands and running ReloadAfter hooks.
//
// The computed kind is sent on kindReply before any blocking or
// destructive step is taken, so a caller watching for a fresher batch of
// events can decide whether to interrupt without waiting for Reload to
// finish: a KindRestart is not cancelable and must be awaited to
// completion, while anything else may be safely interrupted. kindReply
// must be buffered with capacity at least 1; Reload sends to it exactly
// once.
//
// Reload is cancel-safe once Interrupt has been called; it is not
// cancel-safe before that point.
func (s *Session) Reload(ctx context.Context, events []reload.FileEvent, kindReply chan<- reload.Kind) (reload.Kind, error) {
	s.mu.Lock()
	s.interrupted = false
	targetsSnapshot := s.targets
	s.mu.Unlock()

	actions := reload.Classify(events, reload.Config{
		RestartGlobs:   s.restartGlobs,
		ReloadGlobs:    s.reloadGlobs,
		IsSourceFile:   func(p string) bool { return IsSourceFile(p, s.opts.SourceExtensions) },
		ContainsTarget: targetsSnapshot.Contains,
	})
	kind := actions.Kind()
	kindReply <- kind

	switch kind {
	case reload.KindRestart:
		s.clearScreen()
		logger.Info("restarting REPL", "paths", pathsOf(actions.NeedsRestart))
		if err := s.Restart(ctx); err != nil {
			return kind, err
		}
		return kind, nil
	case reload.KindNone:
		return kind, nil
	}

	if actions.NeedsAddOrReload() {
		s.clearScreen()
		s.runHooks(ctx, hooks.ReloadBefore)
	}

	stdinW, stdoutR := s.streams()

	log := &complog.Log{}
	for _, ev := range actions.NeedsAdd {
		addLog, err := stdinW.AddModule(ctx, stdoutR, ev.RelPath)
		if err != nil {
			return kind, newError(classifyIOErr(ctx, err), "ghci: add %s: %w", ev.RelPath, err)
		}
		log.Append(addLog)
		np, nerr := NewNormalPath(ev.AbsPath, s.opts.WorkDir)
		if nerr == nil {
			s.mu.Lock()
			s.targets.Insert(Target{Path: np, Kind: TargetKindPath, Loaded: !addLog.Failed()})
			s.mu.Unlock()
		}
	}
	if len(actions.NeedsReload) > 0 {
		reloadLog, err := stdinW.Reload(ctx, stdoutR)
		if err != nil {
			return kind, newError(classifyIOErr(ctx, err), "ghci: reload: %w", err)
		}
		log.Append(reloadLog)
		s.mu.Lock()
		for _, ev := range actions.NeedsReload {
			s.targets.SetLoaded(ev.AbsPath, !reloadLog.Failed())
		}
		s.mu.Unlock()
	}

	if s.opts.EnableEval {
		for _, ev := range append(append([]reload.FileEvent{}, actions.NeedsAdd...), actions.NeedsReload...) {
			s.refreshEvalCommandsFor(ev.AbsPath)
		}
	}

	if err := s.finishCompilation(ctx, log, "reload", []hooks.Event{hooks.ReloadAfter}); err != nil {
		return kind, err
	}
	s.hookRunner.Prune()
	return kind, nil
}

// Restart tears down the current REPL process (if any) and spawns a
// fresh one, re-running startup hooks and re-enumerating targets. It is
// never cancel-safe: callers must complete or abandon it atomically.
func (s *Session) Restart(ctx context.Context) error {
	s.runHooks(ctx, hooks.RestartBefore)
	s.teardown()
	if err := s.Initialize(ctx, []hooks.Event{hooks.RestartAfter}); err != nil {
		return err
	}
	return nil
}

// InterruptSignal sends SIGINT to the REPL's process group, canceling
// in-flight compilation without killing the REPL. It unblocks whatever
// stdout read the in-progress Reload is suspended in; callers that drove
// that Reload from a separate goroutine must observe it return before
// calling ResyncAfterInterrupt, since only one reader may be active on
// the stdout stream at a time.
func (s *Session) InterruptSignal() error {
	s.mu.Lock()
	watcher := s.watcher
	s.interrupted = true
	s.mu.Unlock()

	if watcher == nil {
		return nil
	}
	if err := watcher.Interrupt(); err != nil {
		return newError(ErrIO, "ghci: interrupt: %w", err)
	}
	return nil
}

// ResyncAfterInterrupt awaits the next prompt in Anywhere mode (the
// interrupted command may have left output mid-line) so the session is
// ready to service the next Reload. Must only be called once the
// previously in-flight Reload has returned.
func (s *Session) ResyncAfterInterrupt(ctx context.Context) error {
	_, stdoutR := s.streams()
	log := &complog.Log{}
	if err := stdoutR.Prompt(ctx, ioreader.Anywhere, log); err != nil {
		return newError(ErrInterrupted, "ghci: resync after interrupt: %w", err)
	}
	return nil
}

// Interrupt performs InterruptSignal followed by ResyncAfterInterrupt.
// Safe to call directly only when no other goroutine is concurrently
// driving this session's stdout reader.
func (s *Session) Interrupt(ctx context.Context) error {
	if err := s.InterruptSignal(); err != nil {
		return err
	}
	return s.ResyncAfterInterrupt(ctx)
}

// teardown asks the process watcher to terminate the current process
// group and waits for it, discarding the now-stale stream components.
// The blocking watcher.Run call happens outside s.mu: holding the lock
// across it would block InterruptSignal's own lock-and-read of s.watcher
// for as long as teardown takes, with nothing left to interrupt.
func (s *Session) teardown() {
	s.mu.Lock()
	watcher := s.watcher
	bg := s.bg
	stdinFh := s.stdinFh
	s.mu.Unlock()

	if watcher == nil {
		return
	}
	watcher.RequestRestart()
	watcher.Run(context.Background())
	if bg != nil {
		bg.Shutdown()
		bg.Wait()
	}
	if stdinFh != nil {
		stdinFh.Close()
	}

	s.mu.Lock()
	s.watcher = nil
	s.stdin = nil
	s.stdout = nil
	s.stderr = nil
	s.bg = nil
	s.stdinFh = nil
	s.mu.Unlock()
}

// Shutdown tears down the REPL process group, abandons outstanding
// background hook handles, and cancels the session's root context,
// releasing the background stderr-reader Handle for good.
func (s *Session) Shutdown() {
	s.teardown()
	if s.hookRunner != nil {
		if n := s.hookRunner.Abandon(); n > 0 {
			logger.Debug("abandoned background hook commands on shutdown", "count", n)
		}
	}
	s.rootCancel()
}

// finishCompilation writes the error-log file, records history, logs a
// summary, and runs the hooks for after.
func (s *Session) finishCompilation(ctx context.Context, log *complog.Log, kind string, after []hooks.Event) error {
	if err := s.errorLog.Write(log); err != nil {
		logger.Warn("failed to write error log", "error", err)
	}
	if s.opts.History != nil {
		result := log.Result()
		ok := result == nil || result.Ok
		modules := 0
		if result != nil {
			modules = result.Modules
		}
		s.opts.History.RecordCompilation(kind, ok, modules, len(log.Diagnostics))
	}
	if log.Failed() {
		logger.Warn("compilation failed", "kind", kind, "diagnostics", len(log.Diagnostics))
	} else {
		logger.Info("compilation finished", "kind", kind, "diagnostics", len(log.Diagnostics))
	}
	for _, ev := range after {
		s.runHooks(ctx, ev)
	}
	return nil
}

// refreshTargets re-derives the session's search paths and re-enumerates
// ":show targets" into a fresh target set.
func (s *Session) refreshTargets(ctx context.Context) error {
	if err := s.refreshPaths(ctx); err != nil {
		return err
	}
	stdinW, stdoutR := s.streams()
	targets, err := stdinW.ShowTargets(ctx, stdoutR, s.opts.WorkDir)
	if err != nil {
		return newError(ErrParse, "ghci: show targets: %w", err)
	}
	s.mu.Lock()
	s.targets.Reset(targets)
	s.mu.Unlock()
	return nil
}

// refreshPaths re-derives the session's working directory and module
// search roots via ":show paths".
func (s *Session) refreshPaths(ctx context.Context) error {
	stdinW, stdoutR := s.streams()
	paths, err := stdinW.ShowPaths(ctx, stdoutR, s.opts.WorkDir)
	if err != nil {
		return newError(ErrParse, "ghci: show paths: %w", err)
	}
	s.mu.Lock()
	s.paths = paths
	s.mu.Unlock()
	return nil
}

// refreshEvalCommands re-parses eval commands from every current target's
// source file.
func (s *Session) refreshEvalCommands() {
	for _, t := range s.targets.All() {
		s.refreshEvalCommandsFor(t.Path.Absolute())
	}
}

func (s *Session) refreshEvalCommandsFor(absPath string) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		logger.Debug("failed to read source file for eval commands", "path", absPath, "error", err)
		return
	}
	np, err := NewNormalPath(absPath, s.opts.WorkDir)
	if err != nil {
		return
	}
	s.evalCmd[absPath] = ParseEvalCommands(np, string(data))
}

// EvalCommands returns every eval command currently known across all
// targets, ordered by path then line.
func (s *Session) EvalCommands() []EvalCommand {
	var out []EvalCommand
	keys := make([]string, 0, len(s.evalCmd))
	for k := range s.evalCmd {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, s.evalCmd[k]...)
	}
	return out
}

// Eval evaluates an EvalCommand and returns its compilation log.
func (s *Session) Eval(ctx context.Context, module string, cmd EvalCommand) (*complog.Log, error) {
	stdinW, stdoutR := s.streams()
	log, err := stdinW.Eval(ctx, stdoutR, module, cmd.Command)
	if err != nil {
		return nil, newError(classifyIOErr(ctx, err), "ghci: eval %s:%d: %w", cmd.Path, cmd.Line, err)
	}
	return log, nil
}

// runHooks runs every hook registered for event, logging (not
// propagating) any failure: a hook failing is an ErrUserCommand, not
// fatal to the session.
func (s *Session) runHooks(ctx context.Context, event hooks.Event) {
	for _, h := range s.opts.Hooks.Select(event) {
		if err := s.hookRunner.Run(ctx, h); err != nil {
			logger.Warn("hook command failed", "event", event, "command", h.Command, "error", err)
		}
	}
}

// runStartupBeforeHooks runs the StartupBefore hooks that are shell
// commands (shell true, before any REPL process exists) or in-REPL
// commands (shell false), logging failures like runHooks.
func (s *Session) runStartupBeforeHooks(ctx context.Context, shell bool) {
	for _, h := range s.opts.Hooks.Select(hooks.StartupBefore) {
		if (h.Command.Shell != "") != shell {
			continue
		}
		if err := s.hookRunner.Run(ctx, h); err != nil {
			logger.Warn("hook command failed", "event", hooks.StartupBefore, "command", h.Command, "error", err)
		}
	}
}

func (s *Session) clearScreen() {
	if !s.opts.Clear {
		return
	}
	w := s.mirror(s.opts.Stdout, os.Stdout)
	fmt.Fprint(w, "\x1b[2J\x1b[H")
}

func pathsOf(events []reload.FileEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.RelPath
	}
	return out
}

// classifyIOErr distinguishes a context cancellation (reported as
// ErrInterrupted, whatever canceled the context) from a genuine I/O
// failure.
func classifyIOErr(ctx context.Context, err error) ErrorKind {
	if ctx.Err() != nil {
		return ErrInterrupted
	}
	if strings.Contains(err.Error(), "context canceled") {
		return ErrInterrupted
	}
	return ErrIO
}
