package ghci

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ehrlich-b/ghcisup/internal/ghci/complog"
	"github.com/ehrlich-b/ghcisup/internal/ghci/ioreader"
)

// StdinWriter serializes REPL command execution: one command in flight at
// a time, each followed by a drive of the stdout reader to the next
// prompt.
type StdinWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdinWriter wraps w (the REPL's stdin pipe) for serialized command
// execution.
func NewStdinWriter(w io.Writer) *StdinWriter {
	return &StdinWriter{w: w}
}

// ConfigurePrompt sends the startup directives that make the REPL emit
// Sentinel (and nothing else) as its prompt after every subsequent
// command. Called once, before the first command is ever issued.
func (w *StdinWriter) ConfigurePrompt(ctx context.Context, out *StdoutReader, log *complog.Log) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := io.WriteString(w.w, setPromptCommand); err != nil {
		return fmt.Errorf("ghci: configure prompt: %w", err)
	}
	return out.Prompt(ctx, ioreader.Anchored, log)
}

// run writes command terminated by a newline, then drives out to the next
// prompt under mode, returning the resulting compilation log.
func (w *StdinWriter) run(ctx context.Context, out *StdoutReader, mode ioreader.Mode, command string) (*complog.Log, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.w, "%s\n", command); err != nil {
		return nil, fmt.Errorf("ghci: write command %q: %w", command, err)
	}
	log := &complog.Log{}
	if err := out.Prompt(ctx, mode, log); err != nil {
		return nil, err
	}
	return log, nil
}

// Reload issues ":reload".
func (w *StdinWriter) Reload(ctx context.Context, out *StdoutReader) (*complog.Log, error) {
	return w.run(ctx, out, ioreader.Anchored, ":reload")
}

// AddModule issues ":add <path>" for a source file newly entering the
// target set.
func (w *StdinWriter) AddModule(ctx context.Context, out *StdoutReader, path string) (*complog.Log, error) {
	return w.run(ctx, out, ioreader.Anchored, fmt.Sprintf(":add %s", path))
}

// InterpretModule issues ":add *module", forcing GHC to interpret module
// rather than merely load its compiled object — required before eval can
// reach its top-level scope (GHC bug #13254: object-code modules cannot be
// the target of ":module +*").
func (w *StdinWriter) InterpretModule(ctx context.Context, out *StdoutReader, module string) (*complog.Log, error) {
	return w.run(ctx, out, ioreader.Anchored, fmt.Sprintf(":add *%s", module))
}

// ShowTargets issues ":show targets".
func (w *StdinWriter) ShowTargets(ctx context.Context, out *StdoutReader, cwd string) ([]Target, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := io.WriteString(w.w, ":show targets\n"); err != nil {
		return nil, fmt.Errorf("ghci: write :show targets: %w", err)
	}
	return out.ShowTargets(ctx, cwd)
}

// ShowPaths issues ":show paths".
func (w *StdinWriter) ShowPaths(ctx context.Context, out *StdoutReader, cwd string) (ShowPaths, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := io.WriteString(w.w, ":show paths\n"); err != nil {
		return ShowPaths{}, fmt.Errorf("ghci: write :show paths: %w", err)
	}
	return out.ShowPaths(ctx, cwd)
}

// RunCommand issues an arbitrary in-REPL command string, e.g. from a
// lifecycle hook.
func (w *StdinWriter) RunCommand(ctx context.Context, out *StdoutReader, command string) (*complog.Log, error) {
	return w.run(ctx, out, ioreader.Anchored, command)
}

// Eval evaluates expression in module's top-level scope: it first ensures
// module is interpreted (not merely object-loaded), opens the module's
// scope, runs the expression, then restores scope.
func (w *StdinWriter) Eval(ctx context.Context, out *StdoutReader, module, expression string) (*complog.Log, error) {
	if _, err := w.InterpretModule(ctx, out, module); err != nil {
		return nil, err
	}
	if _, err := w.run(ctx, out, ioreader.Anchored, fmt.Sprintf(":module + *%s", module)); err != nil {
		return nil, err
	}
	log, err := w.run(ctx, out, ioreader.Anchored, expression)
	if err != nil {
		return nil, err
	}
	if _, err := w.run(ctx, out, ioreader.Anchored, ":module -"); err != nil {
		return nil, fmt.Errorf("ghci: restore module scope after eval: %w", err)
	}
	return log, nil
}
