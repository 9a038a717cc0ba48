package ghci

import (
	"context"
	"fmt"
	"io"

	"github.com/ehrlich-b/ghcisup/internal/ghci/complog"
	"github.com/ehrlich-b/ghcisup/internal/ghci/ioreader"
)

var sentinelAnchors = [][]byte{[]byte(Sentinel)}

// StdoutReader owns the REPL's stdout stream and classifies everything it
// reads between prompts into a compilation log.
type StdoutReader struct {
	r        *ioreader.Reader
	mirror   io.Writer
	stderrCh <-chan string
}

// NewStdoutReader wraps src for prompt-framed reads, mirroring consumed
// bytes to mirror and draining stderrCh (if non-nil) between prompts.
func NewStdoutReader(src io.Reader, mirror io.Writer, stderrCh <-chan string) *StdoutReader {
	return &StdoutReader{r: ioreader.New(src), mirror: mirror, stderrCh: stderrCh}
}

// Initialize awaits the first prompt after launch. Banner text the REPL
// printed before the prompt is mirrored but not recorded in log: it
// parses as neither a diagnostic nor a summary line, and Prompt drops
// unstructured lines.
func (s *StdoutReader) Initialize(ctx context.Context, log *complog.Log) error {
	return s.Prompt(ctx, ioreader.Anchored, log)
}

// Prompt awaits the next prompt sentinel under mode, classifying
// intervening text into log, then flushes stderr lines queued while
// stdout was being read so diagnostics interleave in roughly emission
// order: stdout is read to the prompt first, then stderr is drained.
func (s *StdoutReader) Prompt(ctx context.Context, mode ioreader.Mode, log *complog.Log) error {
	data, err := s.r.ReadUntil(ctx, sentinelAnchors, mode, s.mirror)
	if err != nil {
		return fmt.Errorf("ghci: await prompt: %w", err)
	}
	complog.ParseText(data, log)
	s.drainStderr(log)
	return nil
}

// drainStderr consumes every stderr line queued so far, without blocking
// for more to arrive, and appends to log each one that parses as a
// diagnostic header; other lines are dropped.
func (s *StdoutReader) drainStderr(log *complog.Log) {
	if s.stderrCh == nil {
		return
	}
	for {
		select {
		case line, ok := <-s.stderrCh:
			if !ok {
				return
			}
			if d, ok := complog.ParseDiagnosticHeader(line); ok {
				log.Push(d)
			}
		default:
			return
		}
	}
}

// ShowTargets awaits the next prompt and parses its output as a
// ":show targets" listing.
func (s *StdoutReader) ShowTargets(ctx context.Context, cwd string) ([]Target, error) {
	data, err := s.r.ReadUntil(ctx, sentinelAnchors, ioreader.Anchored, s.mirror)
	if err != nil {
		return nil, fmt.Errorf("ghci: show targets: %w", err)
	}
	return parseShowTargets(string(data), cwd)
}

// ShowPaths awaits the next prompt and parses its output as ":show paths".
func (s *StdoutReader) ShowPaths(ctx context.Context, cwd string) (ShowPaths, error) {
	data, err := s.r.ReadUntil(ctx, sentinelAnchors, ioreader.Anchored, s.mirror)
	if err != nil {
		return ShowPaths{}, fmt.Errorf("ghci: show paths: %w", err)
	}
	return ParseShowPaths(string(data), cwd)
}
