package ghci

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/ehrlich-b/ghcisup/internal/logger"
)

// StderrReader consumes the REPL's stderr line-by-line, tees each line to
// a user-facing writer, and forwards a copy on a buffered channel so the
// stdout reader can attribute stderr-only diagnostics to the in-progress
// compilation.
type StderrReader struct {
	src    io.Reader
	mirror io.Writer
	ch     chan string
}

// stderrChanCapacity matches the "channel capacity 8" framing: the stdout
// reader drains this channel promptly between prompts, so backpressure
// here is acceptable and rare in practice.
const stderrChanCapacity = 8

// NewStderrReader wires src's lines to mirror and to a channel the stdout
// reader drains between prompts.
func NewStderrReader(src io.Reader, mirror io.Writer) *StderrReader {
	return &StderrReader{src: src, mirror: mirror, ch: make(chan string, stderrChanCapacity)}
}

// Lines returns the channel of forwarded stderr lines, closed when Run
// returns.
func (s *StderrReader) Lines() <-chan string { return s.ch }

// Run consumes src until it ends or ctx is canceled. Intended to run as a
// detached goroutine for the lifetime of one REPL process.
func (s *StderrReader) Run(ctx context.Context) {
	defer close(s.ch)

	scanner := bufio.NewScanner(s.src)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if s.mirror != nil {
			fmt.Fprintln(s.mirror, line)
		}
		select {
		case s.ch <- line:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		logger.Debug("stderr reader ended with error", "error", err)
	}
}
