package complog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrorLog rewrites a ghcid-compatible error-log file after every
// compilation, for editor integration. Blocks are separated by a blank
// line; a block's first line is "path:line:col: severity: message", with
// indented continuation lines. An empty compilation produces an empty
// file.
type ErrorLog struct {
	path string
}

// NewErrorLog returns an ErrorLog writing to path. path may be empty, in
// which case Write is a no-op (no --error-file was configured).
func NewErrorLog(path string) *ErrorLog {
	return &ErrorLog{path: path}
}

// Write atomically rewrites the error-log file from log's diagnostics.
func (e *ErrorLog) Write(log *Log) error {
	if e.path == "" {
		return nil
	}

	var b strings.Builder
	for i, d := range log.Diagnostics {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s:%d:%d: %s: ", d.Path, d.Line, d.Col, d.Severity)
		lines := strings.Split(d.Message, "\n")
		b.WriteString(lines[0])
		b.WriteString("\n")
		for _, cont := range lines[1:] {
			b.WriteString("    ")
			b.WriteString(strings.TrimSpace(cont))
			b.WriteString("\n")
		}
	}

	tmp := e.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(e.path), 0755); err != nil {
		return fmt.Errorf("error-log: mkdir: %w", err)
	}
	if err := os.WriteFile(tmp, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("error-log: write temp: %w", err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("error-log: replace: %w", err)
	}
	return nil
}
