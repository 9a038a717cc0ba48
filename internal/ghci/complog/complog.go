// Package complog models the compilation log that accumulates while the
// stdout reader consumes REPL output between prompts, and the ghcid-style
// error-log file that gets rewritten from it after every compilation.
package complog

import (
	"fmt"
	"strings"
)

// Severity is the classification of a single diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one REPL-emitted compiler message.
type Diagnostic struct {
	Severity Severity
	Path     string
	Line     int
	Col      int
	Message  string
}

// Result is the terminal summary of a compilation: success or failure,
// plus how many modules were loaded.
type Result struct {
	Ok      bool
	Modules int
}

// Log accumulates diagnostics for one compilation (one :reload, :add, or
// startup) plus its terminal summary, if one was seen.
type Log struct {
	Diagnostics []Diagnostic
	result      *Result
}

// Push appends a diagnostic.
func (l *Log) Push(d Diagnostic) {
	l.Diagnostics = append(l.Diagnostics, d)
}

// SetResult records the terminal Ok/Err summary line for this compilation.
func (l *Log) SetResult(r Result) {
	l.result = &r
}

// Result returns the terminal summary, or nil if none was parsed (the
// stdin writer treats "no summary seen" as an unstructured echo, never as
// a failure by itself).
func (l *Log) Result() *Result {
	return l.result
}

// Failed reports whether compilation finished with a failure summary.
func (l *Log) Failed() bool {
	return l.result != nil && !l.result.Ok
}

// Append merges other's diagnostics and (if set) its result into l. Used
// when a single reload epoch spans several REPL interactions (e.g. an
// :add followed by a :reload) and the caller wants one combined log.
func (l *Log) Append(other *Log) {
	l.Diagnostics = append(l.Diagnostics, other.Diagnostics...)
	if other.result != nil {
		l.result = other.result
	}
}

// String renders the log the way it would appear echoed to a terminal,
// for debug logging.
func (l *Log) String() string {
	var b strings.Builder
	for _, d := range l.Diagnostics {
		fmt.Fprintf(&b, "%s:%d:%d: %s: %s\n", d.Path, d.Line, d.Col, d.Severity, d.Message)
	}
	if l.result != nil {
		if l.result.Ok {
			fmt.Fprintf(&b, "Ok, %d modules loaded.\n", l.result.Modules)
		} else {
			fmt.Fprintf(&b, "Failed, %d modules loaded.\n", l.result.Modules)
		}
	}
	return b.String()
}
