package ghci

import (
	"bufio"
	"strings"
)

// EvalCommand is one expression to evaluate, extracted from a comment
// marker in a source file (e.g. "-- >>> 1 + 1"). Eval commands are only
// collected when eval is enabled, and are re-scanned after every
// reload/add of the file they live in, whether or not it compiled.
type EvalCommand struct {
	Path NormalPath
	// Line is the 1-based line number of the marker itself.
	Line int
	// Command is the expression text, with continuation lines for a
	// multi-line block joined by "\n".
	Command string
}

const evalMarker = ">>>"

// ParseEvalCommands scans contents for "-- >>> expr" markers. A marker
// with text after it on the same line is a single-line command. A bare
// marker ("-- >>>" with nothing following) opens a block that continues
// through subsequent "-- "-prefixed lines until a line that isn't a
// comment or is an empty comment, collecting each continuation line as
// part of the command.
func ParseEvalCommands(path NormalPath, contents string) []EvalCommand {
	var out []EvalCommand
	scanner := bufio.NewScanner(strings.NewReader(contents))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		body, ok := commentBody(line)
		if !ok {
			continue
		}
		rest, ok := strings.CutPrefix(strings.TrimSpace(body), evalMarker)
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)
		markerLine := lineNo
		if rest != "" {
			out = append(out, EvalCommand{Path: path, Line: markerLine, Command: rest})
			continue
		}

		var block []string
		for scanner.Scan() {
			lineNo++
			contBody, ok := commentBody(scanner.Text())
			if !ok {
				break
			}
			contBody = strings.TrimSpace(contBody)
			if contBody == "" {
				break
			}
			block = append(block, contBody)
		}
		if len(block) > 0 {
			out = append(out, EvalCommand{Path: path, Line: markerLine, Command: strings.Join(block, "\n")})
		}
	}
	return out
}

// commentBody returns the text after a line comment marker, if line is
// (after leading whitespace) a "--"-style line comment.
func commentBody(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	body, ok := strings.CutPrefix(trimmed, "--")
	if !ok {
		return "", false
	}
	return body, true
}
