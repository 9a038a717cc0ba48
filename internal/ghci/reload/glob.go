package reload

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchResult is the outcome of matching a path against a GlobMatcher's
// pattern lists.
type MatchResult int

const (
	// MatchNone means no pattern in the list matched the path.
	MatchNone MatchResult = iota
	// MatchWhitelist means a plain (non-negated) pattern matched.
	MatchWhitelist
	// MatchIgnore means a negated ("!pattern") pattern matched, taking
	// precedence over any whitelist match in the same list.
	MatchIgnore
)

func (r MatchResult) IsIgnore() bool    { return r == MatchIgnore }
func (r MatchResult) IsWhitelist() bool { return r == MatchWhitelist }
func (r MatchResult) IsNone() bool      { return r == MatchNone }

// GlobMatcher classifies a relative path against a list of doublestar
// glob patterns. A pattern prefixed with "!" is an ignore rule; all other
// patterns are whitelist rules. Ignore rules take precedence over
// whitelist rules within the same matcher.
type GlobMatcher struct {
	whitelist []string
	ignore    []string
}

// NewGlobMatcher compiles patterns, splitting "!"-prefixed entries into
// the ignore list. It validates every pattern up front so a typo in a CLI
// flag or config file surfaces immediately rather than at match time.
func NewGlobMatcher(patterns []string) (*GlobMatcher, error) {
	m := &GlobMatcher{}
	for _, p := range patterns {
		if neg, ok := strings.CutPrefix(p, "!"); ok {
			if !doublestar.ValidatePattern(neg) {
				return nil, fmt.Errorf("reload: invalid glob pattern %q", p)
			}
			m.ignore = append(m.ignore, neg)
		} else {
			if !doublestar.ValidatePattern(p) {
				return nil, fmt.Errorf("reload: invalid glob pattern %q", p)
			}
			m.whitelist = append(m.whitelist, p)
		}
	}
	return m, nil
}

// Matched classifies path (expected to be slash-separated and relative to
// the session's working directory, matching how the patterns were
// authored).
func (m *GlobMatcher) Matched(path string) MatchResult {
	path = strings.ReplaceAll(path, "\\", "/")
	for _, p := range m.ignore {
		if ok, _ := doublestar.Match(p, path); ok {
			return MatchIgnore
		}
	}
	for _, p := range m.whitelist {
		if ok, _ := doublestar.Match(p, path); ok {
			return MatchWhitelist
		}
	}
	return MatchNone
}
