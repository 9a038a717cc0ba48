// Package reload implements the reload-decision engine: given a batch of
// file events plus the session's current target set and glob
// configuration, it classifies each path into {restart, reload, add,
// ignore} under precise precedence rules.
package reload

import "strings"

// EventKind distinguishes a file modification from a removal. Creation is
// treated as a Modify by the caller before events reach this package.
type EventKind int

const (
	Modify EventKind = iota
	Remove
)

// FileEvent is one normalized filesystem change to classify.
type FileEvent struct {
	// RelPath is the path relative to the session's working directory,
	// slash-separated, for glob matching.
	RelPath string
	// AbsPath is the canonical absolute path, for target-set membership
	// checks.
	AbsPath string
	Kind    EventKind
}

// Config bundles the inputs the classifier needs beyond the event batch
// itself.
type Config struct {
	RestartGlobs *GlobMatcher
	ReloadGlobs  *GlobMatcher
	// IsSourceFile reports whether path (by extension) is a source file
	// the REPL can load as a module.
	IsSourceFile func(path string) bool
	// ContainsTarget reports whether absPath is currently a member of the
	// session's target set.
	ContainsTarget func(absPath string) bool
}

// Actions holds the three disjoint vectors of paths to act on.
type Actions struct {
	NeedsRestart []FileEvent
	NeedsReload  []FileEvent
	NeedsAdd     []FileEvent
}

// Kind is the overall disposition implied by an Actions value.
type Kind int

const (
	KindNone Kind = iota
	KindReload
	KindRestart
)

func (k Kind) String() string {
	switch k {
	case KindRestart:
		return "restart"
	case KindReload:
		return "reload"
	default:
		return "none"
	}
}

// NeedsAddOrReload reports whether any module needs to be added or
// reloaded.
func (a *Actions) NeedsAddOrReload() bool {
	return len(a.NeedsAdd) > 0 || len(a.NeedsReload) > 0
}

// NeedsRestartAny reports whether a full restart is required.
func (a *Actions) NeedsRestartAny() bool {
	return len(a.NeedsRestart) > 0
}

// Kind returns Restart if any event requires a restart, else Reload if
// anything needs to be added or reloaded, else None. This realizes
// restart absorption (property 2): one restart-classified event makes the
// entire batch a restart.
func (a *Actions) Kind() Kind {
	switch {
	case a.NeedsRestartAny():
		return KindRestart
	case a.NeedsAddOrReload():
		return KindReload
	default:
		return KindNone
	}
}

type action int

const (
	actionNone action = iota
	actionRestart
	actionReload
	actionAdd
)

// isBuildFile recognizes project/build files that the REPL cannot hot-load
// regardless of glob configuration: ".cabal"-style project manifests and
// REPL rc files.
func isBuildFile(relPath string) bool {
	if ext := extension(relPath); ext == "cabal" {
		return true
	}
	return baseName(relPath) == ".ghci"
}

func extension(path string) string {
	base := baseName(path)
	if idx := strings.LastIndexByte(base, '.'); idx >= 0 && idx < len(base)-1 {
		return base[idx+1:]
	}
	return ""
}

func baseName(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// classify applies the per-event precedence rules described in the
// reload-decision engine's contract to one event. A path whitelisted by
// the reload globs is always a Reload, even for a brand new path — the
// original rationale is that "extra extensions" (globs beyond the
// source-file set) are always reloaded, never added. Only a plain source
// file modification disambiguates Reload vs Add by target-set membership.
func classify(cfg Config, ev FileEvent) action {
	restartMatch := cfg.RestartGlobs.Matched(ev.RelPath)
	reloadMatch := cfg.ReloadGlobs.Matched(ev.RelPath)
	isSource := cfg.IsSourceFile(ev.RelPath)

	removedTrackedSource := ev.Kind == Remove && isSource && cfg.ContainsTarget(ev.AbsPath)

	if (!restartMatch.IsIgnore() && (isBuildFile(ev.RelPath) || restartMatch.IsWhitelist())) ||
		removedTrackedSource {
		return actionRestart
	}
	if reloadMatch.IsWhitelist() {
		return actionReload
	}
	if !reloadMatch.IsIgnore() && ev.Kind == Modify && isSource {
		if cfg.ContainsTarget(ev.AbsPath) {
			return actionReload
		}
		return actionAdd
	}
	return actionNone
}

// Classify computes the Actions for a batch of events against cfg. Every
// event (property 1) is placed in exactly one of
// {restart, reload, add, ignore}.
func Classify(events []FileEvent, cfg Config) Actions {
	var actions Actions
	for _, ev := range events {
		switch classify(cfg, ev) {
		case actionRestart:
			actions.NeedsRestart = append(actions.NeedsRestart, ev)
		case actionReload:
			actions.NeedsReload = append(actions.NeedsReload, ev)
		case actionAdd:
			actions.NeedsAdd = append(actions.NeedsAdd, ev)
		}
	}
	return actions
}
