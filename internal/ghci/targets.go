package ghci

import (
	"sort"
	"strings"
)

// TargetKind distinguishes how a target entered the target set: by
// module name alone (a bare "ModuleName" line of ":show targets") or by
// source path (the "ModuleName ( path, object )" form of ":show targets",
// or an explicit ":add <path>").
type TargetKind int

const (
	TargetKindName TargetKind = iota
	TargetKindPath
)

// Target is one source module the session is aware of, whether or not it
// currently compiles.
type Target struct {
	Path   NormalPath
	Module string // import name, if known; may be empty for KindPath targets
	Kind   TargetKind
	// Loaded reports whether this target compiled successfully in the
	// last compilation. A target that fails to compile doesn't show up in
	// ":show modules" and isn't, technically, loaded — but it's still a
	// target, and re-adding it would error, so it must still be tracked.
	Loaded bool
}

// key returns t's identity in a TargetSet: the absolute path for
// path-based targets, or a name-qualified key for name-based targets,
// which carry no path at all (their zero-value Path would otherwise
// collide with every other name-based target on the empty string).
func (t Target) key() string {
	if t.Kind == TargetKindName {
		return "name:" + t.Module
	}
	return t.Path.Absolute()
}

// TargetSet is the set of source modules currently considered part of the
// session. Membership is idempotent on absolute path for path-based
// targets, and on import name for name-based targets.
type TargetSet struct {
	byAbs map[string]*Target
}

// NewTargetSet returns an empty target set.
func NewTargetSet() *TargetSet {
	return &TargetSet{byAbs: make(map[string]*Target)}
}

// Contains reports whether absPath is a member of the set.
func (s *TargetSet) Contains(absPath string) bool {
	_, ok := s.byAbs[absPath]
	return ok
}

// Get returns the target at absPath, if any.
func (s *TargetSet) Get(absPath string) (Target, bool) {
	t, ok := s.byAbs[absPath]
	if !ok {
		return Target{}, false
	}
	return *t, true
}

// Insert adds or updates a target. Inserting a target whose key (see
// Target.key) is already present updates its Kind/Module/Loaded fields
// in place rather than duplicating the entry.
func (s *TargetSet) Insert(t Target) {
	s.byAbs[t.key()] = &t
}

// SetLoaded updates the Loaded flag for an existing target. No-op if
// absPath isn't a member.
func (s *TargetSet) SetLoaded(absPath string, loaded bool) {
	if t, ok := s.byAbs[absPath]; ok {
		t.Loaded = loaded
	}
}

// Remove drops a target from the set.
func (s *TargetSet) Remove(absPath string) {
	delete(s.byAbs, absPath)
}

// Len returns the number of targets.
func (s *TargetSet) Len() int {
	return len(s.byAbs)
}

// Paths returns every target's absolute path.
func (s *TargetSet) Paths() []string {
	out := make([]string, 0, len(s.byAbs))
	for abs := range s.byAbs {
		out = append(out, abs)
	}
	sort.Strings(out)
	return out
}

// All returns every target, ordered by absolute path, for deterministic
// iteration (e.g. when refreshing eval commands).
func (s *TargetSet) All() []Target {
	out := make([]Target, 0, len(s.byAbs))
	for _, t := range s.byAbs {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path.Less(out[j].Path) })
	return out
}

// Reset replaces the set's contents, e.g. after a fresh ":show targets"
// parse on session startup.
func (s *TargetSet) Reset(targets []Target) {
	s.byAbs = make(map[string]*Target, len(targets))
	for _, t := range targets {
		tt := t
		s.byAbs[tt.key()] = &tt
	}
}

// parseShowTargets parses ":show targets" output. Each loaded module is
// reported on its own line as either a bare module name (module-by-name
// target, loaded as a dependency) or "ModuleName ( path, interpreted )"
// / "ModuleName ( path, object )" (module-by-path target, explicitly
// ":add"-ed). Both forms report a module currently loaded.
func parseShowTargets(output, cwd string) ([]Target, error) {
	var out []Target
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, rest, hasParen := strings.Cut(line, "(")
		name = strings.TrimSpace(name)
		if !hasParen {
			out = append(out, Target{Module: name, Kind: TargetKindName, Loaded: true})
			continue
		}
		rest = strings.TrimSuffix(strings.TrimSpace(rest), ")")
		pathStr, _, _ := strings.Cut(rest, ",")
		pathStr = strings.TrimSpace(pathStr)
		path, err := NewNormalPath(pathStr, cwd)
		if err != nil {
			return nil, err
		}
		out = append(out, Target{Path: path, Module: name, Kind: TargetKindPath, Loaded: true})
	}
	return out, nil
}
