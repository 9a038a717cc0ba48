package reload

import "testing"

func isSourceExt(path string) bool {
	return len(path) > 3 && path[len(path)-3:] == ".hs"
}

func cfg(t *testing.T, restart, reloadGlobs []string, targets map[string]bool) Config {
	t.Helper()
	rg, err := NewGlobMatcher(restart)
	if err != nil {
		t.Fatalf("restart globs: %v", err)
	}
	lg, err := NewGlobMatcher(reloadGlobs)
	if err != nil {
		t.Fatalf("reload globs: %v", err)
	}
	return Config{
		RestartGlobs:   rg,
		ReloadGlobs:    lg,
		IsSourceFile:   isSourceExt,
		ContainsTarget: func(p string) bool { return targets[p] },
	}
}

func TestClassifyModifyExistingTargetIsReload(t *testing.T) {
	c := cfg(t, nil, nil, map[string]bool{"/proj/A.hs": true})
	actions := Classify([]FileEvent{{RelPath: "A.hs", AbsPath: "/proj/A.hs", Kind: Modify}}, c)
	if len(actions.NeedsReload) != 1 || len(actions.NeedsAdd) != 0 || len(actions.NeedsRestart) != 0 {
		t.Fatalf("actions = %+v", actions)
	}
}

func TestClassifyModifyNewSourceIsAdd(t *testing.T) {
	c := cfg(t, nil, nil, map[string]bool{})
	actions := Classify([]FileEvent{{RelPath: "B.hs", AbsPath: "/proj/B.hs", Kind: Modify}}, c)
	if len(actions.NeedsAdd) != 1 || len(actions.NeedsReload) != 0 || len(actions.NeedsRestart) != 0 {
		t.Fatalf("actions = %+v", actions)
	}
}

func TestClassifyRemoveTrackedTargetIsRestart(t *testing.T) {
	c := cfg(t, nil, nil, map[string]bool{"/proj/A.hs": true})
	actions := Classify([]FileEvent{{RelPath: "A.hs", AbsPath: "/proj/A.hs", Kind: Remove}}, c)
	if len(actions.NeedsRestart) != 1 {
		t.Fatalf("actions = %+v", actions)
	}
}

func TestClassifyRemoveUntrackedSourceIsIgnored(t *testing.T) {
	c := cfg(t, nil, nil, map[string]bool{})
	actions := Classify([]FileEvent{{RelPath: "Z.hs", AbsPath: "/proj/Z.hs", Kind: Remove}}, c)
	if actions.Kind() != KindNone {
		t.Fatalf("actions = %+v", actions)
	}
}

func TestClassifyCabalFileAlwaysRestarts(t *testing.T) {
	c := cfg(t, nil, nil, map[string]bool{})
	actions := Classify([]FileEvent{{RelPath: "project.cabal", AbsPath: "/proj/project.cabal", Kind: Modify}}, c)
	if len(actions.NeedsRestart) != 1 {
		t.Fatalf("actions = %+v", actions)
	}
}

func TestClassifyDotGhciAlwaysRestarts(t *testing.T) {
	c := cfg(t, nil, nil, map[string]bool{})
	actions := Classify([]FileEvent{{RelPath: ".ghci", AbsPath: "/proj/.ghci", Kind: Modify}}, c)
	if len(actions.NeedsRestart) != 1 {
		t.Fatalf("actions = %+v", actions)
	}
}

func TestClassifyRestartGlobIgnoreDemotesToReload(t *testing.T) {
	// S5: a restart-glob match on project.cabal restarts by default, but
	// an explicit ignore on the restart globs demotes the .cabal rule,
	// and the reload globs decide from there.
	c := cfg(t, []string{"!project.cabal"}, []string{"project.cabal"}, map[string]bool{})
	actions := Classify([]FileEvent{{RelPath: "project.cabal", AbsPath: "/proj/project.cabal", Kind: Modify}}, c)
	if len(actions.NeedsRestart) != 0 {
		t.Fatalf("expected no restart, got %+v", actions)
	}
	if len(actions.NeedsReload) != 1 {
		t.Fatalf("expected reload, got %+v", actions)
	}
}

func TestClassifyExplicitReloadGlobAlwaysReloadsNeverAdds(t *testing.T) {
	// A reload-whitelisted "extra extension" always reloads, even for a
	// path that was never a target.
	c := cfg(t, nil, []string{"*.yaml"}, map[string]bool{})
	actions := Classify([]FileEvent{{RelPath: "config.yaml", AbsPath: "/proj/config.yaml", Kind: Modify}}, c)
	if len(actions.NeedsReload) != 1 || len(actions.NeedsAdd) != 0 {
		t.Fatalf("actions = %+v", actions)
	}
}

func TestClassifyReloadGlobIgnoreSuppressesSourceReload(t *testing.T) {
	c := cfg(t, nil, []string{"!A.hs"}, map[string]bool{"/proj/A.hs": true})
	actions := Classify([]FileEvent{{RelPath: "A.hs", AbsPath: "/proj/A.hs", Kind: Modify}}, c)
	if actions.Kind() != KindNone {
		t.Fatalf("actions = %+v", actions)
	}
}

func TestRestartAbsorption(t *testing.T) {
	// Property 2: if any event classifies as restart, the final action
	// set equals {restart} regardless of other events.
	c := cfg(t, nil, nil, map[string]bool{"/proj/A.hs": true})
	events := []FileEvent{
		{RelPath: "A.hs", AbsPath: "/proj/A.hs", Kind: Modify},
		{RelPath: "B.hs", AbsPath: "/proj/B.hs", Kind: Modify},
		{RelPath: "project.cabal", AbsPath: "/proj/project.cabal", Kind: Modify},
	}
	actions := Classify(events, c)
	if actions.Kind() != KindRestart {
		t.Fatalf("expected Kind()=restart, got %v (%+v)", actions.Kind(), actions)
	}
}

func TestNonSourceNonGlobPathIsIgnored(t *testing.T) {
	c := cfg(t, nil, nil, map[string]bool{})
	actions := Classify([]FileEvent{{RelPath: "README.md", AbsPath: "/proj/README.md", Kind: Modify}}, c)
	if actions.Kind() != KindNone {
		t.Fatalf("actions = %+v", actions)
	}
}
