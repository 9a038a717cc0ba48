package ghci

import "testing"

func TestParseShowTargetsMixedForms(t *testing.T) {
	output := "Main\n" +
		"Foo.Bar ( /proj/src/Foo/Bar.hs, interpreted )\n" +
		"Baz ( /proj/src/Baz.hs, object )\n"
	targets, err := parseShowTargets(output, "/proj")
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 3 {
		t.Fatalf("got %d targets, want 3", len(targets))
	}
	if targets[0].Kind != TargetKindName || targets[0].Module != "Main" {
		t.Errorf("targets[0] = %+v", targets[0])
	}
	if targets[1].Kind != TargetKindPath || targets[1].Path.Relative() != "src/Foo/Bar.hs" {
		t.Errorf("targets[1] = %+v", targets[1])
	}
	for _, tg := range targets {
		if !tg.Loaded {
			t.Errorf("target %+v should be Loaded", tg)
		}
	}
}

func TestTargetSetInsertIdempotentOnAbsPath(t *testing.T) {
	s := NewTargetSet()
	p, _ := NewNormalPath("A.hs", "/proj")
	s.Insert(Target{Path: p, Kind: TargetKindPath, Loaded: true})
	s.Insert(Target{Path: p, Kind: TargetKindPath, Loaded: false})
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	got, ok := s.Get(p.Absolute())
	if !ok || got.Loaded {
		t.Errorf("got = %+v, ok=%v", got, ok)
	}
}

func TestTargetSetRemove(t *testing.T) {
	s := NewTargetSet()
	p, _ := NewNormalPath("A.hs", "/proj")
	s.Insert(Target{Path: p, Kind: TargetKindPath})
	s.Remove(p.Absolute())
	if s.Contains(p.Absolute()) {
		t.Fatal("expected target removed")
	}
}

func TestParseShowTargetsMultipleBareNames(t *testing.T) {
	output := "Main\nData.Text\nData.Map\n"
	targets, err := parseShowTargets(output, "/proj")
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 3 {
		t.Fatalf("got %d targets, want 3", len(targets))
	}
}

func TestTargetSetResetKeepsDistinctNameTargets(t *testing.T) {
	s := NewTargetSet()
	s.Reset([]Target{
		{Module: "Main", Kind: TargetKindName, Loaded: true},
		{Module: "Data.Text", Kind: TargetKindName, Loaded: true},
		{Module: "Data.Map", Kind: TargetKindName, Loaded: true},
	})
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 (bare-name targets collided on empty path)", s.Len())
	}
}

func TestTargetSetInsertKeepsDistinctNameTargets(t *testing.T) {
	s := NewTargetSet()
	s.Insert(Target{Module: "Main", Kind: TargetKindName})
	s.Insert(Target{Module: "Data.Text", Kind: TargetKindName})
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
}
