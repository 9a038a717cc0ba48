package ghci

import "testing"

func TestParseShowPaths(t *testing.T) {
	output := "Current working directory: /home/user/project\n" +
		"module import search paths:\n" +
		"    src\n" +
		"    app\n"
	p, err := ParseShowPaths(output, "/fallback")
	if err != nil {
		t.Fatal(err)
	}
	if p.CWD != "/home/user/project" {
		t.Errorf("CWD = %q", p.CWD)
	}
	if len(p.SearchPaths) != 2 || p.SearchPaths[0] != "src" || p.SearchPaths[1] != "app" {
		t.Errorf("SearchPaths = %v", p.SearchPaths)
	}
}

func TestPathToModule(t *testing.T) {
	p := ShowPaths{CWD: "/home/user/project", SearchPaths: []string{"src"}}
	np, err := NewNormalPath("/home/user/project/src/Foo/Bar.hs", "/home/user/project")
	if err != nil {
		t.Fatal(err)
	}
	mod, err := p.PathToModule(np)
	if err != nil {
		t.Fatal(err)
	}
	if mod != "Foo.Bar" {
		t.Errorf("module = %q, want Foo.Bar", mod)
	}
}

func TestPathToModuleOutsideSearchPaths(t *testing.T) {
	p := ShowPaths{CWD: "/home/user/project", SearchPaths: []string{"src"}}
	np, err := NewNormalPath("/home/user/project/other/Foo.hs", "/home/user/project")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.PathToModule(np); err == nil {
		t.Fatal("expected error for path outside search paths")
	}
}
