package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestHookListUnmarshalScalarAndMapping(t *testing.T) {
	data := []byte(`
hooks:
  - "startup-before: :set +s"
  - event: reload-after
    shell: echo done
    background: true
`)
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		t.Fatal(err)
	}
	if len(fc.Hooks) != 2 {
		t.Fatalf("got %d hooks, want 2", len(fc.Hooks))
	}
	if fc.Hooks[0].Event != "startup-before" || fc.Hooks[0].Repl != ":set +s" {
		t.Errorf("hooks[0] = %+v", fc.Hooks[0])
	}
	if fc.Hooks[1].Event != "reload-after" || fc.Hooks[1].Shell != "echo done" || !fc.Hooks[1].Background {
		t.Errorf("hooks[1] = %+v", fc.Hooks[1])
	}
}

func TestHookListRejectsMalformedScalar(t *testing.T) {
	var fc FileConfig
	err := yaml.Unmarshal([]byte("hooks:\n  - \"no-colon-here\"\n"), &fc)
	if err == nil {
		t.Fatal("expected error for scalar hook without a colon")
	}
}

func TestLoadFileMissingIsNotError(t *testing.T) {
	fc, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if fc == nil || len(fc.Hooks) != 0 {
		t.Errorf("fc = %+v", fc)
	}
}

func TestLoadFileParsesRealFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".ghcisup.yaml")
	content := "command: [\"cabal\", \"repl\"]\nenable-eval: true\nrestart-glob:\n  - \"*.cabal\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	fc, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !fc.EnableEval || len(fc.Command) != 2 || len(fc.RestartGlob) != 1 {
		t.Errorf("fc = %+v", fc)
	}
}
