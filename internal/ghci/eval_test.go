package ghci

import (
	"reflect"
	"testing"
)

func TestParseEvalCommandsSingleLine(t *testing.T) {
	p, _ := NewNormalPath("A.hs", "/proj")
	src := "module A where\n\n-- >>> 1 + 1\nx :: Int\nx = 1\n"
	got := ParseEvalCommands(p, src)
	want := []EvalCommand{{Path: p, Line: 3, Command: "1 + 1"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestParseEvalCommandsMultiLineBlock(t *testing.T) {
	p, _ := NewNormalPath("A.hs", "/proj")
	src := "-- >>>\n-- let x = 1\n-- x + 1\ny = 2\n"
	got := ParseEvalCommands(p, src)
	want := []EvalCommand{{Path: p, Line: 1, Command: "let x = 1\nx + 1"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestParseEvalCommandsNoMarkerIsEmpty(t *testing.T) {
	p, _ := NewNormalPath("A.hs", "/proj")
	got := ParseEvalCommands(p, "module A where\nx = 1\n")
	if len(got) != 0 {
		t.Fatalf("got %+v, want none", got)
	}
}

func TestParseEvalCommandsMultipleMarkers(t *testing.T) {
	p, _ := NewNormalPath("A.hs", "/proj")
	src := "-- >>> 1\nx = 1\n-- >>> 2\ny = 2\n"
	got := ParseEvalCommands(p, src)
	if len(got) != 2 || got[0].Command != "1" || got[1].Command != "2" {
		t.Fatalf("got %+v", got)
	}
}
