package complog

import "testing"

func TestParseSummaryOk(t *testing.T) {
	r, ok := ParseSummary("Ok, 3 modules loaded.")
	if !ok {
		t.Fatal("expected match")
	}
	if !r.Ok || r.Modules != 3 {
		t.Errorf("got %+v", r)
	}
}

func TestParseSummaryFailed(t *testing.T) {
	r, ok := ParseSummary("Failed, 1 module loaded.")
	if !ok {
		t.Fatal("expected match")
	}
	if r.Ok || r.Modules != 1 {
		t.Errorf("got %+v", r)
	}
}

func TestParseSummaryNoMatch(t *testing.T) {
	if _, ok := ParseSummary("some other output"); ok {
		t.Fatal("expected no match")
	}
}

func TestParseDiagnosticHeader(t *testing.T) {
	d, ok := ParseDiagnosticHeader("src/A.hs:10:5: error: Variable not in scope: foo")
	if !ok {
		t.Fatal("expected match")
	}
	if d.Path != "src/A.hs" || d.Line != 10 || d.Col != 5 || d.Severity != SeverityError {
		t.Errorf("got %+v", d)
	}
	if d.Message != "Variable not in scope: foo" {
		t.Errorf("message = %q", d.Message)
	}
}

func TestParseTextMultiLineDiagnosticAndSummary(t *testing.T) {
	text := []byte(
		"src/A.hs:10:5: error: Variable not in scope: foo\n" +
			"    In the expression: foo\n" +
			"    In an equation for bar\n" +
			"Ok, 2 modules loaded.\n",
	)
	log := &Log{}
	unstructured := ParseText(text, log)
	if len(unstructured) != 0 {
		t.Errorf("unexpected unstructured lines: %v", unstructured)
	}
	if len(log.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %+v", log.Diagnostics)
	}
	d := log.Diagnostics[0]
	if d.Message != "Variable not in scope: foo\n    In the expression: foo\n    In an equation for bar" {
		t.Errorf("message = %q", d.Message)
	}
	res := log.Result()
	if res == nil || !res.Ok || res.Modules != 2 {
		t.Fatalf("result = %+v", res)
	}
}

func TestParseTextUnstructuredFallsThrough(t *testing.T) {
	text := []byte("some banner text\nmore banner text\n")
	log := &Log{}
	unstructured := ParseText(text, log)
	if len(unstructured) != 2 {
		t.Fatalf("unstructured = %v", unstructured)
	}
	if len(log.Diagnostics) != 0 || log.Result() != nil {
		t.Errorf("expected no structured output, got diagnostics=%v result=%v", log.Diagnostics, log.Result())
	}
}
