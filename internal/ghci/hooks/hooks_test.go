package hooks

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ehrlich-b/ghcisup/internal/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init("error", ""); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestOptsSelectPreservesDeclarationOrder(t *testing.T) {
	opts := Opts{Hooks: []Hook{
		{Event: ReloadAfter, Command: Command{Repl: "a"}},
		{Event: StartupBefore, Command: Command{Repl: "b"}},
		{Event: ReloadAfter, Command: Command{Repl: "c"}},
	}}
	got := opts.Select(ReloadAfter)
	if len(got) != 2 || got[0].Command.Repl != "a" || got[1].Command.Repl != "c" {
		t.Fatalf("got %+v", got)
	}
}

func TestParseEventAcceptsKnownNames(t *testing.T) {
	for _, name := range []string{"startup-before", "startup-after", "reload-before", "reload-after", "restart-before", "restart-after", "test"} {
		if _, ok := ParseEvent(name); !ok {
			t.Errorf("ParseEvent(%q) failed", name)
		}
	}
	if _, ok := ParseEvent("bogus"); ok {
		t.Error("expected ParseEvent(\"bogus\") to fail")
	}
}

func TestRunnerDispatchesReplCommandsToInjectedRunner(t *testing.T) {
	var seen string
	r := NewRunner(func(ctx context.Context, command string) error {
		seen = command
		return nil
	})
	if err := r.Run(context.Background(), Hook{Event: Test, Command: Command{Repl: ":set +s"}}); err != nil {
		t.Fatal(err)
	}
	if seen != ":set +s" {
		t.Errorf("seen = %q", seen)
	}
}

func TestRunnerWithoutReplRunnerErrors(t *testing.T) {
	r := NewRunner(nil)
	err := r.Run(context.Background(), Hook{Event: Test, Command: Command{Repl: ":reload"}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRunnerShellCommandSynchronous(t *testing.T) {
	r := NewRunner(nil)
	err := r.Run(context.Background(), Hook{Event: Test, Command: Command{Shell: "true"}})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRunnerShellCommandFailureWrapped(t *testing.T) {
	r := NewRunner(nil)
	err := r.Run(context.Background(), Hook{Event: Test, Command: Command{Shell: "false"}})
	if err == nil {
		t.Fatal("expected error from failing shell command")
	}
}

func TestRunnerBackgroundThenPrune(t *testing.T) {
	r := NewRunner(nil)
	if err := r.Run(context.Background(), Hook{Event: Test, Command: Command{Shell: "true", Background: true}}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 100 && len(r.handles) > 0; i++ {
		r.Prune()
		time.Sleep(time.Millisecond)
	}
	if len(r.handles) != 0 {
		t.Errorf("expected background handle to be pruned once finished, got %d", len(r.handles))
	}
}

func TestRunnerAbandonReturnsCount(t *testing.T) {
	r := NewRunner(nil)
	_ = r.Run(context.Background(), Hook{Event: Test, Command: Command{Shell: "sleep 0.01", Background: true}})
	if n := r.Abandon(); n != 1 {
		t.Errorf("Abandon() = %d, want 1", n)
	}
	if n := r.Abandon(); n != 0 {
		t.Errorf("second Abandon() = %d, want 0", n)
	}
}
