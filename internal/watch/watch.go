// Package watch implements the outer manager loop: it watches the
// project tree with fsnotify, debounces bursts of filesystem events into
// batches, and drives the session supervisor's Reload entry point,
// interrupting an in-flight reload when a fresher batch is ready.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/ehrlich-b/ghcisup/internal/ghci"
	"github.com/ehrlich-b/ghcisup/internal/ghci/reload"
	"github.com/ehrlich-b/ghcisup/internal/logger"
)

// DebounceWindow is how long the manager waits after the most recent
// filesystem event in a burst before dispatching the accumulated batch.
const DebounceWindow = 300 * time.Millisecond

// flushInterval caps how often a debounced batch may be dispatched. The
// limiter is consulted only after the debounce timer fires, so an event
// storm that never settles for DebounceWindow still holds one batch open
// until it does.
const flushInterval = 50 * time.Millisecond

// Manager watches a set of root directories and dispatches debounced
// reload batches to a session.
type Manager struct {
	session *ghci.Session
	watcher *fsnotify.Watcher
	roots   []string
	cwd     string
	limiter *rate.Limiter

	mu      sync.Mutex
	pending map[string]reload.FileEvent

	noInterrupt bool

	reloadMu      sync.Mutex
	cancelCurrent context.CancelFunc
	currentDone   chan struct{}
	currentKind   <-chan reload.Kind
}

// NewManager watches roots (recursively) for changes to dispatch against
// session. cwd is the session's working directory, used to compute
// relative paths for glob matching.
func NewManager(session *ghci.Session, cwd string, roots []string, noInterrupt bool) (*Manager, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: new watcher: %w", err)
	}
	m := &Manager{
		session:     session,
		watcher:     w,
		roots:       roots,
		cwd:         cwd,
		limiter:     rate.NewLimiter(rate.Every(flushInterval), 1),
		pending:     make(map[string]reload.FileEvent),
		noInterrupt: noInterrupt,
	}
	for _, root := range roots {
		if err := m.addRecursive(root); err != nil {
			w.Close()
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("watch: walk %s: %w", path, err)
		}
		if d.IsDir() {
			if err := m.watcher.Add(path); err != nil {
				return fmt.Errorf("watch: add %s: %w", path, err)
			}
		}
		return nil
	})
}

// Run consumes filesystem events until ctx is canceled or the watcher's
// channels close.
func (m *Manager) Run(ctx context.Context) error {
	defer m.watcher.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return fmt.Errorf("watch: events channel closed")
			}
			m.record(ev)
			if ev.Has(fsnotify.Create) {
				if fi, statErr := os.Stat(ev.Name); statErr == nil && fi.IsDir() {
					if err := m.addRecursive(ev.Name); err != nil {
						logger.Warn("watch: failed to watch new directory", "path", ev.Name, "error", err)
					}
				}
			}
			if timer == nil {
				timer = time.NewTimer(DebounceWindow)
			} else {
				timer.Reset(DebounceWindow)
			}
			timerC = timer.C

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return fmt.Errorf("watch: errors channel closed")
			}
			logger.Warn("watch: watcher error", "error", err)

		case <-timerC:
			timerC = nil
			if err := m.limiter.Wait(ctx); err != nil {
				return ctx.Err()
			}
			m.flush(ctx)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// record normalizes a raw fsnotify event into a reload.FileEvent and
// stashes it in the pending batch, keyed (and deduplicated) by absolute
// path — the latest event for a path within one debounce window wins.
func (m *Manager) record(ev fsnotify.Event) {
	if ev.Has(fsnotify.Chmod) {
		return
	}
	abs := ev.Name
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(m.cwd, abs)
	}
	rel, err := filepath.Rel(m.cwd, abs)
	if err != nil {
		rel = abs
	}
	kind := reload.Modify
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		kind = reload.Remove
	}

	m.mu.Lock()
	m.pending[abs] = reload.FileEvent{
		RelPath: filepath.ToSlash(rel),
		AbsPath: abs,
		Kind:    kind,
	}
	m.mu.Unlock()
}

func (m *Manager) flush(ctx context.Context) {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return
	}
	events := make([]reload.FileEvent, 0, len(m.pending))
	for _, ev := range m.pending {
		events = append(events, ev)
	}
	m.pending = make(map[string]reload.FileEvent)
	m.mu.Unlock()

	m.dispatch(ctx, events)
}

// dispatch interrupts any in-flight reload (unless configured not to)
// and starts a fresh one for events. Interruption discipline: SIGINT is
// sent and the superseded Reload is awaited to completion *before* the
// stdout reader is resynced, since only one goroutine may read the
// REPL's stdout stream at a time.
//
// A superseded Reload that turned out to be a restart is never
// interrupted: Session.Reload reports its computed kind on currentKind
// before doing any blocking or destructive work, precisely so dispatch
// can tell a cancelable reload from a restart that must run to
// completion. Restart is not cancel-safe, so a restart in flight is only
// waited on, never signaled or canceled.
func (m *Manager) dispatch(ctx context.Context, events []reload.FileEvent) {
	m.reloadMu.Lock()
	prevCancel := m.cancelCurrent
	prevDone := m.currentDone
	prevKindCh := m.currentKind
	m.reloadMu.Unlock()

	if prevCancel != nil {
		prevKind := <-prevKindCh
		if prevKind == reload.KindRestart || m.noInterrupt {
			<-prevDone
		} else {
			if err := m.session.InterruptSignal(); err != nil {
				logger.Warn("watch: interrupt signal failed", "error", err)
			}
			prevCancel()
			<-prevDone
			if err := m.session.ResyncAfterInterrupt(ctx); err != nil {
				logger.Debug("watch: resync after interrupt", "error", err)
			}
		}
	}

	reloadCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	kindCh := make(chan reload.Kind, 1)

	m.reloadMu.Lock()
	m.cancelCurrent = cancel
	m.currentDone = done
	m.currentKind = kindCh
	m.reloadMu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		kind, err := m.session.Reload(reloadCtx, events, kindCh)
		if err != nil {
			logger.Warn("watch: reload failed", "kind", kind, "error", err)
			return
		}
		logger.Info("watch: reload complete", "kind", kind, "paths", len(events))
	}()
}

// Close stops watching without waiting for any in-flight reload.
func (m *Manager) Close() error {
	return m.watcher.Close()
}
