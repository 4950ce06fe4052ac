package repl

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/luadbg/internal/debug"
	"github.com/dshills/luadbg/internal/event"
)

// sourceChangeQuiet suppresses duplicate change notifications while an
// editor finishes writing a file.
const sourceChangeQuiet = 100 * time.Millisecond

// SourceWatcher watches loaded script files and publishes
// debug.source.changed when one is modified behind the debugger's back.
type SourceWatcher struct {
	bus *event.Bus
	mgr *debug.Manager
	fsw *fsnotify.Watcher

	mu       sync.Mutex
	paths    map[string]bool
	lastEmit map[string]time.Time
	closed   bool

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewSourceWatcher starts a watcher publishing on bus. Sessions are
// resolved through mgr when a change lands, so a path may be registered
// before or after its session loads.
func NewSourceWatcher(bus *event.Bus, mgr *debug.Manager) (*SourceWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &SourceWatcher{
		bus:      bus,
		mgr:      mgr,
		fsw:      fsw,
		paths:    make(map[string]bool),
		lastEmit: make(map[string]time.Time),
		closeCh:  make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Add registers a script file. The file must exist; registering a
// watched path again is a no-op.
func (w *SourceWatcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}
	if w.paths[abs] {
		return nil
	}
	if err := w.fsw.Add(abs); err != nil {
		return err
	}
	w.paths[abs] = true
	return nil
}

// Remove stops watching a path. Unknown paths are a no-op.
func (w *SourceWatcher) Remove(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || !w.paths[abs] {
		return nil
	}
	delete(w.paths, abs)
	return w.fsw.Remove(abs)
}

// Watching reports whether path is registered.
func (w *SourceWatcher) Watching(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paths[abs]
}

// Close stops the watcher. Safe to call more than once.
func (w *SourceWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()
	w.wg.Wait()
	return w.fsw.Close()
}

func (w *SourceWatcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Watch errors carry no path to act on; the next
			// successful event re-synchronizes.
		}
	}
}

// handle reacts to one file event. Editors that replace files on save
// produce rename or remove events that kill the watch, so those re-arm
// it before notifying.
func (w *SourceWatcher) handle(ev fsnotify.Event) {
	w.mu.Lock()
	watched := w.paths[ev.Name]
	w.mu.Unlock()
	if !watched {
		return
	}
	switch {
	case ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create):
		w.emit(ev.Name)
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		if w.rearm(ev.Name) {
			w.emit(ev.Name)
		}
	}
}

// rearm re-attaches a watch after an editor replaced the file. Reports
// whether the file is back.
func (w *SourceWatcher) rearm(path string) bool {
	// The replacement is not atomic from this side; give the editor a
	// moment to finish the swap.
	time.Sleep(sourceChangeQuiet)
	if _, err := os.Stat(path); err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || !w.paths[path] {
		return false
	}
	return w.fsw.Add(path) == nil
}

// emit publishes one change notification, coalescing event bursts from
// a single save.
func (w *SourceWatcher) emit(path string) {
	w.mu.Lock()
	now := time.Now()
	if now.Sub(w.lastEmit[path]) < sourceChangeQuiet {
		w.mu.Unlock()
		return
	}
	w.lastEmit[path] = now
	w.mu.Unlock()

	sess, ok := w.mgr.SessionByPath(path)
	if !ok {
		return
	}
	ev := event.NewEvent(debug.TopicSourceChanged, debug.SourceChangedPayload{
		SessionID: sess.ID(),
		Path:      path,
	}).WithSource("watcher")
	_ = w.bus.Publish(context.Background(), ev)
}

var _ PathWatcher = (*SourceWatcher)(nil)
