package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/peterh/liner"

	"github.com/dshills/luadbg/internal/debug"
	"github.com/dshills/luadbg/internal/event"
	"github.com/dshills/luadbg/internal/event/topic"
)

// prompt is shown whenever the debugger waits for a command.
const prompt = "(luadbg) "

// PathWatcher registers script files for change notifications. It is
// satisfied by *SourceWatcher. Registration is best effort: sessions
// loaded from text have no file behind their path.
type PathWatcher interface {
	Add(path string) error
	Remove(path string) error
}

// Options configures a REPL.
type Options struct {
	// Output receives rendered text. Defaults to os.Stdout.
	Output io.Writer
	// Color toggles styled output.
	Color bool
	// StackDepth caps frames shown by the where command; 0 shows all.
	StackDepth int
	// HistoryFile persists prompt history between runs; empty disables.
	HistoryFile string
	// BreakpointFile persists breakpoint lines between runs; empty
	// disables the sidecar.
	BreakpointFile string
	// ScriptArgs are handed to the run command when it has no arguments
	// of its own.
	ScriptArgs []string
	// Watcher, when set, is told about every loaded script path.
	Watcher PathWatcher
}

// REPL drives the debugger engine from an interactive prompt. Commands
// execute on the prompt's goroutine, which is the engine's controlling
// goroutine; notifications arrive on the script's goroutine and only
// render.
type REPL struct {
	mgr         *debug.Manager
	bus         *event.Bus
	out         *Renderer
	watcher     PathWatcher
	sidecar     *Sidecar
	histFile    string
	defaultArgs []string
	saved       map[string][]int

	mu      sync.Mutex
	nav     *debug.StackNavigator
	watches *debug.WatchSet
	line    *liner.State

	subs []*event.Subscription
}

// New wires a REPL to the manager and bus. Breakpoints saved by a
// previous run are restored to already-loaded sessions immediately;
// sessions loaded later pick theirs up through the load command.
func New(mgr *debug.Manager, bus *event.Bus, opts Options) *REPL {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	r := &REPL{
		mgr:         mgr,
		bus:         bus,
		out:         NewRenderer(out, opts.Color, opts.StackDepth),
		watcher:     opts.Watcher,
		histFile:    opts.HistoryFile,
		defaultArgs: opts.ScriptArgs,
		saved:       make(map[string][]int),
		watches:     debug.NewWatchSet(),
	}
	if opts.BreakpointFile != "" {
		r.sidecar = NewSidecar(opts.BreakpointFile)
		saved, err := r.sidecar.Load()
		if err != nil {
			r.out.Error(fmt.Errorf("restoring breakpoints: %w", err))
		} else {
			r.saved = saved
		}
	}
	r.subscribe()
	for _, sess := range mgr.Sessions() {
		r.attach(sess)
	}
	return r
}

// attach applies saved breakpoints to a session and registers its file
// with the watcher.
func (r *REPL) attach(sess *debug.Session) {
	if lines, ok := r.saved[sess.Path()]; ok {
		ApplyLines(sess, lines)
	}
	if r.watcher != nil {
		_ = r.watcher.Add(sess.Path())
	}
}

func (r *REPL) subscribe() {
	r.on(debug.TopicSessionPaused, event.AsHandler(r.onPaused))
	r.on(debug.TopicSessionFaulted, event.AsHandler(r.onFaulted))
	r.on(debug.TopicSessionResumed, event.AsHandler(r.onResumed))
	r.on(debug.TopicSessionTerminated, event.AsHandler(r.onTerminated))
	r.on(debug.TopicSessionOutput, event.AsHandler(r.onOutput))
	r.on(debug.TopicSourceChanged, event.AsHandler(r.onSourceChanged))
}

func (r *REPL) on(tp topic.Topic, h event.Handler) {
	sub, err := r.bus.Subscribe(tp, h)
	if err != nil {
		return
	}
	r.subs = append(r.subs, sub)
}

// onPaused runs on the script's goroutine right before it parks. The
// navigator and watch evaluation happen here so the prompt finds the
// pause fully prepared.
func (r *REPL) onPaused(_ context.Context, ev event.Event[debug.PausedPayload]) error {
	r.mu.Lock()
	r.nav = debug.NewStackNavigator(ev.Payload.Trace)
	r.mu.Unlock()
	r.out.Paused(ev.Payload)
	r.showWatches()
	return nil
}

func (r *REPL) onFaulted(_ context.Context, ev event.Event[debug.FaultedPayload]) error {
	r.mu.Lock()
	r.nav = debug.NewStackNavigator(ev.Payload.Trace)
	r.mu.Unlock()
	r.out.Faulted(ev.Payload)
	return nil
}

func (r *REPL) onResumed(_ context.Context, ev event.Event[debug.ResumedPayload]) error {
	r.mu.Lock()
	r.nav = nil
	r.mu.Unlock()
	r.out.Resumed(ev.Payload)
	return nil
}

func (r *REPL) onTerminated(_ context.Context, ev event.Event[debug.TerminatedPayload]) error {
	r.mu.Lock()
	r.nav = nil
	r.mu.Unlock()
	r.out.Terminated(ev.Payload)
	return nil
}

func (r *REPL) onOutput(_ context.Context, ev event.Event[debug.OutputPayload]) error {
	r.out.ScriptOutput(ev.Payload.Text)
	return nil
}

func (r *REPL) onSourceChanged(_ context.Context, ev event.Event[debug.SourceChangedPayload]) error {
	r.out.SourceChanged(ev.Payload)
	return nil
}

// showWatches re-resolves the watch list against the innermost frame of
// the current pause.
func (r *REPL) showWatches() {
	ex := r.mgr.Execution()
	if ex == nil {
		return
	}
	r.mu.Lock()
	var results []debug.WatchResult
	if r.nav != nil {
		if frame := r.nav.Current(); frame != nil {
			results = r.watches.Evaluate(ex.Bridge(), frame)
		}
	}
	r.mu.Unlock()
	r.out.Watches(results)
}

// Interact runs the prompt loop until the user quits or input is
// exhausted. It owns the terminal for its duration.
func (r *REPL) Interact() error {
	ln := liner.NewLiner()
	r.mu.Lock()
	r.line = ln
	r.mu.Unlock()
	defer r.closeLine()

	ln.SetCtrlCAborts(true)
	ln.SetCompleter(r.complete)
	r.loadHistory(ln)
	defer r.saveHistory(ln)

	r.out.Printf("luadbg: type 'help' for commands, 'quit' to exit")
	for {
		input, err := ln.Prompt(prompt)
		switch {
		case errors.Is(err, io.EOF):
			r.out.Printf("")
			if err := r.Execute("quit"); !errors.Is(err, ErrQuit) {
				return err
			}
			return nil
		case errors.Is(err, liner.ErrPromptAborted):
			r.interrupt()
			continue
		case err != nil:
			return fmt.Errorf("reading command: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		ln.AppendHistory(input)
		if err := r.Execute(input); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			r.out.Error(err)
		}
	}
}

// interrupt handles Ctrl+C at the prompt: a running script is asked to
// pause at its next statement; anything else gets a hint.
func (r *REPL) interrupt() {
	if ex := r.mgr.Execution(); ex != nil && ex.State() == debug.StateRunning {
		if err := ex.Pause(); err == nil {
			r.out.Printf("pausing at the next statement...")
			return
		}
	}
	r.out.Printf("interrupted (type 'quit' to exit)")
}

// complete offers command-name completion for the first word.
func (r *REPL) complete(line string) []string {
	if strings.ContainsAny(line, " \t") {
		return nil
	}
	seed := strings.ToLower(line)
	var matches []string
	for _, c := range commands {
		if strings.HasPrefix(c.name, seed) {
			matches = append(matches, c.name)
		}
	}
	return matches
}

func (r *REPL) loadHistory(ln *liner.State) {
	if r.histFile == "" {
		return
	}
	f, err := os.Open(r.histFile)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = ln.ReadHistory(f)
}

func (r *REPL) saveHistory(ln *liner.State) {
	if r.histFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.histFile), 0755); err != nil {
		return
	}
	f, err := os.Create(r.histFile)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = ln.WriteHistory(f)
}

// saveBreakpoints writes every session's breakpoint lines through the
// sidecar. Lines saved for scripts that are not currently loaded are
// kept.
func (r *REPL) saveBreakpoints() {
	if r.sidecar == nil {
		return
	}
	for path, lines := range CollectLines(r.mgr.Sessions()) {
		r.saved[path] = lines
	}
	if err := r.sidecar.Save(r.saved); err != nil {
		r.out.Error(fmt.Errorf("saving breakpoints: %w", err))
	}
}

func (r *REPL) closeLine() {
	r.mu.Lock()
	ln := r.line
	r.line = nil
	r.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
}

// Close persists breakpoints, detaches from the bus, and releases the
// prompt. Safe to call while Interact is blocked reading input and safe
// to call twice.
func (r *REPL) Close() {
	r.saveBreakpoints()
	for _, sub := range r.subs {
		sub.Cancel()
	}
	r.subs = nil
	r.closeLine()
}
