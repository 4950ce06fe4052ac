package repl

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/luadbg/internal/debug"
	"github.com/dshills/luadbg/internal/runtime"
)

var (
	// errorStyle for errors and faults
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	// pauseStyle for pause banners
	pauseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	// successStyle for clean completion
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	// dimStyle for muted metadata text
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// nameStyle for identifiers and session ids
	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")).
			Bold(true)

	// markStyle for the selected frame and changed watches
	markStyle = lipgloss.NewStyle().
			Bold(true)
)

// Renderer writes debugger output. Notification handlers run on the
// script's goroutine while commands print from the prompt's, so every
// write locks.
type Renderer struct {
	mu       sync.Mutex
	out      io.Writer
	color    bool
	maxDepth int
}

// NewRenderer writes to out. maxDepth caps stack listings, 0 = all.
func NewRenderer(out io.Writer, color bool, maxDepth int) *Renderer {
	return &Renderer{out: out, color: color, maxDepth: maxDepth}
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

// Printf writes a formatted line.
func (r *Renderer) Printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format+"\n", args...)
}

// Error reports a command failure.
func (r *Renderer) Error(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %v\n", r.style(errorStyle, "error:"), err)
}

// ScriptOutput relays text the script printed, verbatim.
func (r *Renderer) ScriptOutput(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.out, text)
}

// Paused announces a pause with its location and reason.
func (r *Renderer) Paused(p debug.PausedPayload) {
	loc := fmt.Sprintf("line %d", p.Line)
	if p.Trace != nil && p.Trace.Len() > 0 {
		loc = p.Trace.Frames[0].Location()
	}
	r.Printf("%s at %s (%s)", r.style(pauseStyle, "-- paused"), loc, p.Reason)
}

// Faulted announces an uncaught fault held for post-mortem inspection.
func (r *Renderer) Faulted(p debug.FaultedPayload) {
	r.Printf("%s %s", r.style(errorStyle, "-- fault:"), p.Message)
	r.Printf("%s", r.style(dimStyle, "   state preserved; inspect, then continue or stop"))
}

// Resumed notes that execution moved on and how.
func (r *Renderer) Resumed(p debug.ResumedPayload) {
	r.Printf("%s", r.style(dimStyle, "-- "+p.Mode))
}

// Terminated announces the end of an execution.
func (r *Renderer) Terminated(p debug.TerminatedPayload) {
	switch {
	case p.Stopped:
		r.Printf("%s", r.style(dimStyle, "-- stopped"))
	case p.Err != "":
		r.Printf("%s %s", r.style(errorStyle, "-- terminated:"), p.Err)
	default:
		r.Printf("%s", r.style(successStyle, "-- finished"))
	}
}

// SourceChanged notes an on-disk edit to a loaded script.
func (r *Renderer) SourceChanged(p debug.SourceChangedPayload) {
	r.Printf("%s %s changed on disk (reload %s to pick it up)",
		r.style(dimStyle, "--"), p.Path, shortID(p.SessionID))
}

// Stack lists the trace innermost first, marking the selected frame.
func (r *Renderer) Stack(tr *debug.StackTrace, selected int) {
	if tr == nil || tr.Len() == 0 {
		r.Printf("(no stack)")
		return
	}
	shown := tr.Len()
	if r.maxDepth > 0 && shown > r.maxDepth {
		shown = r.maxDepth
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < shown; i++ {
		frame := tr.Frames[i]
		line := fmt.Sprintf("  #%d %s at %s", i, frame.Function, frame.Location())
		if i == selected {
			line = r.style(markStyle, fmt.Sprintf("> #%d %s at %s", i, frame.Function, frame.Location()))
		}
		fmt.Fprintln(r.out, line)
	}
	if shown < tr.Len() {
		fmt.Fprintln(r.out, r.style(dimStyle, fmt.Sprintf("  ... %d more frames", tr.Len()-shown)))
	}
}

// Value prints one binding.
func (r *Renderer) Value(name string, v runtime.Value) {
	r.Printf("%s = %s %s", r.style(nameStyle, name), v.Display, r.style(dimStyle, "("+v.Type+")"))
}

// Values prints a scope listing.
func (r *Renderer) Values(vals []debug.NamedValue) {
	if len(vals) == 0 {
		r.Printf("(none)")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, nv := range vals {
		fmt.Fprintf(r.out, "  %s = %s %s\n",
			r.style(nameStyle, nv.Name), nv.Value.Display, r.style(dimStyle, "("+nv.Value.Type+")"))
	}
}

// Watches prints watch evaluations, marking values that changed since
// the previous pause.
func (r *Renderer) Watches(results []debug.WatchResult) {
	if len(results) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(r.out, "  watch %s: %s\n", res.Name, r.style(dimStyle, res.Err.Error()))
			continue
		}
		mark := "  "
		if res.Changed {
			mark = r.style(markStyle, "* ")
		}
		fmt.Fprintf(r.out, "%swatch %s = %s\n", mark, r.style(nameStyle, res.Name), res.Value.Display)
	}
}

// Sessions lists loaded sessions, marking the active and running ones.
func (r *Renderer) Sessions(sessions []*debug.Session, activeID, runningID string) {
	if len(sessions) == 0 {
		r.Printf("(no sessions loaded)")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sess := range sessions {
		marker := " "
		if sess.ID() == activeID {
			marker = "*"
		}
		state := ""
		if sess.ID() == runningID {
			state = " " + r.style(pauseStyle, "[executing]")
		}
		fmt.Fprintf(r.out, "%s %s %s (%d breakpoints)%s\n",
			marker, r.style(nameStyle, shortID(sess.ID())), sess.Path(), sess.Breakpoints().Len(), state)
	}
}

// shortID trims a uuid to its first group for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
