package debug

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/luadbg/internal/runtime"
)

// FrameSnapshot is an immutable view of one stack frame captured at a
// pause. Variable values are not copied; the Locals and Globals maps
// hold references resolved lazily against the live interpreter, valid
// only for the pause that produced them.
type FrameSnapshot struct {
	// Depth is the frame's position, 0 = innermost.
	Depth int
	// Function is the best-effort function name; "main" for the
	// top-level chunk.
	Function string
	// File is the chunk name the frame executes in.
	File string
	// Line is the frame's current source line.
	Line int
	// Locals maps visible local names to value references.
	Locals map[string]ValueRef
	// Globals maps script-defined global names to value references.
	Globals map[string]ValueRef
}

// Location renders "file:line" for display.
func (f *FrameSnapshot) Location() string {
	if f.File == "" {
		return fmt.Sprintf("<unknown>:%d", f.Line)
	}
	return fmt.Sprintf("%s:%d", f.File, f.Line)
}

// LocalNames returns the frame's local names, sorted.
func (f *FrameSnapshot) LocalNames() []string {
	return sortedRefNames(f.Locals)
}

// GlobalNames returns the script-defined global names, sorted.
func (f *FrameSnapshot) GlobalNames() []string {
	return sortedRefNames(f.Globals)
}

func sortedRefNames(refs map[string]ValueRef) []string {
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StackTrace is the call stack captured at one pause, innermost frame
// first. Engine-internal frames are excluded: the trace shows only what
// the script author wrote.
type StackTrace struct {
	Frames []*FrameSnapshot
}

// Len returns the number of frames.
func (t *StackTrace) Len() int {
	return len(t.Frames)
}

// Frame returns the frame at depth, false when out of range.
func (t *StackTrace) Frame(depth int) (*FrameSnapshot, bool) {
	if depth < 0 || depth >= len(t.Frames) {
		return nil, false
	}
	return t.Frames[depth], true
}

// StackInspector builds stack snapshots from the live interpreter. The
// capture runs on the script's goroutine before the pause is announced,
// so it always completes before any observer can resume execution.
type StackInspector struct {
	host *runtime.Host
}

// NewStackInspector creates an inspector over the given host.
func NewStackInspector(host *runtime.Host) *StackInspector {
	return &StackInspector{host: host}
}

// Capture snapshots the current call stack. References in the returned
// frames carry the pause generation gen and go stale when it passes.
func (si *StackInspector) Capture(ex *Execution, gen uint64) *StackTrace {
	frames := si.host.Stack()
	globals := si.host.GlobalNames()

	snaps := make([]*FrameSnapshot, 0, len(frames))
	for depth, f := range frames {
		snap := &FrameSnapshot{
			Depth:    depth,
			Function: f.Name,
			File:     f.Source,
			Line:     f.Line,
			Locals:   make(map[string]ValueRef),
			Globals:  make(map[string]ValueRef, len(globals)),
		}
		for _, lv := range si.host.Locals(f) {
			snap.Locals[lv.Name] = ValueRef{
				exec:  ex,
				gen:   gen,
				scope: ScopeLocal,
				name:  lv.Name,
				index: lv.Index,
				frame: f,
			}
		}
		for _, name := range globals {
			snap.Globals[name] = ValueRef{
				exec:  ex,
				gen:   gen,
				scope: ScopeGlobal,
				name:  name,
			}
		}
		snaps = append(snaps, snap)
	}
	return &StackTrace{Frames: snaps}
}

// StackNavigator tracks a selected frame within one captured trace.
// Conventions follow the usual debugger orientation: up moves toward the
// outermost caller, down toward the innermost frame.
//
// A navigator belongs to the controlling goroutine and is not safe for
// concurrent use.
type StackNavigator struct {
	trace *StackTrace
	index int
}

// NewStackNavigator starts navigation at the innermost frame.
func NewStackNavigator(trace *StackTrace) *StackNavigator {
	return &StackNavigator{trace: trace}
}

// Current returns the selected frame, nil when the trace is empty.
func (n *StackNavigator) Current() *FrameSnapshot {
	if n.trace == nil {
		return nil
	}
	frame, ok := n.trace.Frame(n.index)
	if !ok {
		return nil
	}
	return frame
}

// Index returns the selected frame depth.
func (n *StackNavigator) Index() int {
	return n.index
}

// Select jumps to the frame at depth.
func (n *StackNavigator) Select(depth int) error {
	if n.trace == nil || depth < 0 || depth >= n.trace.Len() {
		size := 0
		if n.trace != nil {
			size = n.trace.Len()
		}
		return fmt.Errorf("frame index %d out of range [0, %d)", depth, size)
	}
	n.index = depth
	return nil
}

// Up selects the caller of the current frame.
func (n *StackNavigator) Up() error {
	if n.trace == nil || n.index+1 >= n.trace.Len() {
		return fmt.Errorf("already at bottom of stack")
	}
	n.index++
	return nil
}

// Down selects the callee of the current frame.
func (n *StackNavigator) Down() error {
	if n.index == 0 {
		return fmt.Errorf("already at top of stack")
	}
	n.index--
	return nil
}

// Format renders the trace with a marker on the selected frame:
//
//	> #0 inner at script.lua:3
//	  #1 main at script.lua:7
func (n *StackNavigator) Format() string {
	if n.trace == nil || n.trace.Len() == 0 {
		return "(no stack)\n"
	}
	var b strings.Builder
	for i, frame := range n.trace.Frames {
		marker := "  "
		if i == n.index {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s#%d %s at %s\n", marker, i, frame.Function, frame.Location())
	}
	return b.String()
}
