// Package runtime embeds the gopher-lua interpreter behind a host that
// supports statement-level tracing, sandboxed libraries, and scalar value
// exchange with the rest of the process.
package runtime

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Default interpreter sizing. These map directly onto gopher-lua options.
const (
	// DefaultCallStackSize is the maximum Lua call depth.
	DefaultCallStackSize = 256
	// DefaultRegistrySize is the initial value stack size.
	DefaultRegistrySize = 1024 * 20
)

// unsafeBaseFunctions are removed from the base library after it is
// opened. They load arbitrary code or files and would punch through the
// sandbox.
var unsafeBaseFunctions = []string{"dofile", "loadfile", "load", "loadstring"}

// TraceFunc is invoked on the script's goroutine before every statement
// with the statement's 1-based source line. It may block; the script does
// not progress until it returns. Returning an error aborts the script
// with that error as a Lua runtime error.
type TraceFunc func(line int) error

// Fault describes an uncaught runtime error, reported before the stack
// unwinds.
type Fault struct {
	// Message is the Lua error text, usually "path:line: detail".
	Message string
	// Line is the source line of the faulting statement, 0 if unknown.
	Line int
}

// FaultFunc is invoked on the script's goroutine when an uncaught error
// is about to unwind the script. The call stack is still intact, so the
// handler may inspect frames and locals. It may block.
type FaultFunc func(f Fault)

// Host wraps a single lua.LState prepared for debugging: only the safe
// standard libraries are open, print is captured, and a hidden trace
// builtin dispatches to the registered TraceFunc.
//
// IMPORTANT: the underlying LState is not goroutine-safe. A Host is
// confined to the goroutine that calls Run; other goroutines may touch it
// only while that goroutine is parked inside the TraceFunc or FaultFunc,
// synchronized through the channels that park it. Hooks must be
// registered before Run is called.
type Host struct {
	L *lua.LState

	onTrace TraceFunc
	onFault FaultFunc
	onPrint func(text string)

	// baseline holds the global names present before user code runs.
	// Global enumeration filters them out so listings show only what
	// the script defined.
	baseline map[string]bool
	closed   bool
}

// Option configures a Host.
type Option func(*options)

type options struct {
	callStackSize int
	registrySize  int
}

// WithCallStackSize sets the maximum Lua call depth.
func WithCallStackSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.callStackSize = n
		}
	}
}

// WithRegistrySize sets the interpreter's initial value stack size.
func WithRegistrySize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.registrySize = n
		}
	}
}

// NewHost creates a sandboxed interpreter. Base, table, string, and math
// libraries are opened; io, os, debug, and package are intentionally
// omitted, and the code-loading base functions are removed.
func NewHost(opts ...Option) *Host {
	o := options{
		callStackSize: DefaultCallStackSize,
		registrySize:  DefaultRegistrySize,
	}
	for _, opt := range opts {
		opt(&o)
	}

	h := &Host{
		L: lua.NewState(lua.Options{
			SkipOpenLibs:  true,
			CallStackSize: o.callStackSize,
			RegistrySize:  o.registrySize,
		}),
		baseline: make(map[string]bool),
	}
	h.onPrint = func(text string) { fmt.Fprint(os.Stdout, text) }

	lua.OpenBase(h.L)
	lua.OpenTable(h.L)
	lua.OpenString(h.L)
	lua.OpenMath(h.L)
	h.L.SetTop(0)

	for _, name := range unsafeBaseFunctions {
		h.L.SetGlobal(name, lua.LNil)
	}

	h.L.SetGlobal("print", h.L.NewFunction(h.luaPrint))
	h.L.SetGlobal(traceGlobal, h.L.NewFunction(h.luaTrace))

	h.captureBaseline()
	return h
}

// OnTrace registers the statement trace hook.
func (h *Host) OnTrace(fn TraceFunc) {
	h.onTrace = fn
}

// OnFault registers the uncaught-error hook.
func (h *Host) OnFault(fn FaultFunc) {
	h.onFault = fn
}

// OnPrint registers the sink for text produced by the script's print.
// The default sink writes to stdout.
func (h *Host) OnPrint(fn func(text string)) {
	h.onPrint = fn
}

// Run executes a compiled chunk to completion, a fault, or context
// cancellation. Command-line arguments are exposed both as the chunk's
// varargs and through the conventional arg table. A Host runs at most one
// chunk.
func (h *Host) Run(ctx context.Context, prog *Program, args []string) error {
	if h.closed {
		return ErrHostClosed
	}
	if ctx != nil {
		h.L.SetContext(ctx)
	}
	h.setArgs(prog.Name(), args)

	top := h.L.GetTop()
	defer h.L.SetTop(top)

	errfn := h.L.NewFunction(h.luaFault)
	h.L.Push(h.L.NewFunctionFromProto(prog.proto))
	for _, a := range args {
		h.L.Push(lua.LString(a))
	}
	return h.L.PCall(len(args), lua.MultRet, errfn)
}

// Close releases the interpreter. Safe to call more than once.
func (h *Host) Close() {
	if h.closed {
		return
	}
	h.closed = true
	h.L.Close()
}

// Closed reports whether Close has been called.
func (h *Host) Closed() bool {
	return h.closed
}

// luaTrace is the hidden builtin injected before every statement.
func (h *Host) luaTrace(L *lua.LState) int {
	if h.onTrace == nil {
		return 0
	}
	line := int(L.CheckNumber(1))
	if err := h.onTrace(line); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// luaPrint replaces the base library's print, routing output to the
// registered sink with tostring semantics preserved.
func (h *Host) luaPrint(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, lua.LVAsString(L.ToStringMeta(L.Get(i))))
	}
	h.onPrint(strings.Join(parts, "\t") + "\n")
	return 0
}

// luaFault is the PCall message handler. It runs before the stack
// unwinds, giving the fault hook a chance to inspect the intact stack.
func (h *Host) luaFault(L *lua.LState) int {
	obj := L.Get(1)
	if h.onFault != nil {
		h.onFault(Fault{Message: obj.String(), Line: h.topScriptLine()})
	}
	L.Push(obj)
	return 1
}

// topScriptLine returns the current line of the innermost script frame.
func (h *Host) topScriptLine() int {
	for level := 0; ; level++ {
		dbg, ok := h.L.GetStack(level)
		if !ok {
			return 0
		}
		if _, err := h.L.GetInfo("S", dbg, lua.LNil); err != nil {
			continue
		}
		if dbg.What == "G" {
			continue
		}
		if _, err := h.L.GetInfo("l", dbg, lua.LNil); err != nil {
			continue
		}
		return dbg.CurrentLine
	}
}

// setArgs installs the arg table and marks it host-provided.
func (h *Host) setArgs(name string, args []string) {
	tbl := h.L.CreateTable(len(args), 1)
	tbl.RawSetInt(0, lua.LString(name))
	for i, a := range args {
		tbl.RawSetInt(i+1, lua.LString(a))
	}
	h.L.SetGlobal("arg", tbl)
	h.baseline["arg"] = true
}

// captureBaseline records the globals installed by the host itself.
func (h *Host) captureBaseline() {
	globals := h.L.Get(lua.GlobalsIndex).(*lua.LTable)
	globals.ForEach(func(k, _ lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			h.baseline[string(ks)] = true
		}
	})
}

// Frame identifies one script-level stack frame. It stays valid only
// while the script is parked at the trace or fault hook that produced it.
type Frame struct {
	dbg *lua.Debug

	// Name is the best-effort function name; "main" for the top-level
	// chunk.
	Name string
	// What distinguishes "main", "Lua", and "tail" frames.
	What string
	// Source is the chunk name the frame executes in.
	Source string
	// Line is the frame's current source line.
	Line int
}

// LocalVar names one visible local variable slot in a frame.
type LocalVar struct {
	Name  string
	Index int
}

// Stack walks the live call stack innermost-first, excluding Go frames
// so callers see only script-level frames.
func (h *Host) Stack() []Frame {
	var frames []Frame
	for level := 0; ; level++ {
		dbg, ok := h.L.GetStack(level)
		if !ok {
			break
		}
		if _, err := h.L.GetInfo("S", dbg, lua.LNil); err != nil {
			continue
		}
		if dbg.What == "G" {
			continue
		}
		if _, err := h.L.GetInfo("nl", dbg, lua.LNil); err != nil {
			continue
		}
		name := dbg.Name
		if dbg.What == "main" {
			name = "main"
		}
		frames = append(frames, Frame{
			dbg:    dbg,
			Name:   name,
			What:   dbg.What,
			Source: dbg.Source,
			Line:   dbg.CurrentLine,
		})
	}
	return frames
}

// Depth returns the number of live script frames.
func (h *Host) Depth() int {
	depth := 0
	for level := 0; ; level++ {
		dbg, ok := h.L.GetStack(level)
		if !ok {
			break
		}
		if _, err := h.L.GetInfo("S", dbg, lua.LNil); err != nil {
			continue
		}
		if dbg.What != "G" {
			depth++
		}
	}
	return depth
}

// Locals enumerates the named locals visible in the frame. Compiler
// temporaries (parenthesized names) are filtered out.
func (h *Host) Locals(f Frame) []LocalVar {
	var vars []LocalVar
	for i := 1; ; i++ {
		name, _ := h.L.GetLocal(f.dbg, i)
		if name == "" {
			break
		}
		if strings.HasPrefix(name, "(") {
			continue
		}
		vars = append(vars, LocalVar{Name: name, Index: i})
	}
	return vars
}

// LocalValue reads the local at index in the frame.
func (h *Host) LocalValue(f Frame, index int) (Value, bool) {
	name, lv := h.L.GetLocal(f.dbg, index)
	if name == "" {
		return Value{}, false
	}
	return ValueOf(lv), true
}

// SetLocalValue writes a scalar into the local at index in the frame.
func (h *Host) SetLocalValue(f Frame, index int, v Value) bool {
	lv, ok := ToLValue(v)
	if !ok {
		return false
	}
	return h.L.SetLocal(f.dbg, index, lv) != ""
}

// GlobalNames lists the globals defined by the script, sorted. Host and
// library globals are excluded.
func (h *Host) GlobalNames() []string {
	globals := h.L.Get(lua.GlobalsIndex).(*lua.LTable)
	var names []string
	globals.ForEach(func(k, _ lua.LValue) {
		ks, ok := k.(lua.LString)
		if !ok {
			return
		}
		if h.baseline[string(ks)] {
			return
		}
		names = append(names, string(ks))
	})
	sort.Strings(names)
	return names
}

// GlobalValue reads a global by name. A nil global reads as absent.
func (h *Host) GlobalValue(name string) (Value, bool) {
	lv := h.L.GetGlobal(name)
	if lv == lua.LNil {
		return Value{}, false
	}
	return ValueOf(lv), true
}

// SetGlobalValue writes a scalar global.
func (h *Host) SetGlobalValue(name string, v Value) bool {
	lv, ok := ToLValue(v)
	if !ok {
		return false
	}
	h.L.SetGlobal(name, lv)
	return true
}
