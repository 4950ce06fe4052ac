package debug

import (
	"fmt"

	"github.com/dshills/luadbg/internal/runtime"
)

// ScopeKind identifies where a binding lives.
type ScopeKind string

// Binding scopes.
const (
	ScopeLocal  ScopeKind = "local"
	ScopeGlobal ScopeKind = "global"
)

// ValueRef is an opaque handle to one binding observed at a pause. It
// resolves lazily against the live interpreter and is valid only for the
// pause that produced it: once the execution resumes, terminates, or
// pauses again, the reference is stale. The zero ValueRef is stale.
type ValueRef struct {
	exec  *Execution
	gen   uint64
	scope ScopeKind
	name  string
	index int
	frame runtime.Frame
}

// Name returns the binding's name.
func (r ValueRef) Name() string {
	return r.name
}

// Scope returns the binding's scope.
func (r ValueRef) Scope() ScopeKind {
	return r.scope
}

// NamedValue pairs a binding name with its current value.
type NamedValue struct {
	Name  string
	Value runtime.Value
}

// VariableBridge reads and writes script variables while its execution
// is paused. Writes are restricted to the scalar safelist (string,
// integer, float, boolean) and must stay within the binding's kind
// family; integer and float are interchangeable.
//
// The bridge relies on the engine's pause protocol for memory safety:
// it must be driven from the single controlling goroutine, never from
// inside a notification handler that could outlive the pause.
type VariableBridge struct {
	exec *Execution
}

// Read resolves the reference to the binding's current value.
func (b *VariableBridge) Read(ref ValueRef) (runtime.Value, error) {
	if err := b.validate(ref); err != nil {
		return runtime.Value{}, err
	}
	switch ref.scope {
	case ScopeLocal:
		v, ok := b.exec.host.LocalValue(ref.frame, ref.index)
		if !ok {
			return runtime.Value{}, fmt.Errorf("local %s: %w", ref.name, ErrStaleReference)
		}
		return v, nil
	case ScopeGlobal:
		v, ok := b.exec.host.GlobalValue(ref.name)
		if !ok {
			return runtime.Value{}, fmt.Errorf("global %s: %w", ref.name, ErrUnknownVariable)
		}
		return v, nil
	default:
		return runtime.Value{}, fmt.Errorf("%s %s: %w", ref.scope, ref.name, ErrUnknownVariable)
	}
}

// Write stores a scalar into the referenced binding. The write lands in
// live interpreter state immediately: when execution resumes, the script
// observes the new value. On any error the binding is left unchanged.
func (b *VariableBridge) Write(ref ValueRef, v runtime.Value) error {
	if !v.IsScalar() {
		return fmt.Errorf("%s value: %w", v.Type, ErrUnsupportedValueKind)
	}
	current, err := b.Read(ref)
	if err != nil {
		return err
	}
	if !current.IsScalar() {
		return fmt.Errorf("%s holds a %s: %w", ref.name, current.Type, ErrUnsupportedValueKind)
	}
	if !v.Kind.CompatibleWith(current.Kind) {
		return fmt.Errorf("cannot write %s into %s binding %s: %w", v.Kind, current.Kind, ref.name, ErrUnsupportedValueKind)
	}

	switch ref.scope {
	case ScopeLocal:
		if !b.exec.host.SetLocalValue(ref.frame, ref.index, v) {
			return fmt.Errorf("local %s: %w", ref.name, ErrStaleReference)
		}
	case ScopeGlobal:
		b.exec.host.SetGlobalValue(ref.name, v)
	}
	return nil
}

// Locals resolves every local binding of the frame, sorted by name.
func (b *VariableBridge) Locals(f *FrameSnapshot) ([]NamedValue, error) {
	return b.resolveAll(f.LocalNames(), f.Locals)
}

// Globals resolves every script-defined global, sorted by name.
func (b *VariableBridge) Globals(f *FrameSnapshot) ([]NamedValue, error) {
	return b.resolveAll(f.GlobalNames(), f.Globals)
}

func (b *VariableBridge) resolveAll(names []string, refs map[string]ValueRef) ([]NamedValue, error) {
	out := make([]NamedValue, 0, len(names))
	for _, name := range names {
		v, err := b.Read(refs[name])
		if err != nil {
			return nil, err
		}
		out = append(out, NamedValue{Name: name, Value: v})
	}
	return out, nil
}

// Ref finds the reference for name in the frame, checking locals before
// globals.
func (b *VariableBridge) Ref(f *FrameSnapshot, name string) (ValueRef, error) {
	if ref, ok := f.Locals[name]; ok {
		return ref, nil
	}
	if ref, ok := f.Globals[name]; ok {
		return ref, nil
	}
	return ValueRef{}, fmt.Errorf("%s: %w", name, ErrUnknownVariable)
}

// Lookup reads the binding for name in the frame, locals first.
func (b *VariableBridge) Lookup(f *FrameSnapshot, name string) (runtime.Value, error) {
	ref, err := b.Ref(f, name)
	if err != nil {
		return runtime.Value{}, err
	}
	return b.Read(ref)
}

// validate enforces the staleness rules shared by Read and Write.
func (b *VariableBridge) validate(ref ValueRef) error {
	if ref.exec == nil || ref.exec != b.exec {
		return fmt.Errorf("%s %s: %w", ref.scope, ref.name, ErrStaleReference)
	}
	b.exec.mu.Lock()
	defer b.exec.mu.Unlock()
	if b.exec.state != StatePaused || ref.gen != b.exec.gen {
		return fmt.Errorf("%s %s: %w", ref.scope, ref.name, ErrStaleReference)
	}
	return nil
}

// WatchResult is one watch evaluation at a pause.
type WatchResult struct {
	Name    string
	Value   runtime.Value
	Err     error
	Changed bool
}

// WatchSet holds watched variable names and re-resolves them at every
// pause, marking values that changed since the previous evaluation. It
// outlives executions; the caller evaluates it against whichever bridge
// is current.
type WatchSet struct {
	names []string
	last  map[string]string
}

// NewWatchSet returns an empty watch set.
func NewWatchSet() *WatchSet {
	return &WatchSet{last: make(map[string]string)}
}

// Add registers a name to watch. Duplicates are ignored.
func (w *WatchSet) Add(name string) {
	for _, n := range w.names {
		if n == name {
			return
		}
	}
	w.names = append(w.names, name)
}

// Remove drops a watched name.
func (w *WatchSet) Remove(name string) error {
	for i, n := range w.names {
		if n == name {
			w.names = append(w.names[:i], w.names[i+1:]...)
			delete(w.last, name)
			return nil
		}
	}
	return fmt.Errorf("watch %s not found", name)
}

// Names returns the watched names in registration order.
func (w *WatchSet) Names() []string {
	return append([]string{}, w.names...)
}

// Evaluate resolves every watch in the given frame.
func (w *WatchSet) Evaluate(b *VariableBridge, f *FrameSnapshot) []WatchResult {
	results := make([]WatchResult, 0, len(w.names))
	for _, name := range w.names {
		v, err := b.Lookup(f, name)
		res := WatchResult{Name: name, Value: v, Err: err}
		if err == nil {
			prev, seen := w.last[name]
			res.Changed = seen && prev != v.Display
			w.last[name] = v.Display
		}
		results = append(results, res)
	}
	return results
}
