package repl

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dshills/luadbg/internal/debug"
	"github.com/dshills/luadbg/internal/runtime"
)

// command is one prompt verb. rest is the input after the verb with
// surrounding space trimmed; each command splits it as it needs.
type command struct {
	name    string
	aliases []string
	usage   string
	summary string
	run     func(r *REPL, rest string) error
}

// commands lists every verb in help order. It is populated in init
// because cmdHelp ranges over the list; a slice literal naming cmdHelp
// would form an initialization cycle.
var commands []*command

var commandIndex = make(map[string]*command)

func init() {
	commands = []*command{
		{name: "run", usage: "run [ARG...]", summary: "execute the active session under the debugger", run: cmdRun},
		{name: "load", usage: "load PATH", summary: "load a script as a new session", run: cmdLoad},
		{name: "sessions", summary: "list loaded sessions", run: cmdSessions},
		{name: "active", usage: "active ID|PATH", summary: "select the session run and break target", run: cmdActive},
		{name: "reload", usage: "reload [ID|PATH]", summary: "refresh a session's source from disk", run: cmdReload},
		{name: "unload", usage: "unload ID|PATH", summary: "discard a loaded session", run: cmdUnload},
		{name: "break", aliases: []string{"b"}, usage: "break LINE", summary: "toggle a breakpoint in the active session", run: cmdBreak},
		{name: "bl", summary: "list breakpoints in the active session", run: cmdBreakList},
		{name: "bc", summary: "clear every breakpoint in the active session", run: cmdBreakClear},
		{name: "continue", aliases: []string{"c"}, summary: "resume until a breakpoint, fault, or completion", run: cmdContinue},
		{name: "step", aliases: []string{"s", "into"}, summary: "advance one statement, entering calls", run: cmdStep},
		{name: "next", aliases: []string{"n", "over"}, summary: "advance one statement, stepping over calls", run: cmdNext},
		{name: "out", aliases: []string{"o", "finish"}, summary: "run until the current function returns", run: cmdOut},
		{name: "pause", aliases: []string{"p"}, summary: "pause a running script at its next statement", run: cmdPause},
		{name: "stop", summary: "terminate the current execution", run: cmdStop},
		{name: "where", aliases: []string{"w", "bt"}, summary: "show the call stack", run: cmdWhere},
		{name: "up", aliases: []string{"u"}, usage: "up [N]", summary: "select a frame toward the outermost caller", run: cmdUp},
		{name: "down", aliases: []string{"d"}, usage: "down [N]", summary: "select a frame toward the innermost callee", run: cmdDown},
		{name: "locals", summary: "list locals of the selected frame", run: cmdLocals},
		{name: "globals", summary: "list globals defined by the script", run: cmdGlobals},
		{name: "print", usage: "print NAME", summary: "show one variable from the selected frame", run: cmdPrint},
		{name: "set", usage: "set NAME = VALUE", summary: "write a scalar into a live variable", run: cmdSet},
		{name: "watch", usage: "watch [NAME]", summary: "show a variable at every pause", run: cmdWatch},
		{name: "unwatch", usage: "unwatch NAME", summary: "drop a watched variable", run: cmdUnwatch},
		{name: "help", aliases: []string{"h", "?"}, summary: "show this list", run: cmdHelp},
		{name: "quit", aliases: []string{"q", "exit"}, summary: "stop any execution and leave the debugger", run: cmdQuit},
	}
	for _, c := range commands {
		commandIndex[c.name] = c
		for _, alias := range c.aliases {
			commandIndex[alias] = c
		}
	}
}

// Execute parses and runs one command line.
func (r *REPL) Execute(input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	verb, rest := input, ""
	if i := strings.IndexAny(input, " \t"); i >= 0 {
		verb, rest = input[:i], strings.TrimSpace(input[i+1:])
	}
	cmd, ok := commandIndex[strings.ToLower(verb)]
	if !ok {
		return fmt.Errorf("%q, type 'help' for commands: %w", verb, ErrUnknownCommand)
	}
	return cmd.run(r, rest)
}

// findSession resolves a session by full ID, unique ID prefix, or path.
func (r *REPL) findSession(key string) (*debug.Session, error) {
	var byPrefix *debug.Session
	prefixes := 0
	for _, sess := range r.mgr.Sessions() {
		if sess.ID() == key {
			return sess, nil
		}
		if strings.HasPrefix(sess.ID(), key) {
			byPrefix = sess
			prefixes++
		}
	}
	if prefixes == 1 {
		return byPrefix, nil
	}
	if prefixes > 1 {
		return nil, fmt.Errorf("session id %q is ambiguous", key)
	}
	if sess, ok := r.mgr.SessionByPath(key); ok {
		return sess, nil
	}
	return nil, fmt.Errorf("session %q: %w", key, debug.ErrUnknownSession)
}

// liveExecution returns the in-flight execution.
func (r *REPL) liveExecution() (*debug.Execution, error) {
	ex := r.mgr.Execution()
	if ex == nil {
		return nil, ErrNoExecution
	}
	return ex, nil
}

// pausedNav returns the execution and frame navigator of the current
// pause.
func (r *REPL) pausedNav() (*debug.Execution, *debug.StackNavigator, error) {
	ex, err := r.liveExecution()
	if err != nil {
		return nil, nil, err
	}
	r.mu.Lock()
	nav := r.nav
	r.mu.Unlock()
	if nav == nil || ex.State() != debug.StatePaused {
		return nil, nil, ErrNotPaused
	}
	return ex, nav, nil
}

// selectedFrame returns the frame the navigator points at.
func (r *REPL) selectedFrame() (*debug.Execution, *debug.FrameSnapshot, error) {
	ex, nav, err := r.pausedNav()
	if err != nil {
		return nil, nil, err
	}
	frame := nav.Current()
	if frame == nil {
		return nil, nil, fmt.Errorf("no stack frame is selected")
	}
	return ex, frame, nil
}

// breakpointTarget returns the active session if its breakpoints may be
// edited right now. Edits are refused while the session's script runs
// free; between executions and at a pause they are safe.
func (r *REPL) breakpointTarget() (*debug.Session, error) {
	sess := r.mgr.ActiveSession()
	if sess == nil {
		return nil, debug.ErrNoActiveSession
	}
	if ex := r.mgr.Execution(); ex != nil && ex.Session() == sess {
		switch ex.State() {
		case debug.StateRunning, debug.StateStepping:
			return nil, fmt.Errorf("%s is executing; pause it before editing breakpoints", filepath.Base(sess.Path()))
		}
	}
	return sess, nil
}

func cmdRun(r *REPL, rest string) error {
	args := strings.Fields(rest)
	if len(args) == 0 {
		args = r.defaultArgs
	}
	_, err := r.mgr.Start("", args)
	return err
}

func cmdLoad(r *REPL, rest string) error {
	if rest == "" {
		return fmt.Errorf("usage: load PATH")
	}
	sess, err := r.mgr.Load(debug.Source{Path: rest})
	if err != nil {
		return err
	}
	r.attach(sess)
	r.out.Printf("loaded %s as %s", sess.Path(), shortID(sess.ID()))
	return nil
}

func cmdSessions(r *REPL, _ string) error {
	activeID := ""
	if sess := r.mgr.ActiveSession(); sess != nil {
		activeID = sess.ID()
	}
	runningID := ""
	if ex := r.mgr.Execution(); ex != nil {
		runningID = ex.Session().ID()
	}
	r.out.Sessions(r.mgr.Sessions(), activeID, runningID)
	return nil
}

func cmdActive(r *REPL, rest string) error {
	if rest == "" {
		return fmt.Errorf("usage: active ID|PATH")
	}
	sess, err := r.findSession(rest)
	if err != nil {
		return err
	}
	if err := r.mgr.SetActive(sess.ID()); err != nil {
		return err
	}
	r.out.Printf("active session is now %s (%s)", shortID(sess.ID()), sess.Path())
	return nil
}

func cmdReload(r *REPL, rest string) error {
	var sess *debug.Session
	var err error
	if rest == "" {
		if sess = r.mgr.ActiveSession(); sess == nil {
			return debug.ErrNoActiveSession
		}
	} else if sess, err = r.findSession(rest); err != nil {
		return err
	}
	if err := r.mgr.Reload(sess.ID()); err != nil {
		return err
	}
	r.out.Printf("reloaded %s", sess.Path())
	return nil
}

func cmdUnload(r *REPL, rest string) error {
	if rest == "" {
		return fmt.Errorf("usage: unload ID|PATH")
	}
	sess, err := r.findSession(rest)
	if err != nil {
		return err
	}
	path := sess.Path()
	if err := r.mgr.Unload(sess.ID()); err != nil {
		return err
	}
	if _, stillLoaded := r.mgr.SessionByPath(path); !stillLoaded && r.watcher != nil {
		_ = r.watcher.Remove(path)
	}
	r.out.Printf("unloaded %s", path)
	return nil
}

func cmdBreak(r *REPL, rest string) error {
	fields := strings.Fields(rest)
	if len(fields) != 1 {
		return fmt.Errorf("usage: break LINE")
	}
	line, err := strconv.Atoi(fields[0])
	if err != nil || line <= 0 {
		return fmt.Errorf("break: line must be a positive number, got %q", fields[0])
	}
	sess, err := r.breakpointTarget()
	if err != nil {
		return err
	}
	if sess.Breakpoints().Toggle(line) {
		r.out.Printf("breakpoint set at line %d", line)
	} else {
		r.out.Printf("breakpoint removed from line %d", line)
	}
	return nil
}

func cmdBreakList(r *REPL, _ string) error {
	sess := r.mgr.ActiveSession()
	if sess == nil {
		return debug.ErrNoActiveSession
	}
	lines := sess.Breakpoints().Lines()
	if len(lines) == 0 {
		r.out.Printf("(no breakpoints)")
		return nil
	}
	for _, line := range lines {
		if hits := sess.Breakpoints().HitCount(line); hits > 0 {
			r.out.Printf("  line %d (hits: %d)", line, hits)
		} else {
			r.out.Printf("  line %d", line)
		}
	}
	return nil
}

func cmdBreakClear(r *REPL, _ string) error {
	sess, err := r.breakpointTarget()
	if err != nil {
		return err
	}
	n := sess.Breakpoints().Len()
	sess.Breakpoints().Clear()
	r.out.Printf("cleared %d breakpoint(s)", n)
	return nil
}

func cmdContinue(r *REPL, _ string) error {
	ex, err := r.liveExecution()
	if err != nil {
		return err
	}
	return ex.Continue()
}

func cmdStep(r *REPL, _ string) error {
	ex, err := r.liveExecution()
	if err != nil {
		return err
	}
	return ex.StepInto()
}

func cmdNext(r *REPL, _ string) error {
	ex, err := r.liveExecution()
	if err != nil {
		return err
	}
	return ex.StepOver()
}

func cmdOut(r *REPL, _ string) error {
	ex, err := r.liveExecution()
	if err != nil {
		return err
	}
	return ex.StepOut()
}

func cmdPause(r *REPL, _ string) error {
	ex, err := r.liveExecution()
	if err != nil {
		return err
	}
	return ex.Pause()
}

func cmdStop(r *REPL, _ string) error {
	ex, err := r.liveExecution()
	if err != nil {
		return err
	}
	ex.Stop()
	return nil
}

func cmdWhere(r *REPL, _ string) error {
	ex, nav, err := r.pausedNav()
	if err != nil {
		return err
	}
	r.out.Stack(ex.Trace(), nav.Index())
	return nil
}

func cmdUp(r *REPL, rest string) error {
	return moveFrame(r, rest, (*debug.StackNavigator).Up)
}

func cmdDown(r *REPL, rest string) error {
	return moveFrame(r, rest, (*debug.StackNavigator).Down)
}

// moveFrame applies one navigator step count times, then shows the
// newly selected frame.
func moveFrame(r *REPL, rest string, step func(*debug.StackNavigator) error) error {
	count := 1
	if rest != "" {
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			return fmt.Errorf("frame count must be a positive number, got %q", rest)
		}
		count = n
	}
	_, nav, err := r.pausedNav()
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		if err := step(nav); err != nil {
			return err
		}
	}
	frame := nav.Current()
	r.out.Printf("#%d %s at %s", nav.Index(), frame.Function, frame.Location())
	return nil
}

func cmdLocals(r *REPL, _ string) error {
	ex, frame, err := r.selectedFrame()
	if err != nil {
		return err
	}
	vals, err := ex.Bridge().Locals(frame)
	if err != nil {
		return err
	}
	r.out.Values(vals)
	return nil
}

func cmdGlobals(r *REPL, _ string) error {
	ex, frame, err := r.selectedFrame()
	if err != nil {
		return err
	}
	vals, err := ex.Bridge().Globals(frame)
	if err != nil {
		return err
	}
	r.out.Values(vals)
	return nil
}

func cmdPrint(r *REPL, rest string) error {
	fields := strings.Fields(rest)
	if len(fields) != 1 {
		return fmt.Errorf("usage: print NAME")
	}
	ex, frame, err := r.selectedFrame()
	if err != nil {
		return err
	}
	v, err := ex.Bridge().Lookup(frame, fields[0])
	if err != nil {
		return err
	}
	r.out.Value(fields[0], v)
	return nil
}

func cmdSet(r *REPL, rest string) error {
	eq := strings.Index(rest, "=")
	if eq < 0 {
		return fmt.Errorf("usage: set NAME = VALUE")
	}
	name := strings.TrimSpace(rest[:eq])
	literal := strings.TrimSpace(rest[eq+1:])
	if name == "" || literal == "" || len(strings.Fields(name)) != 1 {
		return fmt.Errorf("usage: set NAME = VALUE")
	}
	ex, frame, err := r.selectedFrame()
	if err != nil {
		return err
	}
	bridge := ex.Bridge()
	ref, err := bridge.Ref(frame, name)
	if err != nil {
		return err
	}
	if err := bridge.Write(ref, runtime.ParseLiteral(literal)); err != nil {
		return err
	}
	v, err := bridge.Read(ref)
	if err != nil {
		return err
	}
	r.out.Value(name, v)
	return nil
}

func cmdWatch(r *REPL, rest string) error {
	if rest == "" {
		r.mu.Lock()
		names := r.watches.Names()
		r.mu.Unlock()
		if len(names) == 0 {
			r.out.Printf("(no watches)")
		} else {
			r.out.Printf("watching: %s", strings.Join(names, ", "))
		}
		return nil
	}
	fields := strings.Fields(rest)
	if len(fields) != 1 {
		return fmt.Errorf("usage: watch [NAME]")
	}
	r.mu.Lock()
	r.watches.Add(fields[0])
	r.mu.Unlock()
	r.out.Printf("watching %s", fields[0])
	return nil
}

func cmdUnwatch(r *REPL, rest string) error {
	fields := strings.Fields(rest)
	if len(fields) != 1 {
		return fmt.Errorf("usage: unwatch NAME")
	}
	r.mu.Lock()
	err := r.watches.Remove(fields[0])
	r.mu.Unlock()
	return err
}

func cmdHelp(r *REPL, _ string) error {
	for _, c := range commands {
		usage := c.usage
		if usage == "" {
			usage = c.name
		}
		summary := c.summary
		if len(c.aliases) > 0 {
			summary += " (" + strings.Join(c.aliases, ", ") + ")"
		}
		r.out.Printf("  %-18s %s", usage, summary)
	}
	return nil
}

func cmdQuit(r *REPL, _ string) error {
	if ex := r.mgr.Execution(); ex != nil {
		ex.Stop()
	}
	r.saveBreakpoints()
	return ErrQuit
}
