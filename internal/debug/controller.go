package debug

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dshills/luadbg/internal/event"
	"github.com/dshills/luadbg/internal/event/topic"
	"github.com/dshills/luadbg/internal/runtime"
)

// ExecutionState tracks where an execution is in its lifecycle.
type ExecutionState int

// Execution lifecycle states. Terminated is absorbing.
const (
	StateIdle ExecutionState = iota
	StateRunning
	StatePaused
	StateStepping
	StateTerminated
)

// String returns a human-readable state name.
func (s ExecutionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStepping:
		return "stepping"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type stepMode int

const (
	stepNone stepMode = iota
	stepInto
	stepOver
	stepOut
)

type command int

const (
	cmdContinue command = iota
	cmdStepInto
	cmdStepOver
	cmdStepOut
	cmdStop
)

// errStopRequested aborts the script from inside the trace hook.
var errStopRequested = errors.New("stop requested")

// Execution drives one run of one session. The script executes on a
// dedicated goroutine; at every traced statement it either continues or
// parks on the command channel until the controlling goroutine issues a
// run-control command. All run-control methods must be called from a
// single controlling goroutine, and never from inside a notification
// handler: handlers run on the script's goroutine, which cannot unpark
// itself by blocking.
type Execution struct {
	session   *Session
	host      *runtime.Host
	bus       *event.Bus
	inspector *StackInspector

	mu     sync.Mutex
	state  ExecutionState
	gen    uint64 // pause generation; references from older pauses are stale
	trace  *StackTrace
	fault  *runtime.Fault
	err    error
	output strings.Builder

	// Step bookkeeping, touched only on the script's goroutine.
	step      stepMode
	stepDepth int

	pauseReq atomic.Bool
	stopReq  atomic.Bool

	cmds   chan command
	cancel context.CancelFunc
	done   chan struct{}

	onExit func(*Execution)
}

func newExecution(session *Session, host *runtime.Host, bus *event.Bus, onExit func(*Execution)) *Execution {
	return &Execution{
		session:   session,
		host:      host,
		bus:       bus,
		inspector: NewStackInspector(host),
		state:     StateIdle,
		cmds:      make(chan command, 1),
		done:      make(chan struct{}),
		onExit:    onExit,
	}
}

// launch wires the host hooks and moves Idle -> Running. The script
// starts on its own goroutine; a start notification precedes any other
// event from this execution.
func (ex *Execution) launch(prog *runtime.Program, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	ex.cancel = cancel

	ex.host.OnTrace(ex.checkpoint)
	ex.host.OnFault(ex.faultPause)
	ex.host.OnPrint(ex.emitOutput)

	ex.mu.Lock()
	ex.state = StateRunning
	ex.mu.Unlock()

	go ex.run(ctx, prog, args)
}

func (ex *Execution) run(ctx context.Context, prog *runtime.Program, args []string) {
	ex.publishResumed("start")
	ex.finish(ex.host.Run(ctx, prog, args))
}

// finish records the terminal outcome, releases the interpreter, and
// publishes the single Terminated notification.
func (ex *Execution) finish(runErr error) {
	ex.mu.Lock()
	ex.state = StateTerminated
	ex.trace = nil
	// A stop counts only when it actually took effect. Every effective
	// stop aborts the interpreter, so a nil runErr means the script ran
	// to completion before the request landed.
	stopped := ex.stopReq.Load() && runErr != nil
	switch {
	case ex.fault != nil:
		ex.err = fmt.Errorf("%w: %s", ErrUncaughtFault, ex.fault.Message)
	case stopped:
		ex.err = nil
	case runErr != nil:
		ex.err = runErr
	}
	errText := ""
	if ex.err != nil {
		errText = ex.err.Error()
	}
	ex.mu.Unlock()

	ex.host.Close()
	if ex.onExit != nil {
		ex.onExit(ex)
	}
	publish(ex.bus, TopicSessionTerminated, TerminatedPayload{
		SessionID: ex.session.ID(),
		Err:       errText,
		Stopped:   stopped,
	})
	close(ex.done)
}

// checkpoint runs on the script's goroutine before every statement. The
// checks are ordered: a satisfied step wins over a breakpoint, which
// wins over an asynchronous pause request.
func (ex *Execution) checkpoint(line int) error {
	if ex.stopReq.Load() {
		return errStopRequested
	}

	var reason PauseReason
	switch {
	case ex.stepSatisfied():
		reason = PauseReasonStep
	case ex.session.Breakpoints().Contains(line):
		reason = PauseReasonBreakpoint
		ex.session.Breakpoints().recordHit(line)
	case ex.pauseReq.CompareAndSwap(true, false):
		reason = PauseReasonPause
	default:
		return nil
	}
	return ex.pauseAt(line, reason, nil)
}

// stepSatisfied reports whether the pending step lands on this event.
// step_into lands anywhere; step_over once the stack is back at or above
// the requesting depth; step_out once it is strictly above.
func (ex *Execution) stepSatisfied() bool {
	switch ex.step {
	case stepInto:
		return true
	case stepOver:
		return ex.host.Depth() <= ex.stepDepth
	case stepOut:
		return ex.host.Depth() < ex.stepDepth
	default:
		return false
	}
}

// faultPause runs inside the interpreter's message handler while the
// faulted stack is still intact, giving observers a post-mortem pause.
// Whatever command resumes it, the execution then terminates.
func (ex *Execution) faultPause(f runtime.Fault) {
	if ex.stopReq.Load() {
		return
	}
	_ = ex.pauseAt(f.Line, PauseReasonFault, &f)
}

// pauseAt captures the stack, announces the pause, and parks until a
// command arrives. The capture completes before the announcement, so
// observers never see a half-built snapshot.
func (ex *Execution) pauseAt(line int, reason PauseReason, fault *runtime.Fault) error {
	ex.step = stepNone

	ex.mu.Lock()
	ex.gen++
	trace := ex.inspector.Capture(ex, ex.gen)
	ex.trace = trace
	ex.fault = fault
	ex.state = StatePaused
	sessionID := ex.session.ID()
	ex.mu.Unlock()

	if fault != nil {
		publish(ex.bus, TopicSessionFaulted, FaultedPayload{
			SessionID: sessionID,
			Message:   fault.Message,
			Line:      line,
			Trace:     trace,
		})
	} else {
		publish(ex.bus, TopicSessionPaused, PausedPayload{
			SessionID: sessionID,
			Reason:    reason,
			Line:      line,
			Trace:     trace,
		})
	}

	cmd := <-ex.cmds

	switch cmd {
	case cmdStop:
		return errStopRequested
	case cmdStepInto:
		ex.step = stepInto
	case cmdStepOver:
		ex.step, ex.stepDepth = stepOver, ex.host.Depth()
	case cmdStepOut:
		ex.step, ex.stepDepth = stepOut, ex.host.Depth()
	}
	return nil
}

// resume validates Paused -> next, announces it, and unparks the script.
func (ex *Execution) resume(cmd command, mode string, next ExecutionState) error {
	ex.mu.Lock()
	if ex.state != StatePaused {
		st := ex.state
		ex.mu.Unlock()
		return fmt.Errorf("%s in state %s: %w", mode, st, ErrInvalidTransition)
	}
	ex.state = next
	ex.trace = nil
	ex.mu.Unlock()

	ex.publishResumed(mode)
	ex.cmds <- cmd
	return nil
}

// Continue resumes free running until the next breakpoint, pause
// request, fault, or completion.
func (ex *Execution) Continue() error {
	return ex.resume(cmdContinue, "continue", StateRunning)
}

// StepInto advances one statement, following calls into their callees.
func (ex *Execution) StepInto() error {
	return ex.resume(cmdStepInto, "step_into", StateStepping)
}

// StepOver advances one statement, treating calls as atomic.
func (ex *Execution) StepOver() error {
	return ex.resume(cmdStepOver, "step_over", StateStepping)
}

// StepOut resumes until the current function returns to its caller.
func (ex *Execution) StepOut() error {
	return ex.resume(cmdStepOut, "step_out", StateStepping)
}

// Pause requests a pause at the next statement. Valid only while
// Running; the pause lands asynchronously.
func (ex *Execution) Pause() error {
	ex.mu.Lock()
	if ex.state != StateRunning {
		st := ex.state
		ex.mu.Unlock()
		return fmt.Errorf("pause in state %s: %w", st, ErrInvalidTransition)
	}
	ex.mu.Unlock()
	ex.pauseReq.Store(true)
	return nil
}

// Stop forcibly terminates the execution and blocks until it is fully
// torn down. It always succeeds: a parked script is unparked, a free
// running script is cancelled at its next instruction, and a finished
// execution returns immediately. Stop must not be called from a
// notification handler.
func (ex *Execution) Stop() {
	ex.stopReq.Store(true)

	if ex.cancel != nil {
		ex.cancel()
	}
	// The unpark is sent regardless of the observed state: a pause may
	// be landing concurrently, past its stopReq check but not yet
	// parked, and a state read cannot tell that apart from a free run.
	// The channel is buffered and the execution is single-use, so an
	// unconsumed command is inert.
	select {
	case ex.cmds <- cmdStop:
	default:
	}
	<-ex.done
}

// State returns the current lifecycle state.
func (ex *Execution) State() ExecutionState {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.state
}

// Session returns the session this execution runs.
func (ex *Execution) Session() *Session {
	return ex.session
}

// Trace returns the stack captured at the current pause, nil outside a
// pause.
func (ex *Execution) Trace() *StackTrace {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.trace
}

// Fault returns the uncaught fault being inspected post-mortem, nil
// when the execution has not faulted.
func (ex *Execution) Fault() *runtime.Fault {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.fault
}

// Err returns the terminal error: nil for a clean finish or stop, an
// ErrUncaughtFault wrap after a fault.
func (ex *Execution) Err() error {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.err
}

// Output returns everything the script has printed so far.
func (ex *Execution) Output() string {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.output.String()
}

// Done is closed once the execution has fully terminated.
func (ex *Execution) Done() <-chan struct{} {
	return ex.done
}

// Finished reports whether the execution has terminated.
func (ex *Execution) Finished() bool {
	return ex.State() == StateTerminated
}

// Bridge returns a variable bridge bound to this execution.
func (ex *Execution) Bridge() *VariableBridge {
	return &VariableBridge{exec: ex}
}

func (ex *Execution) emitOutput(text string) {
	ex.mu.Lock()
	ex.output.WriteString(text)
	ex.mu.Unlock()
	publish(ex.bus, TopicSessionOutput, OutputPayload{
		SessionID: ex.session.ID(),
		Text:      text,
	})
}

func (ex *Execution) publishResumed(mode string) {
	publish(ex.bus, TopicSessionResumed, ResumedPayload{
		SessionID: ex.session.ID(),
		Mode:      mode,
	})
}

// publish delivers a notification synchronously on the caller's
// goroutine. Handler errors do not disturb the execution.
func publish[T any](bus *event.Bus, t topic.Topic, payload T) {
	if bus == nil {
		return
	}
	_ = bus.Publish(context.Background(), event.NewEvent(t, payload).WithSource("debug"))
}
