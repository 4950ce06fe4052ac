package debug

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dshills/luadbg/internal/runtime"
)

func TestExecution_RunsToCompletion(t *testing.T) {
	h := newHarness(t)
	h.load(`print("hi")
mark = 1`)

	ex := h.start("")
	p := h.waitEnded()

	if p.Err != "" || p.Stopped {
		t.Fatalf("clean run terminated with err=%q stopped=%v", p.Err, p.Stopped)
	}
	if ex.State() != StateTerminated {
		t.Errorf("state = %s, want %s", ex.State(), StateTerminated)
	}
	if err := ex.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
	if got := ex.Output(); got != "hi\n" {
		t.Errorf("output = %q, want %q", got, "hi\n")
	}
}

func TestExecution_OutputNotifications(t *testing.T) {
	h := newHarness(t)
	h.load(`print("a")
print("b")`)

	h.start("")
	h.waitEnded()

	want := []string{"a\n", "b\n"}
	for i, text := range want {
		select {
		case p := <-h.output:
			if p.Text != text {
				t.Errorf("output %d = %q, want %q", i, p.Text, text)
			}
		case <-time.After(waitTimeout):
			t.Fatalf("missing output notification %d", i)
		}
	}
}

func TestExecution_SecondStartRejected(t *testing.T) {
	h := newHarness(t)
	spinner := h.load(`while true do end`)
	other := h.load(`print("other")`)

	ex := h.start(spinner.ID())

	if _, err := h.mgr.Start(spinner.ID(), nil); !errors.Is(err, ErrSessionAlreadyRunning) {
		t.Errorf("restart same session: err = %v, want ErrSessionAlreadyRunning", err)
	}
	if _, err := h.mgr.Start(other.ID(), nil); !errors.Is(err, ErrSessionAlreadyRunning) {
		t.Errorf("start other session: err = %v, want ErrSessionAlreadyRunning", err)
	}

	ex.Stop()
	if p := h.waitEnded(); !p.Stopped {
		t.Fatalf("stop did not mark termination as stopped")
	}

	// Once Stop has returned, the slot is free.
	ex2 := h.start(other.ID())
	h.waitEnded()
	if got := ex2.Output(); got != "other\n" {
		t.Errorf("second execution output = %q, want %q", got, "other\n")
	}
}

func TestExecution_BreakpointPausesOncePerVisit(t *testing.T) {
	h := newHarness(t)
	sess := h.load(`for i = 1, 3 do
	local x = i
end
done = true`)
	sess.Breakpoints().Toggle(2)

	ex := h.start(sess.ID())

	for i := 0; i < 3; i++ {
		p := h.waitPaused()
		if p.Reason != PauseReasonBreakpoint || p.Line != 2 {
			t.Fatalf("pause %d: line %d reason %s, want line 2 reason breakpoint", i, p.Line, p.Reason)
		}
		if err := ex.Continue(); err != nil {
			t.Fatalf("continue %d: %v", i, err)
		}
	}

	h.waitEnded()
	if got := sess.Breakpoints().HitCount(2); got != 3 {
		t.Errorf("hit count = %d, want 3", got)
	}
	select {
	case p := <-h.paused:
		t.Errorf("unexpected extra pause at line %d (%s)", p.Line, p.Reason)
	default:
	}
}

func TestExecution_PauseRequestLandsAtNextStatement(t *testing.T) {
	h := newHarness(t)
	h.load(`x = 0
while true do
	x = x + 1
end`)

	ex := h.start("")
	if err := ex.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}

	p := h.waitPaused()
	if p.Reason != PauseReasonPause {
		t.Errorf("pause reason = %s, want %s", p.Reason, PauseReasonPause)
	}
	if ex.State() != StatePaused {
		t.Errorf("state = %s, want %s", ex.State(), StatePaused)
	}

	// A pause request is only legal while running.
	if err := ex.Pause(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("pause while paused: err = %v, want ErrInvalidTransition", err)
	}

	ex.Stop()
	h.waitEnded()
}

const stepSource = `local function helper()
	local inside = 1
	return inside
end
local a = helper()
print(a)`

func TestExecution_StepIntoEntersCallee(t *testing.T) {
	h := newHarness(t)
	ex := h.pauseAtLine(stepSource, 5)

	if err := ex.StepInto(); err != nil {
		t.Fatalf("step_into: %v", err)
	}
	p := h.waitPaused()
	if p.Reason != PauseReasonStep || p.Line != 2 {
		t.Fatalf("paused at line %d reason %s, want line 2 reason step", p.Line, p.Reason)
	}
	if got := p.Trace.Len(); got != 2 {
		t.Errorf("stack depth = %d, want 2", got)
	}

	ex.Stop()
	h.waitEnded()
}

func TestExecution_StepOverSkipsCallee(t *testing.T) {
	h := newHarness(t)
	ex := h.pauseAtLine(stepSource, 5)

	if err := ex.StepOver(); err != nil {
		t.Fatalf("step_over: %v", err)
	}
	p := h.waitPaused()
	if p.Reason != PauseReasonStep || p.Line != 6 {
		t.Fatalf("paused at line %d reason %s, want line 6 reason step", p.Line, p.Reason)
	}
	if got := p.Trace.Len(); got != 1 {
		t.Errorf("stack depth = %d, want 1", got)
	}

	ex.Stop()
	h.waitEnded()
}

func TestExecution_StepOutReturnsToCaller(t *testing.T) {
	h := newHarness(t)
	ex := h.pauseAtLine(stepSource, 2)

	if err := ex.StepOut(); err != nil {
		t.Fatalf("step_out: %v", err)
	}
	p := h.waitPaused()
	if p.Reason != PauseReasonStep || p.Line != 6 {
		t.Fatalf("paused at line %d reason %s, want line 6 reason step", p.Line, p.Reason)
	}
	if got := p.Trace.Len(); got != 1 {
		t.Errorf("stack depth = %d, want 1", got)
	}

	ex.Stop()
	h.waitEnded()
}

func TestExecution_StepAtLastStatementTerminates(t *testing.T) {
	h := newHarness(t)
	ex := h.pauseAtLine(`x = 1`, 1)

	if err := ex.StepInto(); err != nil {
		t.Fatalf("step_into: %v", err)
	}
	p := h.waitEnded()
	if p.Err != "" || p.Stopped {
		t.Fatalf("terminated with err=%q stopped=%v, want clean finish", p.Err, p.Stopped)
	}
	if ex.State() != StateTerminated {
		t.Errorf("state = %s, want %s", ex.State(), StateTerminated)
	}
}

func TestExecution_StopUnblocksParkedScript(t *testing.T) {
	h := newHarness(t)
	ex := h.pauseAtLine(`x = 1
y = 2`, 1)

	ex.Stop()
	p := h.waitEnded()
	if !p.Stopped || p.Err != "" {
		t.Fatalf("terminated with stopped=%v err=%q, want stopped with no error", p.Stopped, p.Err)
	}
	if err := ex.Err(); err != nil {
		t.Errorf("Err() = %v, want nil after explicit stop", err)
	}

	// Stop is idempotent once the execution is gone.
	ex.Stop()
}

func TestExecution_StopCancelsFreeRunningScript(t *testing.T) {
	h := newHarness(t)
	h.load(`while true do end`)

	ex := h.start("")
	ex.Stop()

	p := h.waitEnded()
	if !p.Stopped {
		t.Fatalf("termination not marked stopped")
	}
	if ex.State() != StateTerminated {
		t.Errorf("state = %s, want %s", ex.State(), StateTerminated)
	}
}

func TestExecution_LateStopRequestIsNotAStop(t *testing.T) {
	h := newHarness(t)
	sess := h.load(`x = 1`)
	ex := newExecution(sess, runtime.NewHost(), h.bus, nil)

	// The request lands after the script's last statement has run, so
	// it never aborts anything. The outcome stays a clean finish.
	ex.stopReq.Store(true)
	ex.finish(nil)

	p := h.waitEnded()
	if p.Stopped {
		t.Fatalf("completed run reported as stopped")
	}
	if p.Err != "" {
		t.Errorf("err = %q, want empty", p.Err)
	}
}

func TestExecution_StopRacesLandingPause(t *testing.T) {
	// Stop must return even when the script is entering a pause
	// concurrently, past the stop check but not yet parked. Repeated
	// runs widen the chance of landing inside that window.
	for i := 0; i < 50; i++ {
		h := newHarness(t)
		sess := h.load(`x = 1
x = 2
x = 3`)
		sess.Breakpoints().Toggle(2)
		ex := h.start(sess.ID())

		stopped := make(chan struct{})
		go func() {
			ex.Stop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-time.After(waitTimeout):
			t.Fatalf("iteration %d: stop hung against a landing pause", i)
		}
		if p := h.waitEnded(); !p.Stopped {
			t.Fatalf("iteration %d: termination not marked stopped", i)
		}
	}
}

func TestExecution_InvalidTransitions(t *testing.T) {
	h := newHarness(t)
	h.load(`while true do end`)
	ex := h.start("")

	// Resume commands require a pause.
	if err := ex.Continue(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("continue while running: err = %v, want ErrInvalidTransition", err)
	}
	if err := ex.StepInto(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("step_into while running: err = %v, want ErrInvalidTransition", err)
	}

	ex.Stop()
	h.waitEnded()

	// Terminated is absorbing.
	if err := ex.Continue(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("continue after termination: err = %v, want ErrInvalidTransition", err)
	}
	if err := ex.Pause(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("pause after termination: err = %v, want ErrInvalidTransition", err)
	}
	if err := ex.StepOut(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("step_out after termination: err = %v, want ErrInvalidTransition", err)
	}
}

func TestExecution_FaultPausesBeforeTermination(t *testing.T) {
	h := newHarness(t)
	h.load(`ready = "yes"
error("boom")`)

	ex := h.start("")
	f := h.waitFaulted()

	if !strings.Contains(f.Message, "boom") {
		t.Errorf("fault message = %q, want it to mention boom", f.Message)
	}
	if f.Line != 2 {
		t.Errorf("fault line = %d, want 2", f.Line)
	}
	if ex.State() != StatePaused {
		t.Fatalf("state during fault = %s, want %s", ex.State(), StatePaused)
	}
	if ex.Fault() == nil {
		t.Fatalf("Fault() = nil during fault pause")
	}

	// The faulted state is still inspectable.
	frame := innermost(t, ex)
	v, err := ex.Bridge().Lookup(frame, "ready")
	if err != nil {
		t.Fatalf("lookup during fault pause: %v", err)
	}
	if v.Str != "yes" {
		t.Errorf("ready = %q, want %q", v.Str, "yes")
	}

	// Any resume command finishes the unwind.
	if err := ex.Continue(); err != nil {
		t.Fatalf("continue after fault: %v", err)
	}
	p := h.waitEnded()
	if !strings.Contains(p.Err, "boom") {
		t.Errorf("terminated err = %q, want it to mention boom", p.Err)
	}
	if !errors.Is(ex.Err(), ErrUncaughtFault) {
		t.Errorf("Err() = %v, want ErrUncaughtFault", ex.Err())
	}
}

func TestExecution_StopDuringFaultPause(t *testing.T) {
	h := newHarness(t)
	h.load(`error("late")`)

	ex := h.start("")
	h.waitFaulted()

	ex.Stop()
	h.waitEnded()
	if ex.State() != StateTerminated {
		t.Errorf("state = %s, want %s", ex.State(), StateTerminated)
	}
}

func TestExecution_WriteObservedAfterResume(t *testing.T) {
	h := newHarness(t)
	ex := h.pauseAtLine(`local x = 10
print(x)`, 2)

	frame := innermost(t, ex)
	bridge := ex.Bridge()
	ref, err := bridge.Ref(frame, "x")
	if err != nil {
		t.Fatalf("ref x: %v", err)
	}
	if err := bridge.Write(ref, runtime.IntValue(100)); err != nil {
		t.Fatalf("write x: %v", err)
	}

	if err := ex.Continue(); err != nil {
		t.Fatalf("continue: %v", err)
	}
	h.waitEnded()

	if got := ex.Output(); got != "100\n" {
		t.Errorf("output = %q, want %q", got, "100\n")
	}
}

func TestExecution_ReferencesGoStale(t *testing.T) {
	h := newHarness(t)
	sess := h.load(`local x = 1
local y = 2
print(x, y)`)
	sess.Breakpoints().Toggle(2)
	sess.Breakpoints().Toggle(3)

	ex := h.start(sess.ID())
	h.waitPaused()

	bridge := ex.Bridge()
	oldRef, err := bridge.Ref(innermost(t, ex), "x")
	if err != nil {
		t.Fatalf("ref x: %v", err)
	}
	if _, err := bridge.Read(oldRef); err != nil {
		t.Fatalf("read at pause: %v", err)
	}

	if err := ex.Continue(); err != nil {
		t.Fatalf("continue: %v", err)
	}
	h.waitPaused()

	// The old pause's reference is dead, the new pause's works.
	if _, err := bridge.Read(oldRef); !errors.Is(err, ErrStaleReference) {
		t.Errorf("read stale ref: err = %v, want ErrStaleReference", err)
	}
	newRef, err := bridge.Ref(innermost(t, ex), "x")
	if err != nil {
		t.Fatalf("ref x at second pause: %v", err)
	}
	if v, err := bridge.Read(newRef); err != nil || v.Int != 1 {
		t.Errorf("read fresh ref = (%v, %v), want x = 1", v, err)
	}
	if err := bridge.Write(oldRef, runtime.IntValue(9)); !errors.Is(err, ErrStaleReference) {
		t.Errorf("write stale ref: err = %v, want ErrStaleReference", err)
	}

	ex.Stop()
	h.waitEnded()

	// Termination invalidates everything.
	if _, err := bridge.Read(newRef); !errors.Is(err, ErrStaleReference) {
		t.Errorf("read after termination: err = %v, want ErrStaleReference", err)
	}
}

func TestExecution_ResumedNotificationOrder(t *testing.T) {
	h := newHarness(t)
	ex := h.pauseAtLine(`x = 1
y = 2`, 2)

	if err := ex.Continue(); err != nil {
		t.Fatalf("continue: %v", err)
	}
	h.waitEnded()

	want := []string{"start", "continue"}
	for i, mode := range want {
		select {
		case r := <-h.resumed:
			if r.Mode != mode {
				t.Errorf("resumed %d mode = %q, want %q", i, r.Mode, mode)
			}
		case <-time.After(waitTimeout):
			t.Fatalf("missing resumed notification %d", i)
		}
	}
}

func TestExecution_TraceClearedOutsidePause(t *testing.T) {
	h := newHarness(t)
	ex := h.pauseAtLine(`x = 1
y = 2`, 2)

	if ex.Trace() == nil {
		t.Fatalf("no trace while paused")
	}
	if err := ex.Continue(); err != nil {
		t.Fatalf("continue: %v", err)
	}
	h.waitEnded()

	if ex.Trace() != nil {
		t.Errorf("trace survives termination")
	}
}
