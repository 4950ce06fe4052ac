package debug

import (
	"context"
	"testing"
	"time"

	"github.com/dshills/luadbg/internal/event"
	"github.com/dshills/luadbg/internal/event/topic"
)

const waitTimeout = 5 * time.Second

// harness bundles a manager with channels fed by its notifications, so
// tests can block until the engine reaches a known point.
type harness struct {
	t       *testing.T
	bus     *event.Bus
	mgr     *Manager
	paused  chan PausedPayload
	resumed chan ResumedPayload
	faulted chan FaultedPayload
	ended   chan TerminatedPayload
	output  chan OutputPayload
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		bus:     event.NewBus(),
		paused:  make(chan PausedPayload, 32),
		resumed: make(chan ResumedPayload, 32),
		faulted: make(chan FaultedPayload, 32),
		ended:   make(chan TerminatedPayload, 32),
		output:  make(chan OutputPayload, 32),
	}
	h.mgr = NewManager(h.bus)
	forward(t, h.bus, TopicSessionPaused, h.paused)
	forward(t, h.bus, TopicSessionResumed, h.resumed)
	forward(t, h.bus, TopicSessionFaulted, h.faulted)
	forward(t, h.bus, TopicSessionTerminated, h.ended)
	forward(t, h.bus, TopicSessionOutput, h.output)
	return h
}

// forward feeds every payload published on tp into ch. The channel must
// be buffered generously: handlers run on the script's goroutine, and a
// full channel would wedge the execution under test.
func forward[T any](t *testing.T, bus *event.Bus, tp topic.Topic, ch chan T) {
	t.Helper()
	_, err := bus.Subscribe(tp, event.AsHandler(func(ctx context.Context, e event.Event[T]) error {
		ch <- e.Payload
		return nil
	}))
	if err != nil {
		t.Fatalf("subscribe %s: %v", tp, err)
	}
}

func (h *harness) load(src string) *Session {
	h.t.Helper()
	sess, err := h.mgr.Load(Source{Path: "test.lua", Text: src})
	if err != nil {
		h.t.Fatalf("load: %v", err)
	}
	return sess
}

func (h *harness) start(id string) *Execution {
	h.t.Helper()
	ex, err := h.mgr.Start(id, nil)
	if err != nil {
		h.t.Fatalf("start: %v", err)
	}
	return ex
}

func (h *harness) waitPaused() PausedPayload {
	h.t.Helper()
	select {
	case p := <-h.paused:
		return p
	case p := <-h.faulted:
		h.t.Fatalf("expected pause, got fault: %s at line %d", p.Message, p.Line)
	case p := <-h.ended:
		h.t.Fatalf("expected pause, execution terminated: err=%q stopped=%v", p.Err, p.Stopped)
	case <-time.After(waitTimeout):
		h.t.Fatalf("timed out waiting for pause")
	}
	panic("unreachable")
}

func (h *harness) waitFaulted() FaultedPayload {
	h.t.Helper()
	select {
	case p := <-h.faulted:
		return p
	case p := <-h.ended:
		h.t.Fatalf("expected fault, execution terminated: err=%q", p.Err)
	case <-time.After(waitTimeout):
		h.t.Fatalf("timed out waiting for fault")
	}
	panic("unreachable")
}

func (h *harness) waitEnded() TerminatedPayload {
	h.t.Helper()
	select {
	case p := <-h.ended:
		return p
	case <-time.After(waitTimeout):
		h.t.Fatalf("timed out waiting for termination")
	}
	panic("unreachable")
}

// pauseAtLine loads src, sets a breakpoint, starts the session, and
// returns once the execution is paused there.
func (h *harness) pauseAtLine(src string, line int) *Execution {
	h.t.Helper()
	sess := h.load(src)
	sess.Breakpoints().Toggle(line)
	ex := h.start(sess.ID())
	p := h.waitPaused()
	if p.Reason != PauseReasonBreakpoint || p.Line != line {
		h.t.Fatalf("paused at line %d reason %s, want line %d reason %s",
			p.Line, p.Reason, line, PauseReasonBreakpoint)
	}
	return ex
}

// innermost returns frame 0 of the current pause's trace.
func innermost(t *testing.T, ex *Execution) *FrameSnapshot {
	t.Helper()
	tr := ex.Trace()
	if tr == nil || tr.Len() == 0 {
		t.Fatalf("no stack trace at pause")
	}
	return tr.Frames[0]
}
