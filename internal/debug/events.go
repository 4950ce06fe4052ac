package debug

import "github.com/dshills/luadbg/internal/event/topic"

// Topics published by the engine. All notifications are delivered
// synchronously at the transition they describe.
const (
	// TopicSessionPaused fires when an execution enters Paused.
	TopicSessionPaused topic.Topic = "debug.session.paused"
	// TopicSessionResumed fires when an execution leaves Paused, and
	// once when it starts.
	TopicSessionResumed topic.Topic = "debug.session.resumed"
	// TopicSessionTerminated fires exactly once when an execution ends.
	TopicSessionTerminated topic.Topic = "debug.session.terminated"
	// TopicSessionFaulted fires when an uncaught error pauses the
	// execution post-mortem, before it terminates.
	TopicSessionFaulted topic.Topic = "debug.session.faulted"
	// TopicSessionOutput carries text the script printed.
	TopicSessionOutput topic.Topic = "debug.session.output"
	// TopicSourceChanged reports that a loaded session's file changed on
	// disk. Published by the source watcher, consumed by front-ends.
	TopicSourceChanged topic.Topic = "debug.source.changed"
)

// PauseReason identifies what paused an execution.
type PauseReason string

// Pause reasons, in the order the trace hook checks them.
const (
	PauseReasonStep       PauseReason = "step"
	PauseReasonBreakpoint PauseReason = "breakpoint"
	PauseReasonPause      PauseReason = "pause"
	PauseReasonFault      PauseReason = "fault"
)

// PausedPayload accompanies TopicSessionPaused.
type PausedPayload struct {
	SessionID string
	Reason    PauseReason
	Line      int
	Trace     *StackTrace
}

// ResumedPayload accompanies TopicSessionResumed. Mode is the command
// that resumed execution: "start", "continue", "step_into", "step_over",
// or "step_out".
type ResumedPayload struct {
	SessionID string
	Mode      string
}

// TerminatedPayload accompanies TopicSessionTerminated. Err is empty for
// a clean finish and for an explicit stop; Stopped distinguishes the
// latter.
type TerminatedPayload struct {
	SessionID string
	Err       string
	Stopped   bool
}

// FaultedPayload accompanies TopicSessionFaulted.
type FaultedPayload struct {
	SessionID string
	Message   string
	Line      int
	Trace     *StackTrace
}

// OutputPayload accompanies TopicSessionOutput.
type OutputPayload struct {
	SessionID string
	Text      string
}

// SourceChangedPayload accompanies TopicSourceChanged.
type SourceChangedPayload struct {
	SessionID string
	Path      string
}
