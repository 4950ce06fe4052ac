package debug

import "errors"

// Engine error kinds. Operations wrap these with context; callers test
// with errors.Is.
var (
	// ErrSessionAlreadyRunning is returned when starting a session while
	// another execution is live.
	ErrSessionAlreadyRunning = errors.New("a session is already executing")
	// ErrInvalidTransition is returned when a run-control command is not
	// legal in the current execution state.
	ErrInvalidTransition = errors.New("invalid execution state transition")
	// ErrStaleReference is returned when a value reference from an
	// earlier pause, another execution, or a finished execution is used.
	ErrStaleReference = errors.New("stale value reference")
	// ErrUnsupportedValueKind is returned when a write would introduce a
	// value outside the scalar safelist or change a binding's kind
	// family.
	ErrUnsupportedValueKind = errors.New("unsupported value kind")
	// ErrUncaughtFault marks termination caused by an uncaught script
	// error.
	ErrUncaughtFault = errors.New("uncaught script fault")
	// ErrUnknownSession is returned for session IDs the manager does not
	// know.
	ErrUnknownSession = errors.New("unknown session")
	// ErrNoActiveSession is returned when an operation needs an active
	// session and none is set.
	ErrNoActiveSession = errors.New("no active session")
	// ErrUnknownVariable is returned when a name resolves to no binding
	// in the inspected frame.
	ErrUnknownVariable = errors.New("unknown variable")
)
