package debug

import (
	"time"

	"github.com/google/uuid"
)

// Source describes a script to load. Text is used when non-empty;
// otherwise the manager reads Path.
type Source struct {
	Path string
	Text string
}

// Session is a loaded debuggable script: an identity, a source snapshot,
// and the breakpoints set against it. The source text is frozen at load;
// use Manager.Reload to pick up on-disk changes.
type Session struct {
	id          string
	path        string
	source      string
	created     time.Time
	breakpoints *BreakpointSet
}

func newSession(path, source string) *Session {
	return &Session{
		id:          uuid.NewString(),
		path:        path,
		source:      source,
		created:     time.Now(),
		breakpoints: NewBreakpointSet(),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Path returns the source path the session was loaded from.
func (s *Session) Path() string {
	return s.path
}

// Source returns the session's source text.
func (s *Session) Source() string {
	return s.source
}

// Created returns when the session was loaded.
func (s *Session) Created() time.Time {
	return s.created
}

// Breakpoints returns the session's breakpoint set. The set survives
// executions; hit counts reset when a new execution starts.
func (s *Session) Breakpoints() *BreakpointSet {
	return s.breakpoints
}

func (s *Session) setSource(text string) {
	s.source = text
}
