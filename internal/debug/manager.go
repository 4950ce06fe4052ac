package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dshills/luadbg/internal/event"
	"github.com/dshills/luadbg/internal/runtime"
)

// Manager owns the loaded sessions and enforces that at most one of
// them executes at a time. All methods are safe for concurrent use;
// run control on the resulting Execution is not, see Execution.
type Manager struct {
	mu       sync.Mutex
	bus      *event.Bus
	sessions map[string]*Session
	order    []string
	activeID string
	exec     *Execution
	hostOpts []runtime.Option
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithHostOptions sets interpreter options applied to every execution
// the manager starts.
func WithHostOptions(opts ...runtime.Option) ManagerOption {
	return func(m *Manager) {
		m.hostOpts = opts
	}
}

// NewManager returns an empty manager publishing on bus. A nil bus
// disables notifications.
func NewManager(bus *event.Bus, opts ...ManagerOption) *Manager {
	m := &Manager{
		bus:      bus,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load registers a new session for src. When src.Text is empty the file
// at src.Path is read; either way the text is frozen into the session.
// The first loaded session becomes active.
func (m *Manager) Load(src Source) (*Session, error) {
	path := src.Path
	text := src.Text
	if text == "" {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", src.Path, err)
		}
		text = string(data)
	}

	sess := newSession(path, text)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID()] = sess
	m.order = append(m.order, sess.ID())
	if m.activeID == "" {
		m.activeID = sess.ID()
	}
	return sess, nil
}

// Unload removes a session. It fails while the session is executing.
// Unloading the active session leaves no session active.
func (m *Manager) Unload(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrUnknownSession)
	}
	if m.exec != nil && m.exec.Session() == sess {
		return fmt.Errorf("unload %s while executing: %w", id, ErrSessionAlreadyRunning)
	}

	delete(m.sessions, id)
	for i, sid := range m.order {
		if sid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.activeID == id {
		m.activeID = ""
	}
	return nil
}

// SetActive marks the session future Start calls default to.
func (m *Manager) SetActive(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, ErrUnknownSession)
	}
	m.activeID = id
	return nil
}

// ActiveSession returns the active session, nil when none is set.
func (m *Manager) ActiveSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeID == "" {
		return nil
	}
	return m.sessions[m.activeID]
}

// Session looks a session up by ID.
func (m *Manager) Session(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// SessionByPath returns the most recently loaded session for path. The
// path is tried verbatim first so sessions created from text, whose
// paths are labels rather than files, stay addressable.
func (m *Manager) SessionByPath(path string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.lookupPath(path); ok {
		return sess, true
	}
	if abs, err := filepath.Abs(path); err == nil && abs != path {
		return m.lookupPath(abs)
	}
	return nil, false
}

func (m *Manager) lookupPath(path string) (*Session, bool) {
	for i := len(m.order) - 1; i >= 0; i-- {
		sess := m.sessions[m.order[i]]
		if sess != nil && sess.Path() == path {
			return sess, true
		}
	}
	return nil, false
}

// Sessions returns all loaded sessions in load order.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.sessions[id])
	}
	return out
}

// Start begins executing a session. An empty id starts the active
// session. Exactly one execution may exist at a time; starting while
// another runs fails with ErrSessionAlreadyRunning regardless of which
// session it belongs to. Instrumentation happens here, so a reloaded
// source takes effect on the next Start.
func (m *Manager) Start(id string, args []string) (*Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.exec != nil {
		return nil, fmt.Errorf("session %s is executing: %w", m.exec.Session().ID(), ErrSessionAlreadyRunning)
	}

	if id == "" {
		id = m.activeID
	}
	if id == "" {
		return nil, ErrNoActiveSession
	}
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrUnknownSession)
	}

	prog, err := runtime.Instrument(sess.Source(), sess.Path())
	if err != nil {
		return nil, err
	}
	host := runtime.NewHost(m.hostOpts...)

	sess.Breakpoints().ResetHits()
	ex := newExecution(sess, host, m.bus, m.clearExecution)
	m.exec = ex
	ex.launch(prog, args)
	return ex, nil
}

// Execution returns the in-flight execution, nil when idle.
func (m *Manager) Execution() *Execution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exec
}

// Reload replaces a session's source with the current file contents.
// Breakpoints survive; lines past the new end simply never match. It
// fails while the session is executing.
func (m *Manager) Reload(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrUnknownSession)
	}
	if m.exec != nil && m.exec.Session() == sess {
		return fmt.Errorf("reload %s while executing: %w", id, ErrSessionAlreadyRunning)
	}

	data, err := os.ReadFile(sess.Path())
	if err != nil {
		return fmt.Errorf("reload %s: %w", id, err)
	}
	sess.setSource(string(data))
	return nil
}

// Shutdown stops the in-flight execution, if any, and blocks until it
// is torn down. Loaded sessions remain loaded.
func (m *Manager) Shutdown() {
	if ex := m.Execution(); ex != nil {
		ex.Stop()
	}
}

// clearExecution releases the single-execution slot. Called from the
// terminating execution before its Terminated notification, so a
// subscriber reacting to that notification can immediately start
// another session.
func (m *Manager) clearExecution(ex *Execution) {
	m.mu.Lock()
	if m.exec == ex {
		m.exec = nil
	}
	m.mu.Unlock()
}
