package wasd

import (
	"errors"
	"sync"
)

// Manager opens sessions with a shared Registrar and Options and keeps track
// of the ones still open. Each Open yields an independent Session, so several
// transports can feed separate virtual keyboards at the same time.
type Manager struct {
	reg  Registrar
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns a Manager that registers devices through reg.
func NewManager(reg Registrar, opts Options) *Manager {
	return &Manager{
		reg:      reg,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Open creates a session bound to t.
func (m *Manager) Open(t Transport) (*Session, error) {
	s, err := Open(t, m.reg, m.opts)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s, nil
}

// Close closes s and forgets it. Closing an unknown or already closed session
// is a no-op.
func (m *Manager) Close(s *Session) error {
	m.mu.Lock()
	delete(m.sessions, s.ID())
	m.mu.Unlock()
	return s.Close()
}

// CloseAll closes every tracked session and returns the joined errors.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sessions returns a snapshot of the open sessions.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}
