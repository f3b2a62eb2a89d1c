package livesync

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jameswalter4566/crypto-sparklerog-sub000/pkg/logger"
)

// SessionFactory builds a fresh session for a logical list. The manager
// calls it each time a list goes from zero subscribers to one; a stopped
// session is never restarted.
type SessionFactory func(onChange func()) *Session

// SessionManager hands out shared sync sessions by list name, ref-counted
// so a list is only polled while at least one subscriber holds it.
type SessionManager struct {
	mu        sync.Mutex
	factories map[string]SessionFactory
	active    map[string]*managedSession
}

type managedSession struct {
	session  *Session
	refs     int
	watchers map[uint64]func()
	nextID   uint64
}

// NewSessionManager creates an empty manager
func NewSessionManager() *SessionManager {
	return &SessionManager{
		factories: make(map[string]SessionFactory),
		active:    make(map[string]*managedSession),
	}
}

// Register makes a list acquirable under the given name
func (m *SessionManager) Register(name string, factory SessionFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[name] = factory
}

// Lists returns the registered list names, sorted
func (m *SessionManager) Lists() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.factories))
	for name := range m.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Acquire returns the shared session for a list, starting it on the first
// acquisition. Every successful Acquire must be paired with one Release.
func (m *SessionManager) Acquire(name string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ms, ok := m.active[name]; ok {
		ms.refs++
		return ms.session, nil
	}

	factory, ok := m.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown list: %s", name)
	}

	ms := &managedSession{
		refs:     1,
		watchers: make(map[uint64]func()),
	}
	ms.session = factory(func() {
		m.mu.Lock()
		fns := make([]func(), 0, len(ms.watchers))
		for _, fn := range ms.watchers {
			fns = append(fns, fn)
		}
		m.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	})
	if err := ms.session.Start(); err != nil {
		return nil, err
	}
	m.active[name] = ms

	logger.Info("List session created", logger.String("list", name))
	return ms.session, nil
}

// Release drops one reference; the session is stopped when the last
// subscriber lets go. Releasing an inactive list is a no-op.
func (m *SessionManager) Release(name string) {
	m.mu.Lock()
	ms, ok := m.active[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	ms.refs--
	if ms.refs > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.active, name)
	m.mu.Unlock()

	ms.session.Stop()
	logger.Info("List session retired", logger.String("list", name))
}

// Watch registers a callback fired whenever the list's view changes.
// It returns an unwatch function. The list must currently be acquired.
func (m *SessionManager) Watch(name string, fn func()) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.active[name]
	if !ok {
		return nil, fmt.Errorf("list not active: %s", name)
	}
	id := ms.nextID
	ms.nextID++
	ms.watchers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(ms.watchers, id)
	}, nil
}

// Get returns the session for a list if it is currently active, without
// taking a reference
func (m *SessionManager) Get(name string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.active[name]
	if !ok {
		return nil, false
	}
	return ms.session, true
}

// StopAll force-stops every active session regardless of refcount
func (m *SessionManager) StopAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.active))
	for name, ms := range m.active {
		sessions = append(sessions, ms.session)
		delete(m.active, name)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
}
