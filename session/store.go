// Package session holds per-user conversation state. State is deliberately
// ephemeral: it lives for the process lifetime only, is never persisted, and
// losing it on restart is accepted.
package session

import "sync"

// Session is one user's conversation state: the current workflow sub-state
// label plus a workflow-private payload. The payload's concrete type belongs
// to whichever workflow set the state; handlers must type-assert and treat a
// mismatch as an inconsistency, never interpret another workflow's payload.
type Session struct {
	mu      sync.Mutex
	state   string
	payload any
}

func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) SetState(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = label
}

func (s *Session) Payload() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload
}

func (s *Session) SetPayload(payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload = payload
}

// Clear resets the session on workflow completion, cancellation, or
// unrecoverable error.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = ""
	s.payload = nil
}

// Store is the process-wide session map plus one mutex per user so each
// user's events are handled strictly in arrival order. Different users never
// contend with each other.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (st *Store) Get(userID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[userID]
	if !ok {
		s = &Session{}
		st.sessions[userID] = s
	}
	return s
}

// Serialize runs fn while holding the user's lock. Each workflow step depends
// on the payload left by the previous one, so two in-flight events for the
// same user must not interleave.
func (st *Store) Serialize(userID string, fn func()) {
	st.mu.Lock()
	lock, ok := st.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		st.locks[userID] = lock
	}
	st.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	fn()
}
