package agenda

import (
	"context"
	"sync"
)

// SessionState is the explicit two-state machine replacing the implicit
// auth-callback trigger: a session is either Disconnected (local-only)
// or Connected (an owner identity is installed on the engine).
type SessionState int

const (
	Disconnected SessionState = iota
	Connected
)

// String returns the state name for logs.
func (s SessionState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Session gates the engine's owner identity and guarantees the merge
// runs exactly once per Disconnected→Connected transition. Signing out
// leaves local state as last merged; the local store remains the
// fallback source of truth at all times.
type Session struct {
	mu     sync.Mutex
	state  SessionState
	engine *Engine
}

// NewSession wraps engine in a Disconnected session.
func NewSession(engine *Engine) *Session {
	return &Session{engine: engine}
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnSignIn transitions to Connected and runs the one-time reconciliation
// merge. Calling it while already Connected is a no-op: the merge fires
// once per transition, not once per call. A merge failure is returned to
// the caller but the session stays Connected: subsequent writes still
// reach the outbox, and the caller may retry the merge explicitly.
func (s *Session) OnSignIn(ctx context.Context, ownerID uint64) error {
	s.mu.Lock()
	if s.state == Connected {
		s.mu.Unlock()
		return nil
	}
	s.state = Connected
	s.engine.setOwner(ownerID)
	s.mu.Unlock()

	return s.engine.MergeAndSync(ctx)
}

// OnSignOut transitions to Disconnected and clears the engine's owner.
// No re-sync happens; the maps keep their last merged contents.
func (s *Session) OnSignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Disconnected
	s.engine.setOwner(0)
}
