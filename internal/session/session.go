// Package session owns the conversation state of one chat user and the
// per-turn response pipeline.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"kbchat/internal/logging"
	"kbchat/internal/types"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one finalized chat message.
type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	Time    time.Time `json:"time"`

	// Diagnostics are non-fatal notes about the response (assistant turns only).
	Diagnostics []types.Diagnostic `json:"diagnostics,omitempty"`
}

// State is a point-in-time copy of a session.
type State struct {
	ID            string
	Turns         []Turn
	LastCitations []types.CitationRecord
	LastTrace     types.Trace
}

// LastResponse rebuilds the structured part of the last raw response.
func (s State) LastResponse() types.RawResponse {
	return types.RawResponse{Citations: s.LastCitations, Trace: s.LastTrace}
}

// ErrStaleSession is returned when a turn completes after the session it
// was submitted to has been reset.
var ErrStaleSession = errors.New("session was reset while the turn was in flight")

// Session is the mutable context of one conversation. History only grows
// by whole exchanges; Reset replaces everything at once.
type Session struct {
	mu    sync.RWMutex
	state State
	newID func() string
}

// New creates a session with a fresh random id.
func New() *Session {
	s := &Session{newID: uuid.NewString}
	s.state.ID = s.newID()
	logging.Session("session %s created", s.state.ID)
	return s
}

// ID returns the current session id.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ID
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.Turns = append([]Turn(nil), s.state.Turns...)
	return st
}

// Turns returns a copy of the history.
func (s *Session) Turns() []Turn {
	return s.Snapshot().Turns
}

// Record appends a completed exchange and replaces the last-seen citations
// and trace with the raw response's structured data. sessionID must match
// the current id, otherwise the exchange belonged to a reset session and is
// dropped with ErrStaleSession.
func (s *Session) Record(sessionID, prompt string, resp types.RawResponse, d Display) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID != s.state.ID {
		logging.Get(logging.CategorySession).Warn("dropping turn for stale session %s (current %s)", sessionID, s.state.ID)
		return nil, ErrStaleSession
	}

	now := time.Now()
	exchange := []Turn{
		{Role: RoleUser, Content: prompt, Time: now},
		{Role: RoleAssistant, Content: d.Text, Time: now, Diagnostics: d.Diagnostics},
	}
	s.state.Turns = append(s.state.Turns, exchange...)
	s.state.LastCitations = resp.Citations
	s.state.LastTrace = resp.Trace

	logging.SessionDebug("session %s: recorded turn %d (%d citations, %d trace fragments)",
		s.state.ID, len(s.state.Turns)/2, len(resp.Citations), resp.Trace.Len())
	return exchange, nil
}

// Reset atomically replaces the session with an empty one under a new id.
func (s *Session) Reset() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.state.ID
	s.state = State{ID: s.newID()}
	logging.Session("session %s reset to %s", old, s.state.ID)
	return s.state.ID
}

// Restore replaces the session with a previously saved state.
func (s *Session) Restore(st State) {
	if st.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st.Turns = append([]Turn(nil), st.Turns...)
	s.state = st
	logging.Session("session %s restored with %d turns", st.ID, len(st.Turns))
}
