// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"sync"

	"github.com/halyard-dev/halyard/wire"
)

// SessionStore holds the summary of the one active session. It is
// mutated only by events whose session id matches the active session;
// the router enforces that scoping before calling in here.
type SessionStore struct {
	Notifier

	mu    sync.Mutex
	state wire.SessionState
}

// NewSessionStore returns an empty active-session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

// Get returns a copy of the active session summary. A zero SessionID
// means no session is active.
func (s *SessionStore) Get() wire.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// copyLocked deep-copies the state so callers never share the Modes map.
func (s *SessionStore) copyLocked() wire.SessionState {
	copied := s.state
	if s.state.Modes != nil {
		copied.Modes = make(map[string]bool, len(s.state.Modes))
		for mode, enabled := range s.state.Modes {
			copied.Modes[mode] = enabled
		}
	}
	return copied
}

// Replace overwrites the whole summary, as a state_update for the
// active session does.
func (s *SessionStore) Replace(next wire.SessionState) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	s.Notify()
}

// Reset clears the summary. Called on session switch before the new
// session's events arrive.
func (s *SessionStore) Reset() {
	s.Replace(wire.SessionState{})
}

// SetID initializes the summary's session id. Used when session_start
// arrives for the session the consumer has marked active.
func (s *SessionStore) SetID(sessionID string) {
	s.mu.Lock()
	s.state.SessionID = sessionID
	s.mu.Unlock()
	s.Notify()
}

// SetStreaming flips the agent-is-working flag.
func (s *SessionStore) SetStreaming(streaming bool) {
	s.mu.Lock()
	s.state.IsStreaming = streaming
	s.mu.Unlock()
	s.Notify()
}

// SetCompacting flips the compaction-in-progress flag.
func (s *SessionStore) SetCompacting(compacting bool) {
	s.mu.Lock()
	s.state.IsCompacting = compacting
	s.mu.Unlock()
	s.Notify()
}

// SetModel updates the model descriptor.
func (s *SessionStore) SetModel(modelID, provider string) {
	s.mu.Lock()
	s.state.ModelID = modelID
	s.state.Provider = provider
	s.mu.Unlock()
	s.Notify()
}

// SetThinkingLevel updates the reasoning verbosity.
func (s *SessionStore) SetThinkingLevel(level string) {
	s.mu.Lock()
	s.state.ThinkingLevel = level
	s.mu.Unlock()
	s.Notify()
}
