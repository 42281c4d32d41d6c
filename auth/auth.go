// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth tracks a single in-flight provider login flow.
//
// At most one flow is tracked at a time; starting a new flow replaces
// any prior one unconditionally. Every inbound auth event carries a
// flow id, and events whose id does not match the tracked flow are
// ignored without error — they belong to an abandoned or superseded
// attempt and discarding them is the correct behavior, not a failure.
package auth

import (
	"sync"

	"github.com/halyard-dev/halyard/state"
	"github.com/halyard-dev/halyard/wire"
)

// Status is the login flow's state machine position.
type Status string

const (
	// StatusIdle means the flow was started but the daemon has not
	// responded yet.
	StatusIdle Status = "idle"
	// StatusWaitingURL means the user must visit an authorization URL.
	StatusWaitingURL Status = "waiting_url"
	// StatusWaitingInput means the daemon asked for user input.
	StatusWaitingInput Status = "waiting_input"
	// StatusInProgress means the daemon is completing the exchange.
	StatusInProgress Status = "in_progress"
	// StatusComplete is terminal success.
	StatusComplete Status = "complete"
	// StatusError is terminal failure.
	StatusError Status = "error"
)

// Flow is the tracked login flow with its status-specific payload.
type Flow struct {
	FlowID   string
	Provider string
	Status   Status

	// waiting_url payload.
	URL          string
	Instructions string

	// waiting_input payload.
	PromptMessage string
	Placeholder   string

	// Progress carries the latest background progress message. It is
	// set by progress events and may also be attached while the flow
	// shows an authorization URL.
	Progress string

	// Terminal payload.
	Success bool
	Error   string
}

// FlowStore holds the tracked flow, if any.
type FlowStore struct {
	state.Notifier

	mu   sync.Mutex
	flow *Flow
}

// NewFlowStore returns a store with no tracked flow.
func NewFlowStore() *FlowStore {
	return &FlowStore{}
}

// Start begins tracking a new flow in the idle state, replacing any
// prior flow.
func (s *FlowStore) Start(flowID, provider string) {
	s.mu.Lock()
	s.flow = &Flow{
		FlowID:   flowID,
		Provider: provider,
		Status:   StatusIdle,
	}
	s.mu.Unlock()
	s.Notify()
}

// Apply routes one auth event into the flow state machine. Events for
// a flow other than the tracked one — or with no flow tracked at all —
// are ignored.
func (s *FlowStore) Apply(event wire.AuthEvent) {
	s.mu.Lock()
	if s.flow == nil || s.flow.FlowID != event.FlowID() {
		s.mu.Unlock()
		return
	}

	switch event := event.(type) {
	case wire.AuthURL:
		s.flow.Status = StatusWaitingURL
		s.flow.URL = event.URL
		s.flow.Instructions = event.Instructions
		if event.Progress != "" {
			s.flow.Progress = event.Progress
		}
	case wire.AuthPrompt:
		s.flow.Status = StatusWaitingInput
		s.flow.PromptMessage = event.Message
		s.flow.Placeholder = event.Placeholder
	case wire.AuthProgress:
		// While an authorization URL is showing, a progress message
		// attaches without a transition: the user still needs the URL
		// on screen. Everywhere else the flow moves to in_progress.
		if s.flow.Status != StatusWaitingURL {
			s.flow.Status = StatusInProgress
		}
		s.flow.Progress = event.Message
	case wire.AuthComplete:
		if event.Success {
			s.flow.Status = StatusComplete
		} else {
			s.flow.Status = StatusError
		}
		s.flow.Success = event.Success
		s.flow.Error = event.Error
	}

	s.mu.Unlock()
	s.Notify()
}

// Get returns a copy of the tracked flow. ok is false when no flow is
// tracked.
func (s *FlowStore) Get() (Flow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flow == nil {
		return Flow{}, false
	}
	return *s.flow, true
}

// Clear drops the tracked flow. Called when the consumer dismisses a
// completed or failed flow.
func (s *FlowStore) Clear() {
	s.mu.Lock()
	s.flow = nil
	s.mu.Unlock()
	s.Notify()
}
