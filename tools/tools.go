// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package tools tracks the lifecycle of agent tool invocations, keyed
// by call id. Each execution binds to the assistant message during
// which it occurred; the binding is resolved once at registration and
// never changes, even if a new message starts streaming before the
// tool call finishes.
//
// Status moves strictly forward through called → running →
// completed|error. Events for unknown call ids and transitions that
// would move backwards are silent no-ops: in a multiplexed event
// stream, stale or replayed tool events are expected, not errors.
package tools

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/halyard-dev/halyard/lib/clock"
	"github.com/halyard-dev/halyard/state"
)

// Status is the lifecycle state of one tool execution.
type Status string

const (
	// StatusCalled means the invocation was announced but has not
	// started running.
	StatusCalled Status = "called"
	// StatusRunning means the tool is executing.
	StatusRunning Status = "running"
	// StatusCompleted is terminal success.
	StatusCompleted Status = "completed"
	// StatusError is terminal failure.
	StatusError Status = "error"
)

// terminal reports whether a status accepts no further transitions.
func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Execution is the tracked record of one tool invocation.
type Execution struct {
	CallID   string
	ToolName string
	Args     json.RawMessage
	Status   Status
	// Partial holds the latest streamed partial result while running.
	Partial string
	// Result is the final output, set by Finish.
	Result    string
	StartedAt time.Time
	EndedAt   time.Time
	// MessageID is the owning assistant message, resolved at first
	// registration. Empty when no assistant message existed yet.
	MessageID string
}

// Tracker is the keyed registry of tool executions. The resolve
// function supplies the owning-message candidate at registration time
// (the streaming assistant message, else the most recent assistant
// message, else "").
type Tracker struct {
	state.Notifier

	mu         sync.Mutex
	executions map[string]*Execution
	// order records call ids in first-registered order for the
	// per-message queries.
	order   []string
	resolve func() string
	clock   clock.Clock
}

// NewTracker returns an empty tracker. resolve may be nil, in which
// case executions bind to no message.
func NewTracker(resolve func() string, clk clock.Clock) *Tracker {
	if resolve == nil {
		resolve = func() string { return "" }
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Tracker{
		executions: make(map[string]*Execution),
		resolve:    resolve,
		clock:      clk,
	}
}

// Register records a "called" execution. Re-registering an existing
// call id updates the name and args but preserves the record's status,
// timestamps, and owning message.
func (t *Tracker) Register(callID, toolName string, args json.RawMessage) {
	t.upsert(callID, toolName, args, StatusCalled)
}

// Start promotes an execution to "running". A late Start after
// Register keeps the original start time and owning message; a Start
// for an unknown call id creates the record outright.
func (t *Tracker) Start(callID, toolName string, args json.RawMessage) {
	t.upsert(callID, toolName, args, StatusRunning)
}

// upsert creates or updates the record for callID, moving status
// forward to target when allowed.
func (t *Tracker) upsert(callID, toolName string, args json.RawMessage, target Status) {
	t.mu.Lock()

	execution, exists := t.executions[callID]
	if !exists {
		execution = &Execution{
			CallID:    callID,
			Status:    target,
			StartedAt: t.clock.Now(),
			MessageID: t.resolve(),
		}
		t.executions[callID] = execution
		t.order = append(t.order, callID)
	}

	execution.ToolName = toolName
	if args != nil {
		execution.Args = args
	}
	if execution.MessageID == "" {
		execution.MessageID = t.resolve()
	}
	// Forward only: called may become running, nothing ever leaves a
	// terminal status, and running never demotes to called.
	if target == StatusRunning && execution.Status == StatusCalled {
		execution.Status = StatusRunning
	}

	t.mu.Unlock()
	t.Notify()
}

// UpdatePartial stores the latest partial result, overwriting any
// previous one. Unknown call ids and terminal executions are no-ops.
func (t *Tracker) UpdatePartial(callID, partial string) {
	t.mu.Lock()
	execution, exists := t.executions[callID]
	if !exists || execution.Status.terminal() {
		t.mu.Unlock()
		return
	}
	execution.Partial = partial
	t.mu.Unlock()
	t.Notify()
}

// Finish moves an execution to its terminal status and records the
// final result and end time. Unknown call ids and already-terminal
// executions are no-ops.
func (t *Tracker) Finish(callID, result string, isError bool) {
	t.mu.Lock()
	execution, exists := t.executions[callID]
	if !exists || execution.Status.terminal() {
		t.mu.Unlock()
		return
	}
	if isError {
		execution.Status = StatusError
	} else {
		execution.Status = StatusCompleted
	}
	execution.Result = result
	execution.EndedAt = t.clock.Now()
	t.mu.Unlock()
	t.Notify()
}

// Get returns a copy of the execution for callID.
func (t *Tracker) Get(callID string) (Execution, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	execution, exists := t.executions[callID]
	if !exists {
		return Execution{}, false
	}
	return *execution, true
}

// ForMessage returns copies of all executions bound to messageID, in
// first-registered order.
func (t *Tracker) ForMessage(messageID string) []Execution {
	t.mu.Lock()
	defer t.mu.Unlock()
	var result []Execution
	for _, callID := range t.order {
		execution := t.executions[callID]
		if execution.MessageID == messageID {
			result = append(result, *execution)
		}
	}
	return result
}

// HasExecutions reports whether any execution is bound to messageID.
func (t *Tracker) HasExecutions(messageID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, execution := range t.executions {
		if execution.MessageID == messageID {
			return true
		}
	}
	return false
}

// Reset discards all executions. Called on session switch, since
// executions belong to the active session's messages.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.executions = make(map[string]*Execution)
	t.order = nil
	t.mu.Unlock()
	t.Notify()
}
