// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package router turns decoded wire events into store mutations.
//
// Route applies one session event against the active-session summary,
// the message list, and the roster. Session scoping is the central
// rule: events that describe the active session's detailed state
// (streaming flags, deltas, model, compaction) apply only when the
// event's session id matches the active session id, and are silently
// ignored otherwise — in a multi-session daemon, most events are for
// sessions the user is not looking at, and dropping them here is the
// expected case, not an anomaly. Roster-scoped effects (session
// creation, titles, message counts) apply for any session.
//
// RouteAuth applies auth events to the login flow store exclusively.
// Route forwards auth-typed events there, so a transport can feed
// every decoded frame through a single entry point.
package router

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/halyard-dev/halyard/auth"
	"github.com/halyard-dev/halyard/lib/clock"
	"github.com/halyard-dev/halyard/state"
	"github.com/halyard-dev/halyard/wire"
)

// maxTitleLength is the hard cap applied to roster titles derived
// from user message text. No ellipsis.
const maxTitleLength = 100

// Config carries the stores a Router mutates. All fields except
// Logger and Clock are required.
type Config struct {
	Session  *state.SessionStore
	Roster   *state.Roster
	Messages *state.MessageList
	Flows    *auth.FlowStore

	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Clock stamps user and assistant messages. Defaults to Real.
	Clock clock.Clock
}

// Router applies decoded events to the state stores.
type Router struct {
	session  *state.SessionStore
	roster   *state.Roster
	messages *state.MessageList
	flows    *auth.FlowStore
	logger   *slog.Logger
	clock    clock.Clock
}

// New returns a Router over the given stores.
func New(config Config) *Router {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Router{
		session:  config.Session,
		roster:   config.Roster,
		messages: config.Messages,
		flows:    config.Flows,
		logger:   logger,
		clock:    clk,
	}
}

// Route applies one decoded event. activeSessionID scopes the
// detailed-state effects; pass "" when no session is active.
func (r *Router) Route(event wire.Event, activeSessionID string) {
	switch event := event.(type) {
	case wire.AgentStart:
		if event.SessionID == activeSessionID {
			r.session.SetStreaming(true)
		}

	case wire.AgentEnd:
		if event.SessionID == activeSessionID {
			r.session.SetStreaming(false)
		}

	case wire.MessageStart:
		if event.SessionID != activeSessionID {
			return
		}
		// User messages arrive complete on message_end; only
		// assistant messages stream.
		if event.Role == wire.RoleAssistant {
			r.messages.StartAssistant(event.MessageID, r.clock.Now())
		}

	case wire.MessageUpdate:
		if event.SessionID != activeSessionID {
			return
		}
		r.routeDelta(event.Update)

	case wire.MessageEnd:
		r.routeMessageEnd(event, activeSessionID)

	case wire.ModelChanged:
		if event.SessionID == activeSessionID {
			r.session.SetModel(event.ModelID, event.Provider)
		}

	case wire.ThinkingLevelChanged:
		if event.SessionID == activeSessionID {
			r.session.SetThinkingLevel(event.Level)
		}

	case wire.SessionStart:
		createdAt := r.clock.Now()
		if event.CreatedAt != 0 {
			createdAt = time.UnixMilli(event.CreatedAt)
		}
		r.roster.Add(state.Summary{
			SessionID: event.SessionID,
			Title:     event.Title,
			CreatedAt: createdAt,
		})
		if event.SessionID == activeSessionID {
			r.session.SetID(event.SessionID)
		}

	case wire.SessionNameChanged:
		r.roster.SetTitle(event.SessionID, event.Name)

	case wire.StateUpdate:
		// Roster fields update for any session; the full summary
		// replaces the active session's only.
		r.roster.SetMessageCount(event.SessionID, event.State.MessageCount)
		if event.SessionID == activeSessionID {
			summary := event.State
			if summary.SessionID == "" {
				summary.SessionID = event.SessionID
			}
			r.session.Replace(summary)
		}

	case wire.CompactStart:
		if event.SessionID == activeSessionID {
			r.session.SetCompacting(true)
		}

	case wire.CompactEnd:
		if event.SessionID == activeSessionID {
			r.session.SetCompacting(false)
		}

	case wire.Response:
		// RPC responses belong to the request correlator, not the
		// event stream.

	case wire.AuthEvent:
		r.RouteAuth(event)

	default:
		r.logger.Warn("unroutable event", "event_type", fmt.Sprintf("%T", event))
	}
}

// RouteAuth applies an auth event to the login flow store.
func (r *Router) RouteAuth(event wire.AuthEvent) {
	r.flows.Apply(event)
}

// routeDelta applies one message_update piece to the current message.
// All pieces are no-ops when nothing is streaming.
func (r *Router) routeDelta(delta wire.MessageDelta) {
	switch delta := delta.(type) {
	case wire.TextDelta:
		r.messages.AppendText(delta.Delta)
	case wire.ThinkingStart:
		r.messages.SetThinking(true)
	case wire.ThinkingDelta:
		r.messages.AppendThinking(delta.Delta)
	case wire.ThinkingEnd:
		r.messages.SetThinking(false)
	}
}

// routeMessageEnd closes an assistant stream or records a complete
// user message. The user-message title assignment is roster-scoped
// and happens for any session.
func (r *Router) routeMessageEnd(event wire.MessageEnd, activeSessionID string) {
	switch event.Role {
	case wire.RoleAssistant:
		if event.SessionID == activeSessionID {
			r.messages.EndCurrent(event.Text)
		}
	case wire.RoleUser:
		if event.SessionID == activeSessionID {
			r.messages.AppendUser(event.MessageID, event.Text, r.clock.Now())
		}
		r.roster.SetTitle(event.SessionID, titleFromText(event.Text))
	}
}

// titleFromText derives a roster title from user message text: the
// trimmed text, hard-capped at 100 characters with no ellipsis.
func titleFromText(text string) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) <= maxTitleLength {
		return trimmed
	}
	return string(runes[:maxTitleLength])
}
