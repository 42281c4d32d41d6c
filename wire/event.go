// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/json"
	"fmt"
)

// Frame type constants for the inbound event union. The daemon tags
// every frame with one of these in its "type" field.
const (
	TypeAgentStart           = "agent_start"
	TypeAgentEnd             = "agent_end"
	TypeMessageStart         = "message_start"
	TypeMessageUpdate        = "message_update"
	TypeMessageEnd           = "message_end"
	TypeModelChanged         = "model_changed"
	TypeThinkingLevelChanged = "thinking_level_changed"
	TypeSessionStart         = "session_start"
	TypeSessionNameChanged   = "session_name_changed"
	TypeStateUpdate          = "state_update"
	TypeCompactStart         = "compact_start"
	TypeCompactEnd           = "compact_end"
	TypeResponse             = "response"
	TypeAuthEvent            = "auth_event"
)

// Sub-type constants for the message_update union.
const (
	UpdateTextDelta     = "text_delta"
	UpdateThinkingDelta = "thinking_delta"
	UpdateThinkingStart = "thinking_start"
	UpdateThinkingEnd   = "thinking_end"
)

// Auth event kind constants for the auth_event union.
const (
	AuthKindURL      = "url"
	AuthKindPrompt   = "prompt"
	AuthKindProgress = "progress"
	AuthKindComplete = "complete"
)

// Roles carried by message_start and message_end frames.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Event is one decoded inbound frame. The union is closed: every
// variant lives in this package.
type Event interface {
	isEvent()
}

// AuthEvent is the subset of Event carried on auth_event frames.
// Auth events correlate to a login flow by flow id rather than to a
// session.
type AuthEvent interface {
	Event
	// FlowID returns the login flow this event belongs to.
	FlowID() string
}

// AgentStart signals that the agent began working in a session.
type AgentStart struct {
	SessionID string `json:"sessionId"`
}

// AgentEnd signals that the agent finished working in a session.
type AgentEnd struct {
	SessionID string `json:"sessionId"`
}

// MessageStart opens a new message. For assistant messages the client
// begins delta accumulation; user message_start frames carry no
// content and are not recorded (the user message arrives complete on
// message_end).
type MessageStart struct {
	SessionID string `json:"sessionId"`
	MessageID string `json:"messageId"`
	Role      string `json:"role"`
}

// MessageUpdate carries one incremental piece of the currently
// streaming assistant message. The concrete piece is in Update.
type MessageUpdate struct {
	SessionID string `json:"sessionId"`
	Update    MessageDelta `json:"-"`
}

// MessageDelta is the nested union under a message_update frame.
type MessageDelta interface {
	isMessageDelta()
}

// TextDelta appends a fragment to the streaming message's content.
type TextDelta struct {
	ContentIndex int             `json:"contentIndex"`
	Delta        string          `json:"delta"`
	Partial      json.RawMessage `json:"partial,omitempty"`
}

// ThinkingDelta appends a fragment to the streaming message's
// reasoning content.
type ThinkingDelta struct {
	ContentIndex int             `json:"contentIndex"`
	Delta        string          `json:"delta"`
	Partial      json.RawMessage `json:"partial,omitempty"`
}

// ThinkingStart marks the beginning of a reasoning block.
type ThinkingStart struct {
	ContentIndex int             `json:"contentIndex"`
	Partial      json.RawMessage `json:"partial,omitempty"`
}

// ThinkingEnd marks the end of a reasoning block.
type ThinkingEnd struct {
	ContentIndex int             `json:"contentIndex"`
	Partial      json.RawMessage `json:"partial,omitempty"`
}

// MessageEnd closes a message. For assistant messages, content was
// already assembled from deltas; Text is the daemon's final copy and
// serves as a fallback when no deltas were streamed. For user
// messages, Text is the full message.
type MessageEnd struct {
	SessionID string `json:"sessionId"`
	MessageID string `json:"messageId"`
	Role      string `json:"role"`
	Text      string `json:"text"`
}

// ModelChanged reports the session's model descriptor.
type ModelChanged struct {
	SessionID string `json:"sessionId"`
	ModelID   string `json:"modelId"`
	Provider  string `json:"provider,omitempty"`
}

// ThinkingLevelChanged reports the session's reasoning verbosity.
type ThinkingLevelChanged struct {
	SessionID string `json:"sessionId"`
	Level     string `json:"level"`
}

// SessionStart announces a session (new or pre-existing at connect).
type SessionStart struct {
	SessionID string `json:"sessionId"`
	Title     string `json:"title,omitempty"`
	// CreatedAt is milliseconds since the Unix epoch.
	CreatedAt int64 `json:"createdAt,omitempty"`
}

// SessionNameChanged reports a session title change.
type SessionNameChanged struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
}

// StateUpdate carries a snapshot of a session's summary state. The
// roster picks out the fields it tracks for any session; the full
// snapshot replaces the active session's summary when the ids match.
type StateUpdate struct {
	SessionID string       `json:"sessionId"`
	State     SessionState `json:"state"`
}

// SessionState is the session summary payload inside a state_update.
type SessionState struct {
	SessionID     string          `json:"sessionId"`
	ModelID       string          `json:"modelId,omitempty"`
	Provider      string          `json:"provider,omitempty"`
	ThinkingLevel string          `json:"thinkingLevel,omitempty"`
	IsStreaming   bool            `json:"isStreaming"`
	IsCompacting  bool            `json:"isCompacting"`
	MessageCount  int             `json:"messageCount"`
	Modes         map[string]bool `json:"modes,omitempty"`
}

// CompactStart signals that context compaction began in a session.
type CompactStart struct {
	SessionID string `json:"sessionId"`
}

// CompactEnd signals that context compaction finished in a session.
type CompactEnd struct {
	SessionID string `json:"sessionId"`
}

// Response answers a command frame. Responses are consumed by the
// request/response correlator, never by the session event router.
type Response struct {
	Command   string          `json:"command"`
	RequestID string          `json:"requestId"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// AuthURL directs the user to an authorization URL.
type AuthURL struct {
	LoginFlowID  string `json:"loginFlowId"`
	URL          string `json:"url"`
	Instructions string `json:"instructions,omitempty"`
	Progress     string `json:"progress,omitempty"`
}

// AuthPrompt asks the user for input (a code, a key).
type AuthPrompt struct {
	LoginFlowID string `json:"loginFlowId"`
	Message     string `json:"message"`
	Placeholder string `json:"placeholder,omitempty"`
}

// AuthProgress reports background progress during a login flow.
type AuthProgress struct {
	LoginFlowID string `json:"loginFlowId"`
	Message     string `json:"message"`
}

// AuthComplete ends a login flow, successfully or not.
type AuthComplete struct {
	LoginFlowID string `json:"loginFlowId"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

func (AgentStart) isEvent()           {}
func (AgentEnd) isEvent()             {}
func (MessageStart) isEvent()         {}
func (MessageUpdate) isEvent()        {}
func (MessageEnd) isEvent()           {}
func (ModelChanged) isEvent()         {}
func (ThinkingLevelChanged) isEvent() {}
func (SessionStart) isEvent()         {}
func (SessionNameChanged) isEvent()   {}
func (StateUpdate) isEvent()          {}
func (CompactStart) isEvent()         {}
func (CompactEnd) isEvent()           {}
func (Response) isEvent()             {}
func (AuthURL) isEvent()              {}
func (AuthPrompt) isEvent()           {}
func (AuthProgress) isEvent()         {}
func (AuthComplete) isEvent()         {}

func (TextDelta) isMessageDelta()     {}
func (ThinkingDelta) isMessageDelta() {}
func (ThinkingStart) isMessageDelta() {}
func (ThinkingEnd) isMessageDelta()   {}

// FlowID implements AuthEvent.
func (e AuthURL) FlowID() string { return e.LoginFlowID }

// FlowID implements AuthEvent.
func (e AuthPrompt) FlowID() string { return e.LoginFlowID }

// FlowID implements AuthEvent.
func (e AuthProgress) FlowID() string { return e.LoginFlowID }

// FlowID implements AuthEvent.
func (e AuthComplete) FlowID() string { return e.LoginFlowID }

// UnknownTypeError reports a frame whose "type" (or nested
// discriminator) is not part of the union. The transport logs these
// and drops the frame.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("wire: unknown frame type %q", e.Type)
}

// Decode parses one inbound JSON frame into its Event variant.
func Decode(data []byte) (Event, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("wire: malformed frame: %w", err)
	}

	switch probe.Type {
	case TypeAgentStart:
		return decodeInto[AgentStart](data)
	case TypeAgentEnd:
		return decodeInto[AgentEnd](data)
	case TypeMessageStart:
		return decodeInto[MessageStart](data)
	case TypeMessageUpdate:
		return decodeMessageUpdate(data)
	case TypeMessageEnd:
		return decodeInto[MessageEnd](data)
	case TypeModelChanged:
		return decodeInto[ModelChanged](data)
	case TypeThinkingLevelChanged:
		return decodeInto[ThinkingLevelChanged](data)
	case TypeSessionStart:
		return decodeInto[SessionStart](data)
	case TypeSessionNameChanged:
		return decodeInto[SessionNameChanged](data)
	case TypeStateUpdate:
		return decodeInto[StateUpdate](data)
	case TypeCompactStart:
		return decodeInto[CompactStart](data)
	case TypeCompactEnd:
		return decodeInto[CompactEnd](data)
	case TypeResponse:
		return decodeInto[Response](data)
	case TypeAuthEvent:
		return decodeAuthEvent(data)
	default:
		return nil, &UnknownTypeError{Type: probe.Type}
	}
}

// decodeInto unmarshals a frame into a concrete variant.
func decodeInto[T Event](data []byte) (Event, error) {
	var event T
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("wire: decode %T: %w", event, err)
	}
	return event, nil
}

// decodeMessageUpdate handles the nested update union.
func decodeMessageUpdate(data []byte) (Event, error) {
	var frame struct {
		SessionID string          `json:"sessionId"`
		Update    json.RawMessage `json:"update"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("wire: decode message_update: %w", err)
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(frame.Update, &probe); err != nil {
		return nil, fmt.Errorf("wire: decode message_update payload: %w", err)
	}

	var delta MessageDelta
	var err error
	switch probe.Type {
	case UpdateTextDelta:
		var d TextDelta
		err = json.Unmarshal(frame.Update, &d)
		delta = d
	case UpdateThinkingDelta:
		var d ThinkingDelta
		err = json.Unmarshal(frame.Update, &d)
		delta = d
	case UpdateThinkingStart:
		var d ThinkingStart
		err = json.Unmarshal(frame.Update, &d)
		delta = d
	case UpdateThinkingEnd:
		var d ThinkingEnd
		err = json.Unmarshal(frame.Update, &d)
		delta = d
	default:
		return nil, &UnknownTypeError{Type: "message_update/" + probe.Type}
	}
	if err != nil {
		return nil, fmt.Errorf("wire: decode %s: %w", probe.Type, err)
	}

	return MessageUpdate{SessionID: frame.SessionID, Update: delta}, nil
}

// decodeAuthEvent handles the auth union discriminated by "event".
func decodeAuthEvent(data []byte) (Event, error) {
	var probe struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("wire: decode auth_event: %w", err)
	}

	switch probe.Event {
	case AuthKindURL:
		return decodeInto[AuthURL](data)
	case AuthKindPrompt:
		return decodeInto[AuthPrompt](data)
	case AuthKindProgress:
		return decodeInto[AuthProgress](data)
	case AuthKindComplete:
		return decodeInto[AuthComplete](data)
	default:
		return nil, &UnknownTypeError{Type: "auth_event/" + probe.Event}
	}
}
