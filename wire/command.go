// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

package wire

// Command name constants for outbound frames. The daemon echoes the
// name back on the matching response frame.
const (
	CommandUserMessage      = "user_message"
	CommandSwitchSession    = "switch_session"
	CommandNewSession       = "new_session"
	CommandKillSession      = "kill_session"
	CommandSetModel         = "set_model"
	CommandSetThinkingLevel = "set_thinking_level"
	CommandCompact          = "compact"
	CommandLogin            = "login"
	CommandLoginInput       = "login_input"
	CommandLoginCancel      = "login_cancel"
)

// UserMessageCommand submits a user prompt to a session.
type UserMessageCommand struct {
	Command   string `json:"command"`
	RequestID string `json:"requestId"`
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

// SwitchSessionCommand asks the daemon to direct detailed event
// traffic at a different session.
type SwitchSessionCommand struct {
	Command   string `json:"command"`
	RequestID string `json:"requestId"`
	SessionID string `json:"sessionId"`
}

// NewSessionCommand creates a session on the daemon.
type NewSessionCommand struct {
	Command   string `json:"command"`
	RequestID string `json:"requestId"`
	Title     string `json:"title,omitempty"`
}

// KillSessionCommand terminates a session on the daemon.
type KillSessionCommand struct {
	Command   string `json:"command"`
	RequestID string `json:"requestId"`
	SessionID string `json:"sessionId"`
}

// SetModelCommand changes a session's model.
type SetModelCommand struct {
	Command   string `json:"command"`
	RequestID string `json:"requestId"`
	SessionID string `json:"sessionId"`
	ModelID   string `json:"modelId"`
	Provider  string `json:"provider,omitempty"`
}

// SetThinkingLevelCommand changes a session's reasoning verbosity.
type SetThinkingLevelCommand struct {
	Command   string `json:"command"`
	RequestID string `json:"requestId"`
	SessionID string `json:"sessionId"`
	Level     string `json:"level"`
}

// CompactCommand asks the daemon to compact a session's context.
type CompactCommand struct {
	Command   string `json:"command"`
	RequestID string `json:"requestId"`
	SessionID string `json:"sessionId"`
}

// LoginCommand initiates a provider login flow. The client generates
// the flow id and filters subsequent auth events by it.
type LoginCommand struct {
	Command     string `json:"command"`
	RequestID   string `json:"requestId"`
	Provider    string `json:"provider"`
	LoginFlowID string `json:"loginFlowId"`
}

// LoginInputCommand answers an auth prompt (a code, a key).
type LoginInputCommand struct {
	Command     string `json:"command"`
	RequestID   string `json:"requestId"`
	LoginFlowID string `json:"loginFlowId"`
	Input       string `json:"input"`
}

// LoginCancelCommand abandons an in-flight login flow.
type LoginCancelCommand struct {
	Command     string `json:"command"`
	RequestID   string `json:"requestId"`
	LoginFlowID string `json:"loginFlowId"`
}

// Correlatable is implemented by every outbound command struct so a
// request/response correlator can stamp the request id before sending.
type Correlatable interface {
	SetRequestID(requestID string)
}

func (c *UserMessageCommand) SetRequestID(requestID string)      { c.RequestID = requestID }
func (c *SwitchSessionCommand) SetRequestID(requestID string)    { c.RequestID = requestID }
func (c *NewSessionCommand) SetRequestID(requestID string)       { c.RequestID = requestID }
func (c *KillSessionCommand) SetRequestID(requestID string)      { c.RequestID = requestID }
func (c *SetModelCommand) SetRequestID(requestID string)         { c.RequestID = requestID }
func (c *SetThinkingLevelCommand) SetRequestID(requestID string) { c.RequestID = requestID }
func (c *CompactCommand) SetRequestID(requestID string)          { c.RequestID = requestID }
func (c *LoginCommand) SetRequestID(requestID string)            { c.RequestID = requestID }
func (c *LoginInputCommand) SetRequestID(requestID string)       { c.RequestID = requestID }
func (c *LoginCancelCommand) SetRequestID(requestID string)      { c.RequestID = requestID }
