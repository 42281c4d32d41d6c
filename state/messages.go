// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"sync"
	"time"
)

// Message is one conversation entry for the active session. Content
// and Thinking grow by delta appends while IsStreaming is set and are
// immutable afterwards.
type Message struct {
	ID          string
	Role        string
	Content     string
	Thinking    string
	IsStreaming bool
	IsThinking  bool
	Timestamp   time.Time
}

// MessageList holds the active session's messages plus the pointer to
// the one message currently streaming, if any. At most one message is
// current at a time.
type MessageList struct {
	Notifier

	mu      sync.Mutex
	entries []Message
	// current indexes the streaming message in entries, or -1.
	current int
}

// NewMessageList returns an empty message list.
func NewMessageList() *MessageList {
	return &MessageList{current: -1}
}

// StartAssistant begins a new streaming assistant message and points
// the current-message pointer at it. If a message was still streaming,
// it is finalized first so the single-current invariant holds.
func (m *MessageList) StartAssistant(messageID string, at time.Time) {
	m.mu.Lock()
	if m.current >= 0 {
		m.entries[m.current].IsStreaming = false
		m.entries[m.current].IsThinking = false
	}
	m.entries = append(m.entries, Message{
		ID:          messageID,
		Role:        "assistant",
		IsStreaming: true,
		Timestamp:   at,
	})
	m.current = len(m.entries) - 1
	m.mu.Unlock()
	m.Notify()
}

// AppendText appends a content delta to the current message. No-op
// when nothing is streaming.
func (m *MessageList) AppendText(delta string) {
	m.appendToCurrent(func(message *Message) {
		message.Content += delta
	})
}

// AppendThinking appends a reasoning delta to the current message.
// No-op when nothing is streaming.
func (m *MessageList) AppendThinking(delta string) {
	m.appendToCurrent(func(message *Message) {
		message.Thinking += delta
	})
}

// SetThinking flips the current message's thinking-in-progress flag.
// No-op when nothing is streaming.
func (m *MessageList) SetThinking(thinking bool) {
	m.appendToCurrent(func(message *Message) {
		message.IsThinking = thinking
	})
}

func (m *MessageList) appendToCurrent(mutate func(*Message)) {
	m.mu.Lock()
	if m.current < 0 {
		m.mu.Unlock()
		return
	}
	mutate(&m.entries[m.current])
	m.mu.Unlock()
	m.Notify()
}

// EndCurrent finalizes the streaming message and clears the
// current-message pointer. When no deltas were streamed, fallback
// becomes the content. No-op when nothing is streaming.
func (m *MessageList) EndCurrent(fallback string) {
	m.mu.Lock()
	if m.current < 0 {
		m.mu.Unlock()
		return
	}
	message := &m.entries[m.current]
	message.IsStreaming = false
	message.IsThinking = false
	if message.Content == "" {
		message.Content = fallback
	}
	m.current = -1
	m.mu.Unlock()
	m.Notify()
}

// AppendUser records a complete, non-streaming user message. User
// messages are never assembled from deltas.
func (m *MessageList) AppendUser(messageID, text string, at time.Time) {
	m.mu.Lock()
	m.entries = append(m.entries, Message{
		ID:        messageID,
		Role:      "user",
		Content:   text,
		Timestamp: at,
	})
	m.mu.Unlock()
	m.Notify()
}

// CurrentID returns the id of the streaming message, if any.
func (m *MessageList) CurrentID() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current < 0 {
		return "", false
	}
	return m.entries[m.current].ID, true
}

// OwnerCandidate resolves the message a new tool execution should
// bind to: the streaming assistant message if one exists, else the
// most recent assistant message, else "". Never a user message.
func (m *MessageList) OwnerCandidate() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current >= 0 {
		return m.entries[m.current].ID
	}
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].Role == "assistant" {
			return m.entries[i].ID
		}
	}
	return ""
}

// List returns a copy of all messages in arrival order.
func (m *MessageList) List() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]Message, len(m.entries))
	copy(entries, m.entries)
	return entries
}

// Len returns the number of messages.
func (m *MessageList) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Reset discards all messages and the current pointer. Called on
// session switch.
func (m *MessageList) Reset() {
	m.mu.Lock()
	m.entries = nil
	m.current = -1
	m.mu.Unlock()
	m.Notify()
}
