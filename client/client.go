// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/halyard-dev/halyard/auth"
	"github.com/halyard-dev/halyard/conn"
	"github.com/halyard-dev/halyard/lib/clock"
	"github.com/halyard-dev/halyard/router"
	"github.com/halyard-dev/halyard/state"
	"github.com/halyard-dev/halyard/tools"
	"github.com/halyard-dev/halyard/wire"
)

// Config configures a Client. URL is required.
type Config struct {
	// URL is the daemon's WebSocket endpoint.
	URL string

	// Token is the connect credential, forwarded to the connection
	// manager.
	Token string

	// BaseDelay and MaxDelay tune the reconnect backoff. Zero values
	// take the conn package defaults.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// OnFrame, when set, receives every inbound frame's raw bytes.
	// Used for stream capture.
	OnFrame func([]byte)

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Clock defaults to Real. Tests inject a fake.
	Clock clock.Clock
}

// Client is the consumer-facing entry point: it owns the connection,
// routes the inbound event stream into subscribable stores, and
// exposes the outbound command surface.
//
// All store accessors return live containers; consumers subscribe to
// them for change notification and read snapshots on demand.
type Client struct {
	logger *slog.Logger
	clock  clock.Clock

	session  *state.SessionStore
	roster   *state.Roster
	messages *state.MessageList
	tracker  *tools.Tracker
	flows    *auth.FlowStore
	connInfo *ConnStatus

	router  *router.Router
	manager *conn.Manager

	mu              sync.Mutex
	activeSessionID string
	pending         map[string]chan wire.Response
}

// New creates a Client. It does not connect; call Connect.
func New(config Config) (*Client, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}

	client := &Client{
		logger:   logger,
		clock:    clk,
		session:  state.NewSessionStore(),
		roster:   state.NewRoster(),
		messages: state.NewMessageList(),
		flows:    auth.NewFlowStore(),
		connInfo: &ConnStatus{state: conn.StateDisconnected},
		pending:  make(map[string]chan wire.Response),
	}
	client.tracker = tools.NewTracker(client.messages.OwnerCandidate, clk)
	client.router = router.New(router.Config{
		Session:  client.session,
		Roster:   client.roster,
		Messages: client.messages,
		Flows:    client.flows,
		Logger:   logger,
		Clock:    clk,
	})

	manager, err := conn.New(conn.Config{
		URL:       config.URL,
		Token:     config.Token,
		BaseDelay: config.BaseDelay,
		MaxDelay:  config.MaxDelay,
		OnEvent:   client.handleEvent,
		OnState:   client.connInfo.set,
		OnFrame:   config.OnFrame,
		Logger:    logger,
		Clock:     clk,
	})
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	client.manager = manager
	return client, nil
}

// Connect opens the connection and enables auto-reconnect.
func (c *Client) Connect() { c.manager.Connect() }

// Disconnect closes the connection and disables auto-reconnect until
// the next Connect.
func (c *Client) Disconnect() { c.manager.Disconnect() }

// Close releases the client's connection.
func (c *Client) Close() error { return c.manager.Close() }

// WakeForeground forwards a foreground-visibility wake trigger to the
// connection manager.
func (c *Client) WakeForeground() { c.manager.WakeForeground() }

// WakeOnline forwards a network-online wake trigger to the connection
// manager.
func (c *Client) WakeOnline() { c.manager.WakeOnline() }

// Session returns the active session's summary store.
func (c *Client) Session() *state.SessionStore { return c.session }

// Roster returns the known-sessions roster.
func (c *Client) Roster() *state.Roster { return c.roster }

// Messages returns the active session's message list.
func (c *Client) Messages() *state.MessageList { return c.messages }

// Tools returns the tool execution tracker.
func (c *Client) Tools() *tools.Tracker { return c.tracker }

// Auth returns the login flow store.
func (c *Client) Auth() *auth.FlowStore { return c.flows }

// Connection returns the connection status store.
func (c *Client) Connection() *ConnStatus { return c.connInfo }

// ActiveSessionID returns the id of the currently displayed session,
// or "" when none is selected.
func (c *Client) ActiveSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeSessionID
}

// handleEvent is the connection manager's OnEvent callback. Response
// frames resolve pending requests; everything else goes through the
// router against the current active session.
func (c *Client) handleEvent(event wire.Event) {
	if response, ok := event.(wire.Response); ok {
		c.resolvePending(response)
		return
	}
	c.router.Route(event, c.ActiveSessionID())
}

// SwitchSession repoints the active session and resets all
// per-session detailed state. The daemon is asked to direct detailed
// event traffic at the new session.
func (c *Client) SwitchSession(sessionID string) error {
	c.mu.Lock()
	c.activeSessionID = sessionID
	c.mu.Unlock()

	c.session.Reset()
	c.session.SetID(sessionID)
	c.messages.Reset()
	c.tracker.Reset()

	return c.send(&wire.SwitchSessionCommand{
		Command:   wire.CommandSwitchSession,
		SessionID: sessionID,
	})
}

// RemoveSession drops a session from the roster. Removing the active
// session clears the active pointer and resets per-session state.
func (c *Client) RemoveSession(sessionID string) {
	c.roster.Remove(sessionID)

	c.mu.Lock()
	wasActive := c.activeSessionID == sessionID
	if wasActive {
		c.activeSessionID = ""
	}
	c.mu.Unlock()

	if wasActive {
		c.session.Reset()
		c.messages.Reset()
		c.tracker.Reset()
	}
}

// SendPrompt submits a user prompt to the active session.
func (c *Client) SendPrompt(text string) error {
	return c.send(&wire.UserMessageCommand{
		Command:   wire.CommandUserMessage,
		SessionID: c.ActiveSessionID(),
		Text:      text,
	})
}

// NewSession asks the daemon to create a session.
func (c *Client) NewSession(title string) error {
	return c.send(&wire.NewSessionCommand{
		Command: wire.CommandNewSession,
		Title:   title,
	})
}

// KillSession asks the daemon to terminate a session.
func (c *Client) KillSession(sessionID string) error {
	return c.send(&wire.KillSessionCommand{
		Command:   wire.CommandKillSession,
		SessionID: sessionID,
	})
}

// SetModel changes the active session's model.
func (c *Client) SetModel(modelID, provider string) error {
	return c.send(&wire.SetModelCommand{
		Command:   wire.CommandSetModel,
		SessionID: c.ActiveSessionID(),
		ModelID:   modelID,
		Provider:  provider,
	})
}

// SetThinkingLevel changes the active session's reasoning verbosity.
func (c *Client) SetThinkingLevel(level string) error {
	return c.send(&wire.SetThinkingLevelCommand{
		Command:   wire.CommandSetThinkingLevel,
		SessionID: c.ActiveSessionID(),
		Level:     level,
	})
}

// Compact asks the daemon to compact the active session's context.
func (c *Client) Compact() error {
	return c.send(&wire.CompactCommand{
		Command:   wire.CommandCompact,
		SessionID: c.ActiveSessionID(),
	})
}

// Login starts a provider login flow. The client generates the flow
// id; subsequent auth events carrying any other id are ignored.
func (c *Client) Login(provider string) (string, error) {
	flowID := uuid.NewString()
	c.flows.Start(flowID, provider)
	err := c.send(&wire.LoginCommand{
		Command:     wire.CommandLogin,
		Provider:    provider,
		LoginFlowID: flowID,
	})
	if err != nil {
		c.flows.Clear()
		return "", err
	}
	return flowID, nil
}

// SubmitLoginInput answers the current flow's input prompt.
func (c *Client) SubmitLoginInput(flowID, input string) error {
	return c.send(&wire.LoginInputCommand{
		Command:     wire.CommandLoginInput,
		LoginFlowID: flowID,
		Input:       input,
	})
}

// CancelLogin abandons the current login flow.
func (c *Client) CancelLogin(flowID string) error {
	err := c.send(&wire.LoginCancelCommand{
		Command:     wire.CommandLoginCancel,
		LoginFlowID: flowID,
	})
	c.flows.Clear()
	return err
}

// Call sends a command and waits for the daemon's response frame with
// the matching request id. The command must be one of the wire
// command structs; its RequestID field is filled by Call.
func (c *Client) Call(ctx context.Context, command wire.Correlatable) (wire.Response, error) {
	requestID := uuid.NewString()
	command.SetRequestID(requestID)

	responseCh := make(chan wire.Response, 1)
	c.mu.Lock()
	c.pending[requestID] = responseCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, requestID)
		c.mu.Unlock()
	}()

	if err := c.manager.Send(command); err != nil {
		return wire.Response{}, fmt.Errorf("client: call: %w", err)
	}

	select {
	case response := <-responseCh:
		if !response.Success {
			return response, fmt.Errorf("client: %s failed: %s", response.Command, response.Error)
		}
		return response, nil
	case <-ctx.Done():
		return wire.Response{}, fmt.Errorf("client: call: %w", ctx.Err())
	}
}

// resolvePending routes a response frame to the Call that issued the
// request. Responses nobody is waiting on are logged and dropped.
func (c *Client) resolvePending(response wire.Response) {
	c.mu.Lock()
	responseCh, ok := c.pending[response.RequestID]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("response with no pending request",
			"command", response.Command,
			"requestId", response.RequestID)
		return
	}
	responseCh <- response
}

// send writes a fire-and-forget command frame.
func (c *Client) send(command any) error {
	if err := c.manager.Send(command); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	return nil
}

// ConnStatus is the subscribable connection-state container.
type ConnStatus struct {
	state.Notifier

	mu     sync.Mutex
	state  conn.State
	detail string
}

// Get returns the current connection state and the error detail from
// the most recent transition, if any.
func (s *ConnStatus) Get() (conn.State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.detail
}

func (s *ConnStatus) set(next conn.State, detail string) {
	s.mu.Lock()
	s.state = next
	s.detail = detail
	s.mu.Unlock()
	s.Notify()
}
