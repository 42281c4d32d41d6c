// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

package conn

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/halyard-dev/halyard/lib/clock"
	"github.com/halyard-dev/halyard/wire"
)

// State is the connection lifecycle position.
type State string

const (
	// StateDisconnected means no connection exists and none is being
	// attempted.
	StateDisconnected State = "disconnected"
	// StateConnecting means a dial is in flight.
	StateConnecting State = "connecting"
	// StateConnected means the socket is open and frames flow.
	StateConnected State = "connected"
	// StateError means the last attempt or the open connection failed.
	// A reconnect may be scheduled.
	StateError State = "error"
)

// ErrNotConnected is returned by Send when the manager is not in the
// connected state. Sending while disconnected is a caller bug, not a
// transport condition, so it surfaces as an error instead of being
// queued or dropped.
var ErrNotConnected = errors.New("conn: not connected")

// Default backoff bounds. delay = min(BaseDelay << attempt, MaxDelay).
const (
	DefaultBaseDelay = 1 * time.Second
	DefaultMaxDelay  = 30 * time.Second
)

// Config configures a Manager. URL is required; everything else has a
// default.
type Config struct {
	// URL is the daemon's WebSocket endpoint (ws:// or wss://).
	URL string

	// Token is the connect credential. The WebSocket handshake cannot
	// carry custom headers from every host environment, so the token
	// travels as a "token" query parameter on the dial URL.
	Token string

	// BaseDelay and MaxDelay bound the reconnect backoff. Defaults:
	// DefaultBaseDelay, DefaultMaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// OnEvent receives each decoded inbound frame, invoked from the
	// read loop in arrival order. One event is handled to completion
	// before the next frame is read.
	OnEvent func(wire.Event)

	// OnState receives connection state transitions with an optional
	// error detail. Duplicate transitions to the current state are
	// suppressed. OnState must not call back into the Manager.
	OnState func(State, string)

	// OnFrame, when set, receives every inbound frame's raw bytes
	// before decoding, including frames that fail to decode. Used for
	// stream capture.
	OnFrame func([]byte)

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Clock drives the reconnect timers. Defaults to Real.
	Clock clock.Clock

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// socket is the slice of *websocket.Conn the Manager uses. Tests
// substitute fakes through the dial seam.
type socket interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteJSON(v any) error
	Close() error
}

// dialFunc opens a socket to the given URL.
type dialFunc func(dialURL string) (socket, error)

// Manager owns one WebSocket connection to the agent daemon and its
// reconnection policy.
//
// Unexpected closes schedule a reconnect with exponential backoff;
// a successful open resets the attempt counter. WakeForeground and
// WakeOnline bypass a scheduled delay with an immediate attempt.
// Disconnect tears the connection down and suppresses all reconnection
// until the next explicit Connect.
type Manager struct {
	url       string
	token     string
	baseDelay time.Duration
	maxDelay  time.Duration
	onEvent   func(wire.Event)
	onState   func(State, string)
	onFrame   func([]byte)
	logger    *slog.Logger
	clock     clock.Clock
	dial      dialFunc

	mu               sync.Mutex
	state            State
	current          socket
	reconnectTimer   *clock.Timer
	attempt          int
	reconnectEnabled bool
	// generation invalidates dial results and read loops that outlive
	// an explicit Disconnect or a newer connection attempt.
	generation int
}

// New creates a Manager. It does not connect; call Connect.
func New(config Config) (*Manager, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("conn: URL is required")
	}
	if _, err := url.Parse(config.URL); err != nil {
		return nil, fmt.Errorf("conn: invalid URL %q: %w", config.URL, err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	baseDelay := config.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	maxDelay := config.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	dialer := config.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	manager := &Manager{
		url:       config.URL,
		token:     config.Token,
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
		onEvent:   config.OnEvent,
		onState:   config.OnState,
		onFrame:   config.OnFrame,
		logger:    logger,
		clock:     clk,
		state:     StateDisconnected,
	}
	manager.dial = func(dialURL string) (socket, error) {
		websocketConn, _, err := dialer.Dial(dialURL, nil)
		if err != nil {
			return nil, err
		}
		return websocketConn, nil
	}
	return manager, nil
}

// Connect opens the connection unless one is already open or being
// opened. It re-enables auto-reconnect after a Disconnect.
func (m *Manager) Connect() {
	m.mu.Lock()
	m.reconnectEnabled = true
	if m.state == StateConnected || m.state == StateConnecting {
		m.mu.Unlock()
		return
	}
	m.cancelTimerLocked()
	m.startDialLocked()
	m.mu.Unlock()
}

// Disconnect closes the connection, cancels any pending reconnect,
// and disables auto-reconnect until the next explicit Connect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.reconnectEnabled = false
	m.generation++
	m.cancelTimerLocked()
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
	m.transitionLocked(StateDisconnected, "")
	m.mu.Unlock()
}

// Close is Disconnect under the name conventionally checked by
// teardown code.
func (m *Manager) Close() error {
	m.Disconnect()
	return nil
}

// Send serializes frame as JSON and writes it to the open connection.
// Returns ErrNotConnected when no connection is open.
func (m *Manager) Send(frame any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected || m.current == nil {
		return ErrNotConnected
	}
	if err := m.current.WriteJSON(frame); err != nil {
		return fmt.Errorf("conn: send: %w", err)
	}
	return nil
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// WakeForeground reports that the hosting environment regained
// foreground visibility. While not connected or connecting, it
// cancels any scheduled reconnect and attempts one immediately with
// the attempt counter reset.
func (m *Manager) WakeForeground() { m.wake("foreground") }

// WakeOnline reports that the network came back online. Same policy
// as WakeForeground.
func (m *Manager) WakeOnline() { m.wake("online") }

func (m *Manager) wake(trigger string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.reconnectEnabled {
		// Explicit Disconnect suppresses every reconnect path until
		// the next explicit Connect, wake triggers included.
		return
	}
	if m.state == StateConnected || m.state == StateConnecting {
		return
	}
	m.logger.Info("wake trigger, reconnecting immediately", "trigger", trigger)
	m.cancelTimerLocked()
	m.attempt = 0
	m.startDialLocked()
}

// startDialLocked transitions to connecting and launches the dial.
// Caller holds m.mu.
func (m *Manager) startDialLocked() {
	m.generation++
	generation := m.generation
	m.transitionLocked(StateConnecting, "")
	go m.dialAndRead(generation)
}

// dialAndRead dials the endpoint and, on success, runs the read loop
// until the connection drops. It is the only goroutine that invokes
// OnEvent, which gives the strict arrival-order processing guarantee.
func (m *Manager) dialAndRead(generation int) {
	dialURL, err := m.dialURL()
	if err != nil {
		m.handleFailure(generation, fmt.Errorf("conn: bad endpoint: %w", err))
		return
	}

	opened, err := m.dial(dialURL)
	if err != nil {
		m.handleFailure(generation, fmt.Errorf("conn: dial: %w", err))
		return
	}

	m.mu.Lock()
	if generation != m.generation || !m.reconnectEnabled {
		// A Disconnect or newer attempt superseded this dial while it
		// was in flight.
		m.mu.Unlock()
		opened.Close()
		return
	}
	m.current = opened
	m.attempt = 0
	m.transitionLocked(StateConnected, "")
	m.mu.Unlock()

	m.readLoop(generation, opened)
}

// readLoop reads frames until the socket errors, decoding and
// delivering each event before reading the next frame.
func (m *Manager) readLoop(generation int, opened socket) {
	for {
		_, data, err := opened.ReadMessage()
		if err != nil {
			m.handleClose(generation, err)
			return
		}

		if m.onFrame != nil {
			m.onFrame(data)
		}

		event, err := wire.Decode(data)
		if err != nil {
			// A malformed or unknown frame is dropped, never
			// escalated to a connection error.
			m.logger.Warn("dropping undecodable frame", "error", err)
			continue
		}
		if m.onEvent != nil {
			m.onEvent(event)
		}
	}
}

// handleFailure records a failed dial and schedules a reconnect.
func (m *Manager) handleFailure(generation int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		return
	}
	m.logger.Warn("connection attempt failed", "error", err)
	m.transitionLocked(StateError, err.Error())
	m.scheduleReconnectLocked()
}

// handleClose records a dropped connection and schedules a reconnect
// unless reconnection is disabled.
func (m *Manager) handleClose(generation int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		// Disconnect already tore this connection down.
		return
	}
	m.current = nil

	if !m.reconnectEnabled {
		m.transitionLocked(StateDisconnected, "")
		return
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		m.logger.Info("connection closed by server")
		m.transitionLocked(StateDisconnected, "")
	} else {
		m.logger.Warn("connection lost", "error", err)
		m.transitionLocked(StateError, err.Error())
	}
	m.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the backoff timer. Caller holds m.mu.
func (m *Manager) scheduleReconnectLocked() {
	if !m.reconnectEnabled || m.reconnectTimer != nil {
		return
	}

	delay := m.backoffDelay(m.attempt)
	m.attempt++
	m.logger.Info("scheduling reconnect", "delay", delay, "attempt", m.attempt)

	m.reconnectTimer = m.clock.AfterFunc(delay, func() {
		m.mu.Lock()
		m.reconnectTimer = nil
		if !m.reconnectEnabled || m.state == StateConnected || m.state == StateConnecting {
			m.mu.Unlock()
			return
		}
		m.startDialLocked()
		m.mu.Unlock()
	})
}

// backoffDelay computes min(baseDelay * 2^attempt, maxDelay) with a
// shift-overflow guard.
func (m *Manager) backoffDelay(attempt int) time.Duration {
	if attempt > 30 {
		return m.maxDelay
	}
	delay := m.baseDelay << uint(attempt)
	if delay > m.maxDelay || delay <= 0 {
		return m.maxDelay
	}
	return delay
}

// cancelTimerLocked stops any pending reconnect timer. Caller holds
// m.mu.
func (m *Manager) cancelTimerLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

// transitionLocked moves the state machine and notifies the consumer.
// A transition to the current state is a no-op so consumers never see
// duplicate notifications. Caller holds m.mu.
func (m *Manager) transitionLocked(next State, detail string) {
	if m.state == next {
		return
	}
	m.state = next
	if m.onState != nil {
		m.onState(next, detail)
	}
}

// dialURL returns the endpoint with the token query parameter merged
// in.
func (m *Manager) dialURL() (string, error) {
	if m.token == "" {
		return m.url, nil
	}
	parsed, err := url.Parse(m.url)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set("token", m.token)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
