// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

package conn

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/halyard-dev/halyard/lib/clock"
	"github.com/halyard-dev/halyard/lib/testutil"
	"github.com/halyard-dev/halyard/wire"
)

const testTimeout = 5 * time.Second

// readResult is one scripted outcome of fakeSocket.ReadMessage.
type readResult struct {
	data []byte
	err  error
}

// fakeSocket is a scriptable socket. Tests feed reads through the
// reads channel and observe writes through the writes channel.
type fakeSocket struct {
	reads     chan readResult
	writes    chan any
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		reads:  make(chan readResult, 16),
		writes: make(chan any, 16),
		done:   make(chan struct{}),
	}
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case r := <-s.reads:
		return websocket.TextMessage, r.data, r.err
	case <-s.done:
		return 0, nil, errors.New("socket closed")
	}
}

func (s *fakeSocket) WriteJSON(v any) error {
	select {
	case s.writes <- v:
		return nil
	case <-s.done:
		return errors.New("socket closed")
	}
}

func (s *fakeSocket) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

type stateChange struct {
	state  State
	detail string
}

// harness wires a Manager to a fake clock and a scripted dial seam.
type harness struct {
	manager *Manager
	clk     *clock.FakeClock
	dials   chan string
	results chan struct {
		socket socket
		err    error
	}
	states chan stateChange
	events chan wire.Event
}

func newHarness(t *testing.T, config Config) *harness {
	t.Helper()

	h := &harness{
		clk:    clock.Fake(time.Unix(1000, 0)),
		dials:  make(chan string, 16),
		states: make(chan stateChange, 16),
		events: make(chan wire.Event, 16),
	}
	h.results = make(chan struct {
		socket socket
		err    error
	}, 16)

	if config.URL == "" {
		config.URL = "ws://daemon.test/stream"
	}
	config.Clock = h.clk
	config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	config.OnState = func(state State, detail string) {
		h.states <- stateChange{state, detail}
	}
	config.OnEvent = func(event wire.Event) {
		h.events <- event
	}

	manager, err := New(config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	manager.dial = func(dialURL string) (socket, error) {
		h.dials <- dialURL
		r := <-h.results
		return r.socket, r.err
	}
	h.manager = manager
	t.Cleanup(manager.Disconnect)
	return h
}

// expectDial waits for a dial attempt and scripts its outcome.
func (h *harness) expectDial(t *testing.T, opened socket, err error) string {
	t.Helper()
	dialURL := testutil.RequireReceive(t, h.dials, testTimeout, "waiting for dial attempt")
	h.results <- struct {
		socket socket
		err    error
	}{opened, err}
	return dialURL
}

// expectState waits for the next state notification and checks it.
func (h *harness) expectState(t *testing.T, want State) stateChange {
	t.Helper()
	got := testutil.RequireReceive(t, h.states, testTimeout, "waiting for state %q", want)
	if got.state != want {
		t.Fatalf("state = %q (detail %q), want %q", got.state, got.detail, want)
	}
	return got
}

// connect runs a successful Connect and returns the opened socket.
func (h *harness) connect(t *testing.T) *fakeSocket {
	t.Helper()
	opened := newFakeSocket()
	h.manager.Connect()
	h.expectDial(t, opened, nil)
	h.expectState(t, StateConnecting)
	h.expectState(t, StateConnected)
	return opened
}

func (h *harness) expectNoStateChange(t *testing.T) {
	t.Helper()
	select {
	case got := <-h.states:
		t.Fatalf("unexpected state notification: %+v", got)
	default:
	}
}

func TestConnectDeliversEventsInOrder(t *testing.T) {
	h := newHarness(t, Config{})
	opened := h.connect(t)

	opened.reads <- readResult{data: []byte(`{"type":"agent_start","sessionId":"s1"}`)}
	opened.reads <- readResult{data: []byte(`{"type":"agent_end","sessionId":"s1"}`)}

	first := testutil.RequireReceive(t, h.events, testTimeout, "first event")
	if _, ok := first.(wire.AgentStart); !ok {
		t.Fatalf("first event = %T, want wire.AgentStart", first)
	}
	second := testutil.RequireReceive(t, h.events, testTimeout, "second event")
	if _, ok := second.(wire.AgentEnd); !ok {
		t.Fatalf("second event = %T, want wire.AgentEnd", second)
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	h := newHarness(t, Config{})
	h.connect(t)

	// A second Connect while connected must not dial again.
	h.manager.Connect()
	select {
	case dialURL := <-h.dials:
		t.Fatalf("unexpected second dial to %q", dialURL)
	default:
	}
	h.expectNoStateChange(t)
}

func TestTokenTravelsAsQueryParameter(t *testing.T) {
	h := newHarness(t, Config{URL: "ws://daemon.test/stream?v=2", Token: "sekrit"})
	h.manager.Connect()
	dialURL := h.expectDial(t, newFakeSocket(), nil)

	parsed, err := url.Parse(dialURL)
	if err != nil {
		t.Fatalf("dial URL %q does not parse: %v", dialURL, err)
	}
	if got := parsed.Query().Get("token"); got != "sekrit" {
		t.Errorf("token query parameter = %q, want %q", got, "sekrit")
	}
	if got := parsed.Query().Get("v"); got != "2" {
		t.Errorf("existing query parameter lost: v = %q, want %q", got, "2")
	}
}

func TestSendRequiresConnection(t *testing.T) {
	h := newHarness(t, Config{})

	err := h.manager.Send(wire.CompactCommand{Command: wire.CommandCompact})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send before connect = %v, want ErrNotConnected", err)
	}

	opened := h.connect(t)
	command := wire.UserMessageCommand{Command: wire.CommandUserMessage, Text: "hello"}
	if err := h.manager.Send(command); err != nil {
		t.Fatalf("Send while connected failed: %v", err)
	}
	written := testutil.RequireReceive(t, opened.writes, testTimeout, "written frame")
	if got, ok := written.(wire.UserMessageCommand); !ok || got.Text != "hello" {
		t.Fatalf("written frame = %#v, want the user message command", written)
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	h := newHarness(t, Config{BaseDelay: time.Second, MaxDelay: 4 * time.Second})

	h.manager.Connect()
	h.expectDial(t, nil, errors.New("refused"))
	h.expectState(t, StateConnecting)
	change := h.expectState(t, StateError)
	if !strings.Contains(change.detail, "refused") {
		t.Errorf("error detail = %q, want dial error mentioned", change.detail)
	}

	// Failed attempts schedule reconnects at 1s, 2s, 4s, then stay
	// capped at 4s.
	for _, delay := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second} {
		h.clk.WaitForTimers(1)

		// Just short of the deadline nothing fires.
		h.clk.Advance(delay - time.Millisecond)
		if count := h.clk.PendingCount(); count != 1 {
			t.Fatalf("timer fired %v early: pending count = %d", delay, count)
		}

		h.clk.Advance(time.Millisecond)
		h.expectDial(t, nil, errors.New("refused"))
		h.expectState(t, StateConnecting)
		h.expectState(t, StateError)
	}
}

func TestBackoffResetsAfterSuccessfulOpen(t *testing.T) {
	h := newHarness(t, Config{BaseDelay: time.Second, MaxDelay: 30 * time.Second})

	h.manager.Connect()
	h.expectDial(t, nil, errors.New("refused"))
	h.expectState(t, StateConnecting)
	h.expectState(t, StateError)

	h.clk.WaitForTimers(1)
	h.clk.Advance(time.Second)
	h.expectDial(t, nil, errors.New("refused"))
	h.expectState(t, StateConnecting)
	h.expectState(t, StateError)

	// Third attempt succeeds, which must reset the attempt counter.
	opened := newFakeSocket()
	h.clk.WaitForTimers(1)
	h.clk.Advance(2 * time.Second)
	h.expectDial(t, opened, nil)
	h.expectState(t, StateConnecting)
	h.expectState(t, StateConnected)

	// Drop the connection: the next delay is back to the base.
	opened.reads <- readResult{err: errors.New("broken pipe")}
	h.expectState(t, StateError)

	h.clk.WaitForTimers(1)
	h.clk.Advance(time.Second - time.Millisecond)
	if count := h.clk.PendingCount(); count != 1 {
		t.Fatalf("reconnect fired before the base delay: pending count = %d", count)
	}
	h.clk.Advance(time.Millisecond)
	h.expectDial(t, newFakeSocket(), nil)
}

func TestServerCloseSchedulesReconnect(t *testing.T) {
	h := newHarness(t, Config{})
	opened := h.connect(t)

	opened.reads <- readResult{err: &websocket.CloseError{Code: websocket.CloseNormalClosure}}
	h.expectState(t, StateDisconnected)

	// Even a clean server-side close re-arms the retry loop.
	h.clk.WaitForTimers(1)
	h.clk.Advance(DefaultBaseDelay)
	h.expectDial(t, newFakeSocket(), nil)
	h.expectState(t, StateConnecting)
	h.expectState(t, StateConnected)
}

func TestWakeTriggerReconnectsImmediately(t *testing.T) {
	h := newHarness(t, Config{BaseDelay: time.Second, MaxDelay: 30 * time.Second})

	// Pile up failures so the pending delay is well past the base.
	h.manager.Connect()
	for _, delay := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		h.expectDial(t, nil, errors.New("refused"))
		h.expectState(t, StateConnecting)
		h.expectState(t, StateError)
		h.clk.WaitForTimers(1)
		h.clk.Advance(delay)
	}
	h.expectDial(t, nil, errors.New("refused"))
	h.expectState(t, StateConnecting)
	h.expectState(t, StateError)
	h.clk.WaitForTimers(1)

	// The wake bypasses the scheduled delay without advancing the
	// clock at all.
	h.manager.WakeOnline()
	h.expectDial(t, nil, errors.New("still refused"))
	h.expectState(t, StateConnecting)
	h.expectState(t, StateError)

	// And it reset the attempt counter: the next delay is the base.
	h.clk.WaitForTimers(1)
	h.clk.Advance(time.Second)
	h.expectDial(t, newFakeSocket(), nil)
	h.expectState(t, StateConnecting)
	h.expectState(t, StateConnected)

	// Wake while connected is a no-op.
	h.manager.WakeForeground()
	if _, ok := h.anyDialPending(); ok {
		t.Fatal("wake dialed while already connected")
	}
	h.expectNoStateChange(t)
}

// anyDialPending reports whether a dial attempt is queued, without
// blocking.
func (h *harness) anyDialPending() (string, bool) {
	select {
	case dialURL := <-h.dials:
		return dialURL, true
	default:
		return "", false
	}
}

func TestDisconnectSuppressesReconnect(t *testing.T) {
	h := newHarness(t, Config{})

	h.manager.Connect()
	h.expectDial(t, nil, errors.New("refused"))
	h.expectState(t, StateConnecting)
	h.expectState(t, StateError)
	h.clk.WaitForTimers(1)

	h.manager.Disconnect()
	h.expectState(t, StateDisconnected)
	if count := h.clk.PendingCount(); count != 0 {
		t.Fatalf("reconnect timer survived Disconnect: pending count = %d", count)
	}

	// Wake triggers must not revive a disconnected manager.
	h.manager.WakeForeground()
	h.manager.WakeOnline()
	if dialURL, ok := h.anyDialPending(); ok {
		t.Fatalf("wake dialed %q after explicit Disconnect", dialURL)
	}
	h.expectNoStateChange(t)

	// A fresh Connect re-enables everything.
	h.connect(t)
}

func TestDisconnectWhileDisconnectedEmitsNothing(t *testing.T) {
	h := newHarness(t, Config{})
	h.manager.Disconnect()
	h.expectNoStateChange(t)
}

func TestUndecodableFramesAreDropped(t *testing.T) {
	h := newHarness(t, Config{})
	opened := h.connect(t)

	opened.reads <- readResult{data: []byte(`{not json`)}
	opened.reads <- readResult{data: []byte(`{"type":"flux_capacitor"}`)}
	opened.reads <- readResult{data: []byte(`{"type":"agent_start","sessionId":"s1"}`)}

	event := testutil.RequireReceive(t, h.events, testTimeout, "surviving event")
	if _, ok := event.(wire.AgentStart); !ok {
		t.Fatalf("event = %T, want wire.AgentStart", event)
	}
	if h.manager.State() != StateConnected {
		t.Fatalf("state = %q after bad frames, want connected", h.manager.State())
	}
}

// TestLiveRoundTrip exercises the real gorilla dialer against an
// in-process server.
func TestLiveRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	tokens := make(chan string, 1)
	received := make(chan []byte, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens <- r.URL.Query().Get("token")
		serverConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer serverConn.Close()
		if err := serverConn.WriteMessage(websocket.TextMessage, []byte(`{"type":"agent_start","sessionId":"live"}`)); err != nil {
			t.Errorf("server write failed: %v", err)
			return
		}
		_, data, err := serverConn.ReadMessage()
		if err != nil {
			t.Errorf("server read failed: %v", err)
			return
		}
		received <- data
	}))
	defer server.Close()

	events := make(chan wire.Event, 16)
	manager, err := New(Config{
		URL:    "ws" + strings.TrimPrefix(server.URL, "http"),
		Token:  "live-token",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnEvent: func(event wire.Event) {
			events <- event
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer manager.Disconnect()
	manager.Connect()

	if got := testutil.RequireReceive(t, tokens, testTimeout, "token seen by server"); got != "live-token" {
		t.Errorf("server saw token %q, want %q", got, "live-token")
	}

	event := testutil.RequireReceive(t, events, testTimeout, "event from live server")
	start, ok := event.(wire.AgentStart)
	if !ok {
		t.Fatalf("event = %T, want wire.AgentStart", event)
	}
	if start.SessionID != "live" {
		t.Errorf("session id = %q, want %q", start.SessionID, "live")
	}

	if err := manager.Send(wire.CompactCommand{Command: wire.CommandCompact, SessionID: "live"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	data := testutil.RequireReceive(t, received, testTimeout, "frame seen by server")
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("server received non-JSON frame %q: %v", data, err)
	}
	if decoded["command"] != wire.CommandCompact {
		t.Errorf("command = %v, want %q", decoded["command"], wire.CommandCompact)
	}
}
