// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package conn maintains the WebSocket connection to the agent
// daemon.
//
// A Manager owns exactly one connection plus its retry policy: lost
// connections are re-dialed with exponential backoff, successful
// opens reset the backoff, and environment wake triggers (page
// foreground, network online) short-circuit a pending delay with an
// immediate attempt. Frames are decoded with package wire and handed
// to the consumer one at a time, in arrival order.
package conn
