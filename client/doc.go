// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is the consumer-facing entry point of the sync
// runtime.
//
// A Client owns one connection to the agent daemon, routes the
// inbound event stream into the state containers a console UI renders
// from (session summary, roster, messages, tool executions, login
// flow, connection status), and provides the outbound command
// surface. Commands that need the daemon's answer go through Call,
// which correlates response frames by request id.
package client
