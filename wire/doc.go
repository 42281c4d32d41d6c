// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the JSON protocol spoken between the halyard
// client runtime and an agent daemon over the WebSocket connection.
//
// Inbound frames form a closed union discriminated by a "type" field.
// Decode unmarshals one frame into the matching Event variant; an
// unrecognized type is an error so the transport can log and drop the
// frame without guessing. Adding a new event kind means adding a
// variant here and a case to every switch over Event — the compiler
// and the router's default-case logging make gaps visible.
//
// The message_update frame nests a second union under "update"
// (text_delta, thinking_delta, thinking_start, thinking_end): the
// incremental pieces from which the router assembles streaming
// assistant messages.
//
// A parallel auth union rides on "auth_event" frames, discriminated
// by an "event" field and correlated by "loginFlowId". Auth events
// never touch session state; they feed the login flow state machine
// exclusively.
//
// Outbound frames are commands with a "command" discriminator and a
// client-generated "requestId". The daemon answers commands with
// "response" frames carrying the same request id; responses are
// matched by the client's correlator and never routed as session
// events.
//
// All frames are UTF-8 JSON text, one object per WebSocket message.
package wire
