// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// The Require* helpers wrap channel operations with timeout safety
// valves so that a test which would otherwise block forever fails
// with a message instead. They are used throughout the connection
// manager and client tests, which coordinate with the read loop over
// channels.
package testutil
