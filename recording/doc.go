// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package recording captures the inbound frame stream for offline
// debugging.
//
// A capture is a zstd-compressed sequence of CBOR-encoded frames,
// each carrying its raw wire bytes and arrival time. Reader replays a
// capture frame by frame so a router can be driven from a file
// instead of a live daemon.
package recording
