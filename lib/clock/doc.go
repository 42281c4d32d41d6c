// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock interface parameter instead of
// calling time.Now, time.After, or time.AfterFunc directly. In
// production, Real() provides the standard library behavior. In tests,
// Fake() provides a deterministic clock that advances only when
// Advance is called.
//
// The connection manager is the main consumer: its reconnect backoff
// timers register on the injected Clock, so a test can drive the
// entire reconnection schedule with Advance and assert the exact
// delays without sleeping.
//
// # Wiring Pattern
//
// Add a Clock field to structs that use time:
//
//	type Manager struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// In production:
//
//	m := &Manager{clock: clock.Real()}
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	m := &Manager{clock: c}
//	// ... trigger a disconnect ...
//	c.WaitForTimers(1)            // wait for the reconnect timer to register
//	c.Advance(1 * time.Second)    // fire it deterministically
//
// # FakeClock Synchronization
//
// When a goroutine calls After or AfterFunc on a FakeClock, it
// registers a pending timer. Use WaitForTimers to block until a
// specific number of timers are registered before calling Advance.
// This eliminates the race between timer registration and time
// advancement that plagues tests using time.Sleep for synchronization.
package clock
