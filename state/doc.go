// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package state holds the client runtime's mutable stores: the active
// session summary, the roster of all known sessions, and the message
// list with its current-message pointer.
//
// Each store is an explicitly constructed container — no package-level
// singletons — so the router and tests receive exactly the stores
// they were given. Mutation happens only through store methods, which
// the router and client call from the connection's read loop.
// Observers read copies via the Get/List accessors and learn about
// changes through Subscribe, which returns a coalescing capacity-1
// notification channel: a pending notification absorbs later ones, so
// a slow observer sees "something changed" rather than a backlog.
// Observers must never mutate what they read; every accessor returns
// a copy for that reason.
package state
