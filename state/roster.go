// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"sync"
	"time"
)

// Summary is one roster entry: the metadata the session list shows
// for every known session, active or not.
type Summary struct {
	SessionID    string
	Title        string
	MessageCount int
	CreatedAt    time.Time
}

// Roster is the ordered collection of all known sessions, unique by
// session id. Order is first-seen order.
type Roster struct {
	Notifier

	mu      sync.Mutex
	entries []Summary
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{}
}

// Add inserts a session if its id is not already present. Inserting a
// duplicate id is a no-op that preserves the first-seen record's
// fields. Reports whether the entry was inserted.
func (r *Roster) Add(entry Summary) bool {
	r.mu.Lock()
	for _, existing := range r.entries {
		if existing.SessionID == entry.SessionID {
			r.mu.Unlock()
			return false
		}
	}
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	r.Notify()
	return true
}

// Remove deletes the entry for sessionID. Reports whether an entry
// was removed. The caller is responsible for clearing the active
// session pointer when the removed entry was active.
func (r *Roster) Remove(sessionID string) bool {
	r.mu.Lock()
	for i, existing := range r.entries {
		if existing.SessionID == sessionID {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			r.mu.Unlock()
			r.Notify()
			return true
		}
	}
	r.mu.Unlock()
	return false
}

// SetTitle updates the title of an existing entry. Unknown ids are a
// no-op: titles ride on message events, which can outrun the roster
// insert after a reconnect.
func (r *Roster) SetTitle(sessionID, title string) {
	r.update(sessionID, func(entry *Summary) {
		entry.Title = title
	})
}

// SetMessageCount updates the message count of an existing entry.
// Unknown ids are a no-op.
func (r *Roster) SetMessageCount(sessionID string, count int) {
	r.update(sessionID, func(entry *Summary) {
		entry.MessageCount = count
	})
}

// update applies mutate to the entry with sessionID, if present.
func (r *Roster) update(sessionID string, mutate func(*Summary)) {
	r.mu.Lock()
	for i := range r.entries {
		if r.entries[i].SessionID == sessionID {
			mutate(&r.entries[i])
			r.mu.Unlock()
			r.Notify()
			return
		}
	}
	r.mu.Unlock()
}

// Get returns the entry for sessionID.
func (r *Roster) Get(sessionID string) (Summary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.SessionID == sessionID {
			return entry, true
		}
	}
	return Summary{}, false
}

// List returns a copy of all entries in first-seen order.
func (r *Roster) List() []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]Summary, len(r.entries))
	copy(entries, r.entries)
	return entries
}

// Len returns the number of known sessions.
func (r *Roster) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
