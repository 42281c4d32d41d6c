// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

package state

import "sync"

// Notifier fans a change signal out to subscribers. Each subscriber
// owns a capacity-1 channel; a signal that finds the channel full is
// dropped because the subscriber already has a wake-up pending.
//
// Stores embed a Notifier and call Notify after every mutation. The
// Notifier has its own mutex so store reads by woken subscribers do
// not deadlock against a store holding its own lock.
type Notifier struct {
	mu          sync.Mutex
	subscribers map[int]chan struct{}
	nextID      int
}

// Subscribe registers a change listener. The returned channel receives
// (at least) one value after every mutation batch. The cancel function
// removes the subscription; it is safe to call more than once.
func (n *Notifier) Subscribe() (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subscribers == nil {
		n.subscribers = make(map[int]chan struct{})
	}
	id := n.nextID
	n.nextID++
	channel := make(chan struct{}, 1)
	n.subscribers[id] = channel

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subscribers, id)
	}
	return channel, cancel
}

// Notify signals every subscriber without blocking. Only store
// implementations call this; observers subscribe.
func (n *Notifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, channel := range n.subscribers {
		select {
		case channel <- struct{}{}:
		default:
		}
	}
}
