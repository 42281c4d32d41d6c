// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"testing"
	"time"

	"github.com/halyard-dev/halyard/wire"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRosterAddIsIdempotent(t *testing.T) {
	roster := NewRoster()

	if !roster.Add(Summary{SessionID: "s1", Title: "first", CreatedAt: testTime}) {
		t.Fatal("first Add returned false")
	}
	if roster.Add(Summary{SessionID: "s1", Title: "impostor", MessageCount: 99}) {
		t.Error("duplicate Add returned true")
	}

	entry, ok := roster.Get("s1")
	if !ok {
		t.Fatal("entry missing after duplicate Add")
	}
	if entry.Title != "first" {
		t.Errorf("title = %q, want first (original fields preserved)", entry.Title)
	}
	if entry.MessageCount != 0 {
		t.Errorf("message count = %d, want 0", entry.MessageCount)
	}
	if roster.Len() != 1 {
		t.Errorf("Len() = %d, want 1", roster.Len())
	}
}

func TestRosterOrderIsFirstSeen(t *testing.T) {
	roster := NewRoster()
	roster.Add(Summary{SessionID: "s1"})
	roster.Add(Summary{SessionID: "s2"})
	roster.Add(Summary{SessionID: "s3"})
	roster.Add(Summary{SessionID: "s2"}) // duplicate, must not reorder

	entries := roster.List()
	want := []string{"s1", "s2", "s3"}
	if len(entries) != len(want) {
		t.Fatalf("Len = %d, want %d", len(entries), len(want))
	}
	for i, id := range want {
		if entries[i].SessionID != id {
			t.Errorf("entries[%d] = %q, want %q", i, entries[i].SessionID, id)
		}
	}
}

func TestRosterRemove(t *testing.T) {
	roster := NewRoster()
	roster.Add(Summary{SessionID: "s1"})
	roster.Add(Summary{SessionID: "s2"})

	if !roster.Remove("s1") {
		t.Error("Remove(s1) = false")
	}
	if roster.Remove("s1") {
		t.Error("second Remove(s1) = true")
	}
	if _, ok := roster.Get("s1"); ok {
		t.Error("s1 still present after Remove")
	}
	if roster.Len() != 1 {
		t.Errorf("Len() = %d, want 1", roster.Len())
	}
}

func TestRosterUpdateUnknownIDIsNoOp(t *testing.T) {
	roster := NewRoster()
	roster.SetTitle("ghost", "boo")
	roster.SetMessageCount("ghost", 7)
	if roster.Len() != 0 {
		t.Errorf("Len() = %d after updates to unknown id", roster.Len())
	}
}

func TestSessionStoreReplaceAndReset(t *testing.T) {
	store := NewSessionStore()
	store.Replace(wire.SessionState{
		SessionID:    "s1",
		ModelID:      "sonnet",
		MessageCount: 3,
		Modes:        map[string]bool{"auto": true},
	})

	got := store.Get()
	if got.SessionID != "s1" || got.ModelID != "sonnet" {
		t.Errorf("Get() = %+v", got)
	}

	// Mutating the returned snapshot must not touch the store.
	got.Modes["auto"] = false
	if !store.Get().Modes["auto"] {
		t.Error("snapshot mutation leaked into the store")
	}

	store.Reset()
	if store.Get().SessionID != "" {
		t.Error("Reset did not clear the summary")
	}
}

func TestSessionStoreFieldMutators(t *testing.T) {
	store := NewSessionStore()
	store.SetID("s1")
	store.SetStreaming(true)
	store.SetCompacting(true)
	store.SetModel("opus", "anthropic")
	store.SetThinkingLevel("high")

	got := store.Get()
	if !got.IsStreaming || !got.IsCompacting {
		t.Errorf("flags not set: %+v", got)
	}
	if got.ModelID != "opus" || got.Provider != "anthropic" || got.ThinkingLevel != "high" {
		t.Errorf("fields not set: %+v", got)
	}
}

func TestMessageListDeltaAccumulation(t *testing.T) {
	messages := NewMessageList()
	messages.StartAssistant("m1", testTime)

	if id, ok := messages.CurrentID(); !ok || id != "m1" {
		t.Fatalf("CurrentID() = %q, %v", id, ok)
	}

	messages.AppendText("Hi")
	messages.AppendText(" there")
	messages.SetThinking(true)
	messages.AppendThinking("pondering")
	messages.SetThinking(false)

	entries := messages.List()
	if len(entries) != 1 {
		t.Fatalf("Len = %d, want 1", len(entries))
	}
	message := entries[0]
	if message.Content != "Hi there" {
		t.Errorf("content = %q, want %q", message.Content, "Hi there")
	}
	if message.Thinking != "pondering" {
		t.Errorf("thinking = %q", message.Thinking)
	}
	if !message.IsStreaming {
		t.Error("IsStreaming = false before EndCurrent")
	}

	messages.EndCurrent("")
	if _, ok := messages.CurrentID(); ok {
		t.Error("current pointer survives EndCurrent")
	}
	if messages.List()[0].IsStreaming {
		t.Error("IsStreaming = true after EndCurrent")
	}
}

func TestMessageListEndCurrentFallback(t *testing.T) {
	messages := NewMessageList()
	messages.StartAssistant("m1", testTime)
	messages.EndCurrent("full text from end event")

	if got := messages.List()[0].Content; got != "full text from end event" {
		t.Errorf("content = %q", got)
	}

	// Fallback never overwrites assembled deltas.
	messages.StartAssistant("m2", testTime)
	messages.AppendText("assembled")
	messages.EndCurrent("ignored")
	if got := messages.List()[1].Content; got != "assembled" {
		t.Errorf("content = %q, want assembled", got)
	}
}

func TestMessageListAppendWithoutCurrentIsNoOp(t *testing.T) {
	messages := NewMessageList()
	messages.AppendText("orphan")
	messages.AppendThinking("orphan")
	messages.SetThinking(true)
	messages.EndCurrent("orphan")
	if messages.Len() != 0 {
		t.Errorf("Len = %d, want 0", messages.Len())
	}
}

func TestMessageListOwnerCandidate(t *testing.T) {
	messages := NewMessageList()
	if got := messages.OwnerCandidate(); got != "" {
		t.Errorf("empty list candidate = %q", got)
	}

	messages.AppendUser("u1", "hello", testTime)
	if got := messages.OwnerCandidate(); got != "" {
		t.Errorf("user-only candidate = %q, want empty (never a user message)", got)
	}

	messages.StartAssistant("m1", testTime)
	if got := messages.OwnerCandidate(); got != "m1" {
		t.Errorf("streaming candidate = %q, want m1", got)
	}

	messages.EndCurrent("")
	messages.AppendUser("u2", "again", testTime)
	if got := messages.OwnerCandidate(); got != "m1" {
		t.Errorf("post-stream candidate = %q, want most recent assistant m1", got)
	}
}

func TestMessageListSecondStartFinalizesFirst(t *testing.T) {
	messages := NewMessageList()
	messages.StartAssistant("m1", testTime)
	messages.AppendText("one")
	messages.StartAssistant("m2", testTime)

	entries := messages.List()
	if entries[0].IsStreaming {
		t.Error("first message still streaming after second StartAssistant")
	}
	if id, ok := messages.CurrentID(); !ok || id != "m2" {
		t.Errorf("CurrentID() = %q, %v, want m2", id, ok)
	}
}

func TestSubscribeCoalesces(t *testing.T) {
	roster := NewRoster()
	changes, cancel := roster.Subscribe()
	defer cancel()

	roster.Add(Summary{SessionID: "s1"})
	roster.Add(Summary{SessionID: "s2"})
	roster.Add(Summary{SessionID: "s3"})

	// Multiple mutations while the subscriber was away coalesce into
	// one pending wake-up.
	select {
	case <-changes:
	default:
		t.Fatal("no notification pending")
	}
	select {
	case <-changes:
		t.Fatal("second notification pending, want coalesced")
	default:
	}

	cancel()
	roster.Add(Summary{SessionID: "s4"})
	select {
	case <-changes:
		t.Fatal("notification after cancel")
	default:
	}
}
