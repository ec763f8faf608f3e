// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package statestore

import (
	"testing"
	"time"

	"github.com/AnujJha88/Clove/lib/clock"
)

func TestStoreFetchRoundTripAgentScope(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	store := New(fake)

	store.Store(1, "k", []byte("42"), ScopeAgent, 0)

	if _, _, ok := store.Fetch(2, "k"); ok {
		t.Error("expected agent-scoped key to be invisible to another agent")
	}
	value, scope, ok := store.Fetch(1, "k")
	if !ok || string(value) != "42" || scope != ScopeAgent {
		t.Fatalf("expected owner fetch to succeed, got value=%q scope=%q ok=%v", value, scope, ok)
	}
}

func TestGlobalScopeReadableByAll(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	store := New(fake)
	store.Store(1, "k", []byte(`"hi"`), ScopeGlobal, 0)

	value, _, ok := store.Fetch(99, "k")
	if !ok || string(value) != `"hi"` {
		t.Fatalf("expected global key visible to any agent, got ok=%v value=%q", ok, value)
	}
}

func TestOnlyOwnerMayDeleteGlobal(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	store := New(fake)
	store.Store(1, "k", []byte("1"), ScopeGlobal, 0)

	if store.Erase(2, "k") {
		t.Error("expected non-owner erase to fail")
	}
	if !store.Erase(1, "k") {
		t.Error("expected owner erase to succeed")
	}
}

func TestTTLExpiryExactlyAtDeadline(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	store := New(fake)
	store.Store(1, "k", []byte("1"), ScopeGlobal, 10*time.Second)

	fake.Advance(10 * time.Second)
	if _, _, ok := store.Fetch(1, "k"); ok {
		t.Error("expected key to be expired exactly at TTL deadline")
	}
}

func TestKeysListsByPrefixAgentScoped(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	store := New(fake)
	store.Store(1, "alpha/a", []byte("1"), ScopeAgent, 0)
	store.Store(1, "alpha/b", []byte("2"), ScopeAgent, 0)
	store.Store(1, "beta", []byte("3"), ScopeAgent, 0)

	got := store.Keys(1, "alpha/")
	if len(got) != 2 {
		t.Fatalf("expected 2 keys, got %v", got)
	}
}

func TestGlobalStoreEmitsCallback(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	store := New(fake)
	var gotKey string
	store.OnGlobalStore = func(key string, value []byte) { gotKey = key }

	store.Store(1, "k", []byte("1"), ScopeGlobal, 0)
	if gotKey != "k" {
		t.Errorf("expected OnGlobalStore callback with key %q, got %q", "k", gotKey)
	}
}

func TestClearSessionRemovesOnlySessionScope(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	store := New(fake)
	store.Store(1, "g", []byte("1"), ScopeGlobal, 0)
	store.Store(1, "s", []byte("2"), ScopeSession, 0)

	store.ClearSession()

	if _, _, ok := store.Fetch(1, "g"); !ok {
		t.Error("expected global key to survive ClearSession")
	}
	if _, _, ok := store.Fetch(1, "s"); ok {
		t.Error("expected session key to be cleared")
	}
}
