// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package eventbus

import (
	"testing"
	"time"

	"github.com/AnujJha88/Clove/lib/clock"
)

func newTestBus() *Bus {
	return New(clock.Fake(time.Unix(0, 0)))
}

func TestSubscribePollPreservesOrder(t *testing.T) {
	b := newTestBus()
	b.Subscribe(1, []Type{TypeAgentSpawned, TypeStateChanged})

	b.Emit(TypeAgentSpawned, nil, 0)
	b.Emit(TypeStateChanged, nil, 0)
	b.Emit(TypeAgentExited, nil, 0) // not subscribed, should not appear

	got := b.Poll(1, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Type != TypeAgentSpawned || got[1].Type != TypeStateChanged {
		t.Fatalf("expected order preserved, got %v, %v", got[0].Type, got[1].Type)
	}
}

func TestUnsubscribeSpecificType(t *testing.T) {
	b := newTestBus()
	b.Subscribe(1, []Type{TypeAgentSpawned, TypeStateChanged})
	b.Unsubscribe(1, []Type{TypeAgentSpawned})

	b.Emit(TypeAgentSpawned, nil, 0)
	b.Emit(TypeStateChanged, nil, 0)

	got := b.Poll(1, 10)
	if len(got) != 1 || got[0].Type != TypeStateChanged {
		t.Fatalf("expected only StateChanged, got %v", got)
	}
}

func TestUnsubscribeAll(t *testing.T) {
	b := newTestBus()
	b.Subscribe(1, []Type{TypeAgentSpawned})
	b.Unsubscribe(1, nil)

	b.Emit(TypeAgentSpawned, nil, 0)
	if got := b.Poll(1, 10); len(got) != 0 {
		t.Fatalf("expected no events after unsubscribe-all, got %v", got)
	}
}

func TestQueueCapDropsExcessEvents(t *testing.T) {
	b := newTestBus()
	b.capacity = 2
	b.Subscribe(1, []Type{TypeCustom})

	b.Emit(TypeCustom, nil, 0)
	b.Emit(TypeCustom, nil, 0)
	b.Emit(TypeCustom, nil, 0)

	if got := b.Poll(1, 10); len(got) != 2 {
		t.Fatalf("expected queue capped at 2, got %d", len(got))
	}
}
