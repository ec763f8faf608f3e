// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package mailbox

import (
	"testing"
	"time"

	"github.com/AnujJha88/Clove/lib/clock"
)

func newTestRegistry() *Registry {
	return New(clock.Fake(time.Unix(0, 0)))
}

func TestRegisterSendRecvRoundTrip(t *testing.T) {
	r := newTestRegistry()
	if err := r.Register(1, "worker"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	id, ok := r.Resolve("worker")
	if !ok || id != 1 {
		t.Fatalf("Resolve: got id=%d ok=%v", id, ok)
	}

	if err := r.Enqueue(id, Message{FromID: 2, Message: []byte(`{"task":"x"}`)}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got := r.Dequeue(1, 10)
	if len(got) != 1 || got[0].FromID != 2 {
		t.Fatalf("Dequeue: got %+v", got)
	}
}

func TestRegisterNameCollisionLeavesEarlierBindingIntact(t *testing.T) {
	r := newTestRegistry()
	if err := r.Register(1, "worker"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(2, "worker"); err == nil {
		t.Fatal("expected name collision to fail")
	}

	id, ok := r.Resolve("worker")
	if !ok || id != 1 {
		t.Fatalf("expected original binding intact, got id=%d ok=%v", id, ok)
	}
}

func TestDequeueIsFIFO(t *testing.T) {
	r := newTestRegistry()
	r.Enqueue(1, Message{FromID: 2, Message: []byte("1")})
	r.Enqueue(1, Message{FromID: 2, Message: []byte("2")})
	r.Enqueue(1, Message{FromID: 2, Message: []byte("3")})

	got := r.Dequeue(1, 2)
	if len(got) != 2 || string(got[0].Message) != "1" || string(got[1].Message) != "2" {
		t.Fatalf("expected FIFO order, got %+v", got)
	}
	rest := r.Dequeue(1, 10)
	if len(rest) != 1 || string(rest[0].Message) != "3" {
		t.Fatalf("expected remaining message, got %+v", rest)
	}
}

func TestBroadcastExcludesSelfByDefault(t *testing.T) {
	r := newTestRegistry()
	r.Register(1, "a")
	r.Register(2, "b")
	r.Register(3, "c")

	delivered := r.Broadcast(Message{FromID: 1, Message: []byte("hi")}, false)
	if delivered != 2 {
		t.Fatalf("expected delivery to 2 other agents, got %d", delivered)
	}
	if len(r.Dequeue(1, 10)) != 0 {
		t.Error("expected sender to not receive its own broadcast")
	}
}

func TestEnqueueOverflow(t *testing.T) {
	r := newTestRegistry()
	r.capacity = 2
	r.Enqueue(1, Message{FromID: 2})
	r.Enqueue(1, Message{FromID: 2})
	if err := r.Enqueue(1, Message{FromID: 2}); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestRemovePurgesQueueAndName(t *testing.T) {
	r := newTestRegistry()
	r.Register(1, "worker")
	r.Enqueue(1, Message{FromID: 2})

	r.Remove(1)

	if _, ok := r.Resolve("worker"); ok {
		t.Error("expected name binding removed")
	}
	if len(r.Dequeue(1, 10)) != 0 {
		t.Error("expected queue purged")
	}
}
