// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventbus implements the kernel's pub/sub layer:
// per-agent subscription sets and bounded per-agent event FIFOs.
package eventbus

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/AnujJha88/Clove/lib/clock"
)

// Type is a stable wire-level event type name.
type Type string

const (
	TypeAgentSpawned Type = "AGENT_SPAWNED"
	TypeAgentExited Type = "AGENT_EXITED"
	TypeAgentPaused Type = "AGENT_PAUSED"
	TypeAgentResumed Type = "AGENT_RESUMED"
	TypeAgentRestarting Type = "AGENT_RESTARTING"
	TypeAgentEscalated Type = "AGENT_ESCALATED"

	TypeMessageReceived Type = "MESSAGE_RECEIVED"
	TypeStateChanged Type = "STATE_CHANGED"
	TypeSyscallBlocked Type = "SYSCALL_BLOCKED"
	TypeResourceWarning Type = "RESOURCE_WARNING"

	TypeCustom Type = "CUSTOM"
)

// DefaultCapacity bounds a single agent's event queue, mirroring
// mailbox.DefaultCapacity.
const DefaultCapacity = 1024

// Event is one published occurrence.
type Event struct {
	Type Type `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	SourceID uint32 `json:"source_agent_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus owns every agent's subscription set and event queue.
type Bus struct {
	mu sync.Mutex
	clock clock.Clock
	capacity int

	subscriptions map[uint32]map[Type]bool
	queues map[uint32][]Event
}

// New creates an empty Bus.
func New(clk clock.Clock) *Bus {
	return &Bus{
		clock: clk,
		capacity: DefaultCapacity,
		subscriptions: make(map[uint32]map[Type]bool),
		queues: make(map[uint32][]Event),
	}
}

// Subscribe adds types to agentID's subscription set.
func (b *Bus) Subscribe(agentID uint32, types []Type) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subscriptions[agentID]
	if !ok {
		set = make(map[Type]bool)
		b.subscriptions[agentID] = set
	}
	for _, t := range types {
		set[t] = true
	}
}

// Unsubscribe removes types from agentID's subscription set. An empty
// types slice unsubscribes from everything.
func (b *Bus) Unsubscribe(agentID uint32, types []Type) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(types) == 0 {
		delete(b.subscriptions, agentID)
		return
	}
	set := b.subscriptions[agentID]
	for _, t := range types {
		delete(set, t)
	}
}

// Emit pushes event onto the queue of every agent subscribed to its
// type. Queues at capacity silently drop the event for that subscriber
// rather than blocking the publisher.
func (b *Bus) Emit(eventType Type, data json.RawMessage, sourceID uint32) {
	event := Event{Type: eventType, Data: data, SourceID: sourceID, Timestamp: b.clock.Now()}

	b.mu.Lock()
	defer b.mu.Unlock()
	for agentID, set := range b.subscriptions {
		if !set[eventType] {
			continue
		}
		queue := b.queues[agentID]
		if len(queue) >= b.capacity {
			continue
		}
		b.queues[agentID] = append(queue, event)
	}
}

// Poll drains up to max events from agentID's queue, oldest first,
// preserving the relative order of events the agent is subscribed to.
func (b *Bus) Poll(agentID uint32, max int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	queue := b.queues[agentID]
	if len(queue) == 0 {
		return nil
	}
	if max <= 0 || max > len(queue) {
		max = len(queue)
	}
	out := queue[:max]
	b.queues[agentID] = queue[max:]
	return out
}

// Remove purges agentID's subscriptions and queue.
func (b *Bus) Remove(agentID uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscriptions, agentID)
	delete(b.queues, agentID)
}
