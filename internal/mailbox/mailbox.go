// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package mailbox implements the named-agent IPC mailbox registry: a
// name->agent directory plus a bounded per-agent FIFO of messages.
package mailbox

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/AnujJha88/Clove/lib/clock"
)

// DefaultCapacity bounds a single agent's queue to avoid an unbounded
// memory-exhaustion vector.
const DefaultCapacity = 1024

// Message is one IPC message addressed to a recipient.
type Message struct {
	FromID uint32 `json:"from"`
	FromName string `json:"from_name,omitempty"`
	Message json.RawMessage `json:"message"`
	Enqueued time.Time `json:"-"`
}

// ErrOverflow is returned by Enqueue when the recipient's queue is at
// capacity.
var ErrOverflow = fmt.Errorf("mailbox: queue overflow")

// Registry owns the name↔id directory and every agent's message queue.
type Registry struct {
	mu sync.Mutex
	clock clock.Clock
	capacity int

	nameToID map[string]uint32
	idToName map[uint32]string
	queues map[uint32][]Message
}

// New creates an empty Registry with DefaultCapacity per-agent queues.
func New(clk clock.Clock) *Registry {
	return &Registry{
		clock: clk,
		capacity: DefaultCapacity,
		nameToID: make(map[string]uint32),
		idToName: make(map[uint32]string),
		queues: make(map[uint32][]Message),
	}
}

// Register claims name for agentID. Fails if the name is already taken
// by a different agent.
func (r *Registry) Register(agentID uint32, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.nameToID[name]; ok && existing != agentID {
		return fmt.Errorf("mailbox: name %q already registered to agent %d", name, existing)
	}
	r.nameToID[name] = agentID
	r.idToName[agentID] = name
	return nil
}

// Resolve returns the agent id registered under name.
func (r *Registry) Resolve(name string) (uint32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.nameToID[name]
	return id, ok
}

// NameOf returns the name registered for agentID, if any.
func (r *Registry) NameOf(agentID uint32) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.idToName[agentID]
	return name, ok
}

// Enqueue appends msg to targetID's queue. Returns ErrOverflow if the
// queue is at capacity.
func (r *Registry) Enqueue(targetID uint32, msg Message) error {
	msg.Enqueued = r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queues[targetID]) >= r.capacity {
		return ErrOverflow
	}
	r.queues[targetID] = append(r.queues[targetID], msg)
	return nil
}

// Dequeue removes and returns up to max messages from agentID's queue,
// oldest first.
func (r *Registry) Dequeue(agentID uint32, max int) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	queue := r.queues[agentID]
	if len(queue) == 0 {
		return nil
	}
	if max <= 0 || max > len(queue) {
		max = len(queue)
	}
	out := queue[:max]
	r.queues[agentID] = queue[max:]
	return out
}

// Broadcast enqueues msg for every registered agent. Set includeSelf to
// false to skip the sender (msg.FromID). Returns the number of agents
// the message was delivered to (queue-overflow recipients are skipped,
// not counted).
func (r *Registry) Broadcast(msg Message, includeSelf bool) int {
	r.mu.Lock()
	recipients := make([]uint32, 0, len(r.idToName))
	for id := range r.idToName {
		if !includeSelf && id == msg.FromID {
			continue
		}
		recipients = append(recipients, id)
	}
	r.mu.Unlock()

	delivered := 0
	for _, id := range recipients {
		if err := r.Enqueue(id, msg); err == nil {
			delivered++
		}
	}
	return delivered
}

// Remove purges agentID's queue and name binding once the agent
// terminates and its id is reaped.
func (r *Registry) Remove(agentID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name, ok := r.idToName[agentID]; ok {
		delete(r.nameToID, name)
		delete(r.idToName, agentID)
	}
	delete(r.queues, agentID)
}
