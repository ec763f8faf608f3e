// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package asynctask runs blocking syscalls on a bounded worker pool so
// the connection-handling goroutine never stalls waiting on one agent's
// slow operation. Callers submit a task keyed by a
// request id and poll for results later.
package asynctask

import (
	"sync"

	"github.com/AnujJha88/Clove/internal/wire"
)

// DefaultWorkerCount is the pool size used when none is specified.
const DefaultWorkerCount = 4

// Func performs the blocking work and returns the response payload to
// deliver once the caller polls for it.
type Func func() []byte

// Result is one completed task awaiting delivery to its agent.
type Result struct {
	RequestID uint64      `json:"request_id"`
	Opcode    wire.Opcode `json:"opcode"`
	Payload   []byte      `json:"payload"`
}

type task struct {
	agentID   uint32
	requestID uint64
	opcode    wire.Opcode
	fn        Func
}

// Manager owns the task queue, the worker pool, and every agent's
// result inbox.
type Manager struct {
	queue chan task
	stop  chan struct{}
	wg    sync.WaitGroup
	nextID uint64
	idMu  sync.Mutex

	resultsMu sync.Mutex
	results   map[uint32][]Result
}

// New starts a Manager with workerCount workers. workerCount <= 0 uses
// DefaultWorkerCount.
func New(workerCount int) *Manager {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	m := &Manager{
		queue:   make(chan task, 256),
		stop:    make(chan struct{}),
		nextID:  1,
		results: make(map[uint32][]Result),
	}
	for i := 0; i < workerCount; i++ {
		m.wg.Add(1)
		go m.workerLoop()
	}
	return m
}

// NextRequestID returns a fresh, monotonically increasing request id.
func (m *Manager) NextRequestID() uint64 {
	m.idMu.Lock()
	defer m.idMu.Unlock()
	id := m.nextID
	m.nextID++
	return id
}

// Submit enqueues fn for background execution. Its result is delivered
// to agentID's inbox under requestID once a worker picks it up.
func (m *Manager) Submit(agentID uint32, opcode wire.Opcode, requestID uint64, fn Func) bool {
	select {
	case m.queue <- task{agentID: agentID, requestID: requestID, opcode: opcode, fn: fn}:
		return true
	case <-m.stop:
		return false
	}
}

func (m *Manager) workerLoop() {
	defer m.wg.Done()
	for {
		select {
		case t := <-m.queue:
			payload := t.fn()
			m.resultsMu.Lock()
			m.results[t.agentID] = append(m.results[t.agentID], Result{
				RequestID: t.requestID,
				Opcode:    t.opcode,
				Payload:   payload,
			})
			m.resultsMu.Unlock()
		case <-m.stop:
			return
		}
	}
}

// Poll drains up to max completed results for agentID, oldest first.
// max <= 0 drains all available results.
func (m *Manager) Poll(agentID uint32, max int) []Result {
	m.resultsMu.Lock()
	defer m.resultsMu.Unlock()

	pending := m.results[agentID]
	if len(pending) == 0 {
		return nil
	}
	if max <= 0 || max > len(pending) {
		max = len(pending)
	}
	out := pending[:max]
	m.results[agentID] = pending[max:]
	return out
}

// Remove purges agentID's result inbox, e.g. after the agent exits.
func (m *Manager) Remove(agentID uint32) {
	m.resultsMu.Lock()
	defer m.resultsMu.Unlock()
	delete(m.results, agentID)
}

// Close stops every worker and waits for in-flight tasks to finish.
func (m *Manager) Close() {
	close(m.stop)
	m.wg.Wait()
}
