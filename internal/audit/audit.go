// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit implements the kernel's append-only categorized audit
// log: a bounded ring keyed by monotonically increasing id,
// with per-category on/off configuration and a query interface.
package audit

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/AnujJha88/Clove/lib/clock"
)

// Category classifies an audit entry (AuditEntry).
type Category string

const (
	CategorySyscall Category = "syscall"
	CategorySecurity Category = "security"
	CategoryLifecycle Category = "lifecycle"
	CategoryIPC Category = "ipc"
	CategoryState Category = "state"
	CategoryResource Category = "resource"
	CategoryNetwork Category = "network"
	CategoryWorld Category = "world"
)

// Entry is one audit record.
type Entry struct {
	ID uint64 `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Category Category `json:"category"`
	AgentID *uint32 `json:"agent_id,omitempty"`
	Action string `json:"action"`
	Detail json.RawMessage `json:"detail,omitempty"`
	Success bool `json:"success"`
}

// DefaultCapacity is the ring's default entry count.
const DefaultCapacity = 10000

// Log is the kernel's audit log. Safe for concurrent use.
type Log struct {
	mu sync.Mutex
	clock clock.Clock
	capacity int
	nextID uint64
	entries []Entry // ring, oldest first, length <= capacity

	// enabled controls whether Record appends an entry for a given
	// category. Defaults to every category enabled.
	enabled map[Category]bool
}

// New creates a Log with DefaultCapacity and every category enabled.
func New(clk clock.Clock) *Log {
	return &Log{
		clock: clk,
		capacity: DefaultCapacity,
		nextID: 1,
		enabled: map[Category]bool{
			CategorySyscall: true, CategorySecurity: true, CategoryLifecycle: true,
			CategoryIPC: true, CategoryState: true, CategoryResource: true,
			CategoryNetwork: true, CategoryWorld: true,
		},
	}
}

// SetCapacity resizes the ring, trimming the oldest entries immediately
// if the new capacity is smaller than the current entry count.
func (l *Log) SetCapacity(capacity int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.capacity = capacity
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
}

// SetCategoryEnabled toggles whether Record appends entries for category.
func (l *Log) SetCategoryEnabled(category Category, enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled[category] = enabled
}

// Record appends an entry if its category is enabled. agentID is nil for
// kernel-originated actions.
func (l *Log) Record(category Category, agentID *uint32, action string, detail json.RawMessage, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled[category] {
		return
	}

	entry := Entry{
		ID: l.nextID,
		Timestamp: l.clock.Now(),
		Category: category,
		AgentID: agentID,
		Action: action,
		Detail: detail,
		Success: success,
	}
	l.nextID++

	l.entries = append(l.entries, entry)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
}

// Query returns entries matching the given filters, most recent first.
// category and agentID are optional filters (nil means "any"). sinceID
// excludes entries with ID <= sinceID. limit caps the result length; 0
// means unlimited.
func (l *Log) Query(category *Category, agentID *uint32, sinceID uint64, limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var result []Entry
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if e.ID <= sinceID {
			continue
		}
		if category != nil && e.Category != *category {
			continue
		}
		if agentID != nil && (e.AgentID == nil || *e.AgentID != *agentID) {
			continue
		}
		result = append(result, e)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}
