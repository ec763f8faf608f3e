// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package statestore implements the kernel's scoped key/value store with
// TTL.
package statestore

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AnujJha88/Clove/lib/clock"
)

// Scope controls who may read and delete a stored value.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeAgent Scope = "agent"
	ScopeSession Scope = "session"
)

// entry is the internal record backing one key.
type entry struct {
	value []byte // raw JSON
	owner uint32
	scope Scope
	expires time.Time // zero means no expiry
	session bool // true if scope was Session at store time
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// Store is the kernel's key/value service. Safe for concurrent use.
type Store struct {
	mu sync.Mutex
	clock clock.Clock
	data map[string]entry

	// OnGlobalStore is invoked after a successful global-scope store,
	// outside the lock, so the caller (the kernel context) can emit a
	// STATE_CHANGED event without statestore depending on
	// the event bus package.
	OnGlobalStore func(key string, value []byte)
}

// New creates an empty Store using clk for TTL and session-clear
// semantics.
func New(clk clock.Clock) *Store {
	return &Store{clock: clk, data: make(map[string]entry)}
}

func agentKey(agentID uint32, key string) string {
	return fmt.Sprintf("agent:%d:%s", agentID, key)
}

// Store writes value under key in the given scope, owned by agentID. ttl
// of zero means no expiry.
func (s *Store) Store(agentID uint32, key string, value []byte, scope Scope, ttl time.Duration) {
	storageKey := key
	if scope == ScopeAgent {
		storageKey = agentKey(agentID, key)
	}

	var expires time.Time
	if ttl > 0 {
		expires = s.clock.Now().Add(ttl)
	}

	s.mu.Lock()
	s.data[storageKey] = entry{
		value: value,
		owner: agentID,
		scope: scope,
		expires: expires,
		session: scope == ScopeSession,
	}
	s.mu.Unlock()

	if scope == ScopeGlobal && s.OnGlobalStore != nil {
		s.OnGlobalStore(key, value)
	}
}

// Fetch returns the value for key visible to agentID, trying the bare
// key first and then the agent-namespaced key. ok is false if no
// visible, unexpired entry exists.
func (s *Store) Fetch(agentID uint32, key string) (value []byte, scope Scope, ok bool) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, found := s.getLocked(key, now); found {
		if e.scope != ScopeAgent || e.owner == agentID {
			return e.value, e.scope, true
		}
	}

	namespaced := agentKey(agentID, key)
	if e, found := s.getLocked(namespaced, now); found && e.owner == agentID {
		return e.value, e.scope, true
	}

	return nil, "", false
}

// getLocked returns the entry at storageKey if present and unexpired,
// lazily deleting it if expired. Must be called with s.mu held.
func (s *Store) getLocked(storageKey string, now time.Time) (entry, bool) {
	e, ok := s.data[storageKey]
	if !ok {
		return entry{}, false
	}
	if e.expired(now) {
		delete(s.data, storageKey)
		return entry{}, false
	}
	return e, true
}

// Erase deletes key if agentID is the owner (for agent-scoped keys, the
// namespaced form is tried first). Returns true if a key was removed.
func (s *Store) Erase(agentID uint32, key string) bool {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	namespaced := agentKey(agentID, key)
	if e, found := s.getLocked(namespaced, now); found && e.owner == agentID {
		delete(s.data, namespaced)
		return true
	}
	if e, found := s.getLocked(key, now); found && e.owner == agentID {
		delete(s.data, key)
		return true
	}
	return false
}

// Keys lists keys visible to agentID whose logical name starts with
// prefix. Agent-scoped keys are reported by their logical (un-namespaced)
// name and only for their owner.
func (s *Store) Keys(agentID uint32, prefix string) []string {
	now := s.clock.Now()
	agentPrefix := fmt.Sprintf("agent:%d:", agentID)

	s.mu.Lock()
	defer s.mu.Unlock()

	var result []string
	for storageKey, e := range s.data {
		if e.expired(now) {
			continue
		}
		var logical string
		switch {
		case e.scope == ScopeAgent:
			if e.owner != agentID || !strings.HasPrefix(storageKey, agentPrefix) {
				continue
			}
			logical = strings.TrimPrefix(storageKey, agentPrefix)
		default:
			logical = storageKey
		}
		if strings.HasPrefix(logical, prefix) {
			result = append(result, logical)
		}
	}
	sort.Strings(result)
	return result
}

// ClearSession removes every session-scoped entry. Called by the
// kernel's tick loop when it shuts down.
func (s *Store) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.data {
		if e.session {
			delete(s.data, key)
		}
	}
}

// Sweep proactively discards every entry expired as of now, so a key
// that nothing ever fetches again does not linger until process exit.
// Access-time expiry (getLocked) still applies independently between
// sweeps.
func (s *Store) Sweep() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.data {
		if e.expired(now) {
			delete(s.data, key)
		}
	}
}
