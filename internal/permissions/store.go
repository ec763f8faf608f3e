// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package permissions

import (
	"fmt"
	"sync"
)

// Store owns every agent's Permissions, keyed by agent id. An id with no
// prior entry is created lazily with the store's default preset on first
// access.
type Store struct {
	mu sync.RWMutex
	byID map[uint32]Permissions
	defaultPreset Preset
}

// NewStore creates an empty permission store defaulting new agents to
// PresetStandard. Call SetDefaultPreset to change it.
func NewStore() *Store {
	return &Store{byID: make(map[uint32]Permissions), defaultPreset: PresetStandard}
}

// SetDefaultPreset changes the preset assigned to an agent id on its
// first access, per the kernel's configured default_permission_preset.
func (s *Store) SetDefaultPreset(preset Preset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultPreset = preset
}

// Get returns agentID's permissions, creating the store's default preset
// if this is the first access.
func (s *Store) Get(agentID uint32) Permissions {
	s.mu.RLock()
	p, ok := s.byID[agentID]
	s.mu.RUnlock()
	if ok {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok = s.byID[agentID]; ok {
		return p
	}
	p = Resolve(s.defaultPreset)
	s.byID[agentID] = p
	return p
}

// Set overwrites target's permissions. Set callers must pre-check
// Authorize; Set itself performs no authorization.
func (s *Store) Set(target uint32, p Permissions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[target] = p
}

// Remove purges a terminated agent's permission entry once it
// terminates and its id is reaped.
func (s *Store) Remove(agentID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, agentID)
}

// Authorize enforces mutation rule: an agent may change only
// its own permissions unless it holds the Spawn capability, in which
// case it may set any target's permissions.
func Authorize(requester uint32, requesterPerms Permissions, target uint32) error {
	if requester == target {
		return nil
	}
	if requesterPerms.Spawn {
		return nil
	}
	return fmt.Errorf("agent %d may not modify permissions of agent %d", requester, target)
}
