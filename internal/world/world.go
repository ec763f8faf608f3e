// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package world implements the world registry: an
// isolated simulation context bundling a virtual filesystem, a
// network mock table, and chaos rules, that agents can join.
package world

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/AnujJha88/Clove/internal/chaos"
	"github.com/AnujJha88/Clove/internal/netmock"
	"github.com/AnujJha88/Clove/internal/vfs"
	"github.com/AnujJha88/Clove/lib/clock"
)

// Config seeds a new world's virtual filesystem, network mock table,
// and chaos engine.
type Config struct {
	Name string
	VFS vfs.Config
	Network netmock.Config
	Chaos chaos.Config
}

// World is one isolated simulation context.
type World struct {
	ID string
	Name string
	VFS *vfs.FS
	Network *netmock.Table
	Chaos *chaos.Engine

	mu sync.Mutex
	members map[uint32]bool

	syscallCount int64
}

// Members returns the ids of every agent currently joined.
func (w *World) Members() []uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]uint32, 0, len(w.members))
	for id := range w.members {
		out = append(out, id)
	}
	return out
}

// RecordSyscall increments the world's syscall counter.
func (w *World) RecordSyscall() {
	w.mu.Lock()
	w.syscallCount++
	w.mu.Unlock()
}

// Registry owns every world plus the agent -> world membership index.
type Registry struct {
	mu sync.Mutex

	clock clock.Clock

	worlds map[string]*World
	agentToID map[uint32]string

	nextSuffix int
}

// New creates an empty Registry.
func New(clk clock.Clock) *Registry {
	return &Registry{
		clock: clk,
		worlds: make(map[string]*World),
		agentToID: make(map[uint32]string),
	}
}

// CreateWorld builds a new world from config and returns its id (slug
// plus a numeric suffix).
func (r *Registry) CreateWorld(config Config) (string, error) {
	r.mu.Lock()
	r.nextSuffix++
	suffix := r.nextSuffix
	r.mu.Unlock()

	slug := config.Name
	if slug == "" {
		slug = "world"
	}
	id := fmt.Sprintf("%s_%d", slug, suffix)

	w := &World{
		ID: id,
		Name: config.Name,
		VFS: vfs.New(r.clock, config.VFS),
		Network: netmock.New(config.Network),
		Chaos: chaos.New(config.Chaos, int64(suffix)),
		members: make(map[uint32]bool),
	}

	r.mu.Lock()
	r.worlds[id] = w
	r.mu.Unlock()

	return id, nil
}

// DestroyWorld removes a world. Fails if it has members unless force
// is set.
func (r *Registry) DestroyWorld(id string, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.worlds[id]
	if !ok {
		return fmt.Errorf("world: %q not found", id)
	}
	w.mu.Lock()
	hasMembers := len(w.members) > 0
	members := make([]uint32, 0, len(w.members))
	for a := range w.members {
		members = append(members, a)
	}
	w.mu.Unlock()

	if hasMembers && !force {
		return fmt.Errorf("world: %q has members, use force to destroy", id)
	}
	for _, a := range members {
		delete(r.agentToID, a)
	}
	delete(r.worlds, id)
	return nil
}

// List returns every world currently registered.
func (r *Registry) List() []*World {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*World, 0, len(r.worlds))
	for _, w := range r.worlds {
		out = append(out, w)
	}
	return out
}

// Get returns a world by id.
func (r *Registry) Get(id string) (*World, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.worlds[id]
	return w, ok
}

// WorldOf returns the world an agent has joined, if any.
func (r *Registry) WorldOf(agentID uint32) (*World, bool) {
	r.mu.Lock()
	id, ok := r.agentToID[agentID]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	return r.Get(id)
}

// Join adds agentID to world id. Fails if the agent is already in a
// world or the world doesn't exist.
func (r *Registry) Join(agentID uint32, id string) error {
	r.mu.Lock()
	if _, already := r.agentToID[agentID]; already {
		r.mu.Unlock()
		return fmt.Errorf("world: agent %d is already in a world", agentID)
	}
	w, ok := r.worlds[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("world: %q not found", id)
	}
	r.agentToID[agentID] = id
	r.mu.Unlock()

	w.mu.Lock()
	w.members[agentID] = true
	w.mu.Unlock()
	return nil
}

// Leave removes agentID from whatever world it is in, if any.
func (r *Registry) Leave(agentID uint32) {
	r.mu.Lock()
	id, ok := r.agentToID[agentID]
	if ok {
		delete(r.agentToID, agentID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	if w, found := r.Get(id); found {
		w.mu.Lock()
		delete(w.members, agentID)
		w.mu.Unlock()
	}
}

// snapshotDoc is the self-contained JSON document produced by
// Snapshot and consumed by Restore.
type snapshotDoc struct {
	Name string `json:"name"`
	VFS vfs.Snapshot `json:"vfs"`
	Network netmock.Snapshot `json:"network"`
	Chaos chaos.Snapshot `json:"chaos"`
	Agents []uint32 `json:"agents"`
}

// Snapshot captures world id as a self-contained JSON document,
// including its virtual filesystem, network-mock table, and chaos
// rules, so Restore can reproduce an equivalent world.
func (r *Registry) Snapshot(id string) (json.RawMessage, error) {
	w, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("world: %q not found", id)
	}
	doc := snapshotDoc{
		Name: w.Name,
		VFS: w.VFS.Snapshot(),
		Network: w.Network.Snapshot(),
		Chaos: w.Chaos.Snapshot(),
		Agents: w.Members(),
	}
	return json.Marshal(doc)
}

// Restore recreates a world from a snapshot document. If newID is
// empty, one is generated from a fresh UUID; agents are listed but no
// child processes are recreated.
func (r *Registry) Restore(snapshot json.RawMessage, newID string) (string, error) {
	var doc snapshotDoc
	if err := json.Unmarshal(snapshot, &doc); err != nil {
		return "", fmt.Errorf("world: invalid snapshot: %w", err)
	}

	id := newID
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.Lock()
	r.nextSuffix++
	seed := int64(r.nextSuffix)
	r.mu.Unlock()

	w := &World{
		ID: id,
		Name: doc.Name,
		VFS: vfs.Restore(r.clock, doc.VFS),
		Network: netmock.Restore(doc.Network),
		Chaos: chaos.Restore(doc.Chaos, seed),
		members: make(map[uint32]bool),
	}
	for _, a := range doc.Agents {
		w.members[a] = true
	}

	r.mu.Lock()
	r.worlds[id] = w
	for _, a := range doc.Agents {
		r.agentToID[a] = id
	}
	r.mu.Unlock()

	return id, nil
}
