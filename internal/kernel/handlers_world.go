// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"context"
	"encoding/json"
	"time"

	"github.com/AnujJha88/Clove/internal/audit"
	"github.com/AnujJha88/Clove/internal/chaos"
	"github.com/AnujJha88/Clove/internal/eventbus"
	"github.com/AnujJha88/Clove/internal/netmock"
	"github.com/AnujJha88/Clove/internal/vfs"
	"github.com/AnujJha88/Clove/internal/wire"
	"github.com/AnujJha88/Clove/internal/world"
)

type vfsConfigRequest struct {
	InitialFiles      map[string]vfs.InitialFile `json:"initial_files,omitempty"`
	ReadonlyPatterns  []string                   `json:"readonly_patterns,omitempty"`
	WritablePatterns  []string                   `json:"writable_patterns,omitempty"`
	InterceptPatterns []string                   `json:"intercept_patterns,omitempty"`
}

type netmockConfigRequest struct {
	Mode           netmock.Mode `json:"mode,omitempty"`
	AllowedDomains []string     `json:"allowed_domains,omitempty"`
	FailUnmatched  bool         `json:"fail_unmatched,omitempty"`
}

type chaosLatencyRequest struct {
	MinMs int64 `json:"min_ms,omitempty"`
	MaxMs int64 `json:"max_ms,omitempty"`
}

type chaosConfigRequest struct {
	Enabled         bool                `json:"enabled,omitempty"`
	BaseFailureRate float64             `json:"base_failure_rate,omitempty"`
	Latency         chaosLatencyRequest `json:"latency,omitempty"`
	Rules           []chaos.Rule        `json:"rules,omitempty"`
}

type worldCreateRequest struct {
	Name    string               `json:"name,omitempty"`
	VFS     vfsConfigRequest     `json:"vfs,omitempty"`
	Network netmockConfigRequest `json:"network,omitempty"`
	Chaos   chaosConfigRequest   `json:"chaos,omitempty"`
}

func (kc *Context) handleWorldCreate(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req worldCreateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}
	if !kc.Permissions.Get(agentID).Spawn {
		return kc.blockSyscall(agentID, "world_create", "agent lacks world administration capability")
	}

	config := world.Config{
		Name: req.Name,
		VFS: vfs.Config{
			InitialFiles:      req.VFS.InitialFiles,
			ReadonlyPatterns:  req.VFS.ReadonlyPatterns,
			WritablePatterns:  req.VFS.WritablePatterns,
			InterceptPatterns: req.VFS.InterceptPatterns,
		},
		Network: netmock.Config{
			Mode:           req.Network.Mode,
			AllowedDomains: req.Network.AllowedDomains,
			FailUnmatched:  req.Network.FailUnmatched,
		},
		Chaos: chaos.Config{
			Enabled:         req.Chaos.Enabled,
			BaseFailureRate: req.Chaos.BaseFailureRate,
			Latency: chaos.LatencyRange{
				Min: time.Duration(req.Chaos.Latency.MinMs) * time.Millisecond,
				Max: time.Duration(req.Chaos.Latency.MaxMs) * time.Millisecond,
			},
			Rules: req.Chaos.Rules,
		},
	}

	id, err := kc.Worlds.CreateWorld(config)
	if err != nil {
		return wire.Fail("world_create failed: " + err.Error())
	}

	aid := agentID
	detail, _ := json.Marshal(map[string]string{"world": id})
	kc.Audit.Record(audit.CategoryWorld, &aid, "world_create", detail, true)

	data, _ := json.Marshal(struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}{true, id})
	return data
}

type worldTarget struct {
	ID    string `json:"id"`
	Force bool   `json:"force,omitempty"`
}

func (kc *Context) handleWorldDestroy(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req worldTarget
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}
	if !kc.Permissions.Get(agentID).Spawn {
		return kc.blockSyscall(agentID, "world_destroy", "agent lacks world administration capability")
	}
	if err := kc.Worlds.DestroyWorld(req.ID, req.Force); err != nil {
		return wire.Fail("world_destroy failed: " + err.Error())
	}
	aid := agentID
	detail, _ := json.Marshal(req)
	kc.Audit.Record(audit.CategoryWorld, &aid, "world_destroy", detail, true)
	return mustJSON(wire.Envelope{Success: true})
}

type worldSummary struct {
	ID      string   `json:"id"`
	Name    string   `json:"name,omitempty"`
	Members []uint32 `json:"members"`
}

func (kc *Context) handleWorldList(ctx context.Context, agentID uint32, payload []byte) []byte {
	worlds := kc.Worlds.List()
	out := make([]worldSummary, 0, len(worlds))
	for _, w := range worlds {
		out = append(out, worldSummary{ID: w.ID, Name: w.Name, Members: w.Members()})
	}
	data, _ := json.Marshal(struct {
		Success bool           `json:"success"`
		Worlds  []worldSummary `json:"worlds"`
	}{true, out})
	return data
}

func (kc *Context) handleWorldJoin(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req worldTarget
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}
	if err := kc.Worlds.Join(agentID, req.ID); err != nil {
		return wire.Fail("world_join failed: " + err.Error())
	}
	kc.Events.Emit(eventbus.TypeCustom, mustJSON(map[string]string{"world": req.ID}), agentID)
	return mustJSON(wire.Envelope{Success: true})
}

func (kc *Context) handleWorldLeave(ctx context.Context, agentID uint32, payload []byte) []byte {
	kc.Worlds.Leave(agentID)
	return mustJSON(wire.Envelope{Success: true})
}

type worldEventRequest struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

func (kc *Context) handleWorldEvent(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req worldEventRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}
	w, ok := kc.Worlds.WorldOf(agentID)
	if !ok {
		return wire.Fail("world_event failed: agent is not in a world")
	}
	if req.Active {
		w.Chaos.InjectEvent(req.Name)
	} else {
		w.Chaos.ClearEvent(req.Name)
	}
	return mustJSON(wire.Envelope{Success: true})
}

func (kc *Context) handleWorldState(ctx context.Context, agentID uint32, payload []byte) []byte {
	w, ok := kc.Worlds.WorldOf(agentID)
	if !ok {
		return wire.Fail("world_state failed: agent is not in a world")
	}
	reads, writes := w.VFS.Counters()
	data, _ := json.Marshal(struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
		Name    string `json:"name,omitempty"`
		Reads   int64  `json:"vfs_reads"`
		Writes  int64  `json:"vfs_writes"`
	}{true, w.ID, w.Name, reads, writes})
	return data
}

type worldSnapshotRequest struct {
	ID string `json:"id"`
}

func (kc *Context) handleWorldSnapshot(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req worldSnapshotRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}
	snapshot, err := kc.Worlds.Snapshot(req.ID)
	if err != nil {
		return wire.Fail("world_snapshot failed: " + err.Error())
	}
	data, _ := json.Marshal(struct {
		Success  bool            `json:"success"`
		Snapshot json.RawMessage `json:"snapshot"`
	}{true, snapshot})
	return data
}

type worldRestoreRequest struct {
	Snapshot json.RawMessage `json:"snapshot"`
	NewID    string          `json:"new_id,omitempty"`
}

func (kc *Context) handleWorldRestore(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req worldRestoreRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}
	if !kc.Permissions.Get(agentID).Spawn {
		return kc.blockSyscall(agentID, "world_restore", "agent lacks world administration capability")
	}
	id, err := kc.Worlds.Restore(req.Snapshot, req.NewID)
	if err != nil {
		return wire.Fail("world_restore failed: " + err.Error())
	}
	data, _ := json.Marshal(struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}{true, id})
	return data
}
