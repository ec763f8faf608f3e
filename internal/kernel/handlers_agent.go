// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"context"
	"encoding/json"
	"time"

	"github.com/AnujJha88/Clove/internal/agentmgr"
	"github.com/AnujJha88/Clove/internal/audit"
	"github.com/AnujJha88/Clove/internal/eventbus"
	"github.com/AnujJha88/Clove/internal/sandbox"
	"github.com/AnujJha88/Clove/internal/wire"
)

type restartPolicyRequest struct {
	Kind            string  `json:"kind,omitempty"`
	MaxRestarts     int     `json:"max_restarts,omitempty"`
	WindowSeconds   int     `json:"window_seconds,omitempty"`
	InitialBackoffMs int64  `json:"initial_backoff_ms,omitempty"`
	MaxBackoffMs    int64   `json:"max_backoff_ms,omitempty"`
	Multiplier      float64 `json:"multiplier,omitempty"`
}

func (r restartPolicyRequest) resolve(defaults agentmgr.RestartPolicy) agentmgr.RestartPolicy {
	policy := defaults
	if r.Kind != "" {
		policy.Kind = agentmgr.RestartKind(r.Kind)
	}
	if r.MaxRestarts != 0 {
		policy.MaxRestarts = r.MaxRestarts
	}
	if r.WindowSeconds != 0 {
		policy.WindowSeconds = r.WindowSeconds
	}
	if r.InitialBackoffMs != 0 {
		policy.InitialBackoff = time.Duration(r.InitialBackoffMs) * time.Millisecond
	}
	if r.MaxBackoffMs != 0 {
		policy.MaxBackoff = time.Duration(r.MaxBackoffMs) * time.Millisecond
	}
	if r.Multiplier != 0 {
		policy.Multiplier = r.Multiplier
	}
	return policy
}

type limitsRequest struct {
	MemoryBytes int64 `json:"memory_bytes,omitempty"`
	CPUQuotaUS  int64 `json:"cpu_quota_us,omitempty"`
	CPUPeriodUS int64 `json:"cpu_period_us,omitempty"`
	MaxPIDs     int64 `json:"max_pids,omitempty"`
}

func (r limitsRequest) toSandboxLimits() sandbox.Limits {
	return sandbox.Limits{
		MemoryBytes: r.MemoryBytes,
		CPUQuotaUS:  r.CPUQuotaUS,
		CPUPeriodUS: r.CPUPeriodUS,
		MaxPIDs:     r.MaxPIDs,
	}
}

type spawnRequest struct {
	Name             string               `json:"name"`
	Script           string               `json:"script"`
	Interpreter      string               `json:"interpreter,omitempty"`
	Sandboxed        bool                 `json:"sandboxed"`
	NetworkNamespace bool                 `json:"network_namespace,omitempty"`
	Limits           limitsRequest        `json:"limits,omitempty"`
	Restart          restartPolicyRequest `json:"restart,omitempty"`
}

type spawnResult struct {
	Success bool   `json:"success"`
	ID      uint32 `json:"id"`
	PID     int    `json:"pid"`
	Status  string `json:"status"`
}

func (kc *Context) defaultRestartPolicy() agentmgr.RestartPolicy {
	cfg := kc.Config.Restart
	return agentmgr.RestartPolicy{
		Kind:           agentmgr.RestartKind(cfg.Kind),
		MaxRestarts:    cfg.MaxRestarts,
		WindowSeconds:  cfg.WindowSeconds,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Multiplier:     cfg.Multiplier,
	}
}

func (kc *Context) handleSpawn(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req spawnRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}

	if !kc.Permissions.Get(agentID).Spawn {
		return kc.blockSyscall(agentID, "spawn", "agent lacks spawn capability")
	}

	interpreter := req.Interpreter
	if interpreter == "" {
		interpreter = "python3"
	}

	config := agentmgr.Config{
		Name:             req.Name,
		ScriptPath:       req.Script,
		Interpreter:      interpreter,
		SocketPath:       kc.Config.SocketPath,
		Sandboxed:        req.Sandboxed && kc.sandboxAvailable,
		NetworkNamespace: req.NetworkNamespace,
		Limits:           req.Limits.toSandboxLimits(),
		Restart:          req.Restart.resolve(kc.defaultRestartPolicy()),
		ParentID:         agentID,
	}

	agent, err := kc.Agents.Spawn(config)
	if err != nil {
		id := agentID
		detail, _ := json.Marshal(map[string]string{"error": err.Error()})
		kc.Audit.Record(audit.CategoryResource, &id, "spawn", detail, false)
		return wire.Fail("spawn failed: " + err.Error())
	}

	id := agentID
	detail, _ := json.Marshal(map[string]any{"name": agent.Name, "spawned_id": agent.ID})
	kc.Audit.Record(audit.CategoryLifecycle, &id, "spawn", detail, true)
	kc.Events.Emit(eventbus.TypeAgentSpawned, detail, agent.ID)

	data, _ := json.Marshal(spawnResult{Success: true, ID: agent.ID, PID: agent.Proc.PID(), Status: "running"})
	return data
}

type agentTarget struct {
	ID   uint32 `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

func (kc *Context) handleKill(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req agentTarget
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}

	if !kc.Permissions.Get(agentID).Spawn {
		return kc.blockSyscall(agentID, "kill", "agent lacks spawn capability")
	}

	resolvedID, killed, err := kc.Agents.Kill(req.ID, req.Name)
	if err != nil {
		return wire.Fail("kill failed: " + err.Error())
	}
	if !killed {
		return wire.Fail("kill failed: agent not found")
	}

	kc.reap(resolvedID)
	id := agentID
	detail, _ := json.Marshal(req)
	kc.Audit.Record(audit.CategoryLifecycle, &id, "kill", detail, true)
	kc.Events.Emit(eventbus.TypeAgentExited, detail, resolvedID)

	data, _ := json.Marshal(struct {
		Success bool `json:"success"`
		Killed  bool `json:"killed"`
	}{true, true})
	return data
}

type agentSummary struct {
	ID       uint32 `json:"id"`
	Name     string `json:"name,omitempty"`
	ParentID uint32 `json:"parent_id,omitempty"`
	State    string `json:"state"`
	PID      int    `json:"pid"`
}

func (kc *Context) handleList(ctx context.Context, agentID uint32, payload []byte) []byte {
	agents := kc.Agents.List()
	summaries := make([]agentSummary, 0, len(agents))
	for _, a := range agents {
		summaries = append(summaries, agentSummary{
			ID:       a.ID,
			Name:     a.Name,
			ParentID: a.ParentID,
			State:    string(a.Proc.State()),
			PID:      a.Proc.PID(),
		})
	}
	data, _ := json.Marshal(struct {
		Success bool           `json:"success"`
		Agents  []agentSummary `json:"agents"`
	}{true, summaries})
	return data
}

func (kc *Context) handlePause(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req agentTarget
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}
	if !kc.Permissions.Get(agentID).Spawn {
		return kc.blockSyscall(agentID, "pause", "agent lacks spawn capability")
	}
	if err := kc.Agents.Pause(req.ID, req.Name); err != nil {
		return wire.Fail("pause failed: " + err.Error())
	}
	kc.Events.Emit(eventbus.TypeAgentPaused, nil, req.ID)
	return mustJSON(wire.Envelope{Success: true})
}

func (kc *Context) handleResume(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req agentTarget
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}
	if !kc.Permissions.Get(agentID).Spawn {
		return kc.blockSyscall(agentID, "resume", "agent lacks spawn capability")
	}
	if err := kc.Agents.Resume(req.ID, req.Name); err != nil {
		return wire.Fail("resume failed: " + err.Error())
	}
	kc.Events.Emit(eventbus.TypeAgentResumed, nil, req.ID)
	return mustJSON(wire.Envelope{Success: true})
}
