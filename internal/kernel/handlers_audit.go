// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"context"
	"encoding/json"

	"github.com/AnujJha88/Clove/internal/audit"
	"github.com/AnujJha88/Clove/internal/wire"
)

type getAuditLogRequest struct {
	Category *audit.Category `json:"category,omitempty"`
	AgentID  *uint32         `json:"agent_id,omitempty"`
	SinceID  uint64          `json:"since_id,omitempty"`
	Limit    int             `json:"limit,omitempty"`
}

func (kc *Context) handleGetAuditLog(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req getAuditLogRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return wire.Fail("invalid request: " + err.Error())
		}
	}

	if !kc.Permissions.Get(agentID).Spawn {
		return kc.blockSyscall(agentID, "get_audit_log", "agent lacks audit visibility")
	}

	entries := kc.Audit.Query(req.Category, req.AgentID, req.SinceID, req.Limit)
	data, _ := json.Marshal(struct {
		Success bool          `json:"success"`
		Entries []audit.Entry `json:"entries"`
	}{true, entries})
	return data
}

type setAuditConfigRequest struct {
	Category audit.Category `json:"category"`
	Enabled  bool           `json:"enabled"`
	Capacity int            `json:"capacity,omitempty"`
}

func (kc *Context) handleSetAuditConfig(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req setAuditConfigRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}

	if !kc.Permissions.Get(agentID).Spawn {
		return kc.blockSyscall(agentID, "set_audit_config", "agent lacks audit configuration capability")
	}

	if req.Category != "" {
		kc.Audit.SetCategoryEnabled(req.Category, req.Enabled)
	}
	if req.Capacity > 0 {
		kc.Audit.SetCapacity(req.Capacity)
	}
	return mustJSON(wire.Envelope{Success: true})
}
