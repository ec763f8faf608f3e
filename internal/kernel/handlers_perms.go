// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"context"
	"encoding/json"

	"github.com/AnujJha88/Clove/internal/audit"
	"github.com/AnujJha88/Clove/internal/permissions"
	"github.com/AnujJha88/Clove/internal/wire"
)

type getPermsRequest struct {
	ID uint32 `json:"id,omitempty"`
}

func (kc *Context) handleGetPerms(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req getPermsRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return wire.Fail("invalid request: " + err.Error())
		}
	}
	target := req.ID
	if target == 0 {
		target = agentID
	}

	perms := kc.Permissions.Get(target)
	data, _ := json.Marshal(struct {
		Success     bool                   `json:"success"`
		Permissions permissions.Permissions `json:"permissions"`
	}{true, perms})
	return data
}

type setPermsRequest struct {
	ID          uint32                  `json:"id,omitempty"`
	Preset      string                  `json:"preset,omitempty"`
	Permissions permissions.Permissions `json:"permissions,omitempty"`
}

func (kc *Context) handleSetPerms(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req setPermsRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}
	target := req.ID
	if target == 0 {
		target = agentID
	}

	requesterPerms := kc.Permissions.Get(agentID)
	if err := permissions.Authorize(agentID, requesterPerms, target); err != nil {
		return kc.blockSyscall(agentID, "set_perms", err.Error())
	}

	newPerms := req.Permissions
	if req.Preset != "" {
		newPerms = permissions.Resolve(permissions.Preset(req.Preset))
	}
	kc.Permissions.Set(target, newPerms)

	id := agentID
	detail, _ := json.Marshal(map[string]uint32{"target": target})
	kc.Audit.Record(audit.CategorySecurity, &id, "set_perms", detail, true)

	return mustJSON(wire.Envelope{Success: true})
}
