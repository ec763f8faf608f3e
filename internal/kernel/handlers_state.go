// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"context"
	"encoding/json"
	"time"

	"github.com/AnujJha88/Clove/internal/statestore"
	"github.com/AnujJha88/Clove/internal/wire"
)

type storeRequest struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
	Scope string          `json:"scope,omitempty"`
	TTLMs int64           `json:"ttl_ms,omitempty"`
}

func (kc *Context) handleStore(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req storeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}

	scope := statestore.Scope(req.Scope)
	if scope == "" {
		scope = statestore.ScopeAgent
	}

	var ttl time.Duration
	if req.TTLMs > 0 {
		ttl = time.Duration(req.TTLMs) * time.Millisecond
	}

	kc.State.Store(agentID, req.Key, req.Value, scope, ttl)
	return mustJSON(wire.Envelope{Success: true})
}

type fetchRequest struct {
	Key string `json:"key"`
}

func (kc *Context) handleFetch(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req fetchRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}

	value, scope, ok := kc.State.Fetch(agentID, req.Key)
	if !ok {
		data, _ := json.Marshal(struct {
			Success bool `json:"success"`
			Exists  bool `json:"exists"`
		}{true, false})
		return data
	}

	data, _ := json.Marshal(struct {
		Success bool            `json:"success"`
		Exists  bool            `json:"exists"`
		Value   json.RawMessage `json:"value"`
		Scope   string          `json:"scope"`
	}{true, true, value, string(scope)})
	return data
}

func (kc *Context) handleDelete(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req fetchRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}

	deleted := kc.State.Erase(agentID, req.Key)
	data, _ := json.Marshal(struct {
		Success bool `json:"success"`
		Deleted bool `json:"deleted"`
	}{true, deleted})
	return data
}

type keysRequest struct {
	Prefix string `json:"prefix,omitempty"`
}

func (kc *Context) handleKeys(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req keysRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return wire.Fail("invalid request: " + err.Error())
		}
	}

	keys := kc.State.Keys(agentID, req.Prefix)
	if keys == nil {
		keys = []string{}
	}
	data, _ := json.Marshal(struct {
		Success bool     `json:"success"`
		Keys    []string `json:"keys"`
	}{true, keys})
	return data
}
