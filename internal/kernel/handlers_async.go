// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"context"
	"encoding/json"

	"github.com/AnujJha88/Clove/internal/wire"
)

type asyncPollRequest struct {
	Max int `json:"max,omitempty"`
}

type asyncResult struct {
	RequestID uint64          `json:"request_id"`
	Opcode    string          `json:"opcode"`
	Payload   json.RawMessage `json:"payload"`
}

func (kc *Context) handleAsyncPoll(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req asyncPollRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return wire.Fail("invalid request: " + err.Error())
		}
	}

	results := kc.Async.Poll(agentID, req.Max)
	out := make([]asyncResult, 0, len(results))
	for _, r := range results {
		out = append(out, asyncResult{RequestID: r.RequestID, Opcode: r.Opcode.String(), Payload: r.Payload})
	}

	data, _ := json.Marshal(struct {
		Success bool          `json:"success"`
		Results []asyncResult `json:"results"`
		Count   int           `json:"count"`
	}{true, out, len(out)})
	return data
}
