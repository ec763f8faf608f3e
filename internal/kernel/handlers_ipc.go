// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"context"
	"encoding/json"

	"github.com/AnujJha88/Clove/internal/audit"
	"github.com/AnujJha88/Clove/internal/eventbus"
	"github.com/AnujJha88/Clove/internal/mailbox"
	"github.com/AnujJha88/Clove/internal/wire"
)

type registerRequest struct {
	Name string `json:"name"`
}

func (kc *Context) handleRegister(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req registerRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}
	if err := kc.Mailbox.Register(agentID, req.Name); err != nil {
		return wire.Fail(err.Error())
	}
	return mustJSON(wire.Envelope{Success: true})
}

type sendRequest struct {
	ToID    uint32          `json:"to_id,omitempty"`
	ToName  string          `json:"to_name,omitempty"`
	Message json.RawMessage `json:"message"`
}

func (kc *Context) handleSend(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req sendRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}

	targetID := req.ToID
	if targetID == 0 {
		resolved, ok := kc.Mailbox.Resolve(req.ToName)
		if !ok {
			return wire.Fail("send failed: recipient not found")
		}
		targetID = resolved
	}

	fromName, _ := kc.Mailbox.NameOf(agentID)
	msg := mailbox.Message{FromID: agentID, FromName: fromName, Message: req.Message}
	if err := kc.Mailbox.Enqueue(targetID, msg); err != nil {
		id := agentID
		detail, _ := json.Marshal(map[string]any{"target": targetID, "error": err.Error()})
		kc.Audit.Record(audit.CategoryResource, &id, "send", detail, false)
		return wire.Fail("send failed: " + err.Error())
	}

	kc.Events.Emit(eventbus.TypeMessageReceived, req.Message, agentID)

	data, _ := json.Marshal(struct {
		Success    bool   `json:"success"`
		DeliveredTo uint32 `json:"delivered_to"`
	}{true, targetID})
	return data
}

type recvRequest struct {
	Max int `json:"max,omitempty"`
}

type wireMessage struct {
	From     uint32          `json:"from"`
	FromName string          `json:"from_name,omitempty"`
	Message  json.RawMessage `json:"message"`
}

func (kc *Context) handleRecv(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req recvRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return wire.Fail("invalid request: " + err.Error())
		}
	}

	messages := kc.Mailbox.Dequeue(agentID, req.Max)
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, wireMessage{From: m.FromID, FromName: m.FromName, Message: m.Message})
	}

	data, _ := json.Marshal(struct {
		Success  bool          `json:"success"`
		Messages []wireMessage `json:"messages"`
		Count    int           `json:"count"`
	}{true, out, len(out)})
	return data
}

type broadcastRequest struct {
	Message     json.RawMessage `json:"message"`
	IncludeSelf bool            `json:"include_self,omitempty"`
}

func (kc *Context) handleBroadcast(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req broadcastRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}

	fromName, _ := kc.Mailbox.NameOf(agentID)
	msg := mailbox.Message{FromID: agentID, FromName: fromName, Message: req.Message}
	delivered := kc.Mailbox.Broadcast(msg, req.IncludeSelf)

	kc.Events.Emit(eventbus.TypeMessageReceived, req.Message, agentID)

	data, _ := json.Marshal(struct {
		Success        bool `json:"success"`
		DeliveredCount int  `json:"delivered_count"`
	}{true, delivered})
	return data
}
