// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"context"
	"encoding/json"

	"github.com/AnujJha88/Clove/internal/eventbus"
	"github.com/AnujJha88/Clove/internal/wire"
)

type subscribeRequest struct {
	Types []string `json:"types"`
}

func (kc *Context) handleSubscribe(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req subscribeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}
	kc.Events.Subscribe(agentID, toEventTypes(req.Types))
	return mustJSON(wire.Envelope{Success: true})
}

func (kc *Context) handleUnsubscribe(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req subscribeRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return wire.Fail("invalid request: " + err.Error())
		}
	}
	kc.Events.Unsubscribe(agentID, toEventTypes(req.Types))
	return mustJSON(wire.Envelope{Success: true})
}

func toEventTypes(names []string) []eventbus.Type {
	out := make([]eventbus.Type, 0, len(names))
	for _, n := range names {
		out = append(out, eventbus.Type(n))
	}
	return out
}

type pollEventsRequest struct {
	Max int `json:"max,omitempty"`
}

type wireEvent struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	SourceID  uint32          `json:"source_agent_id"`
	Timestamp string          `json:"timestamp"`
}

func (kc *Context) handlePollEvents(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req pollEventsRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return wire.Fail("invalid request: " + err.Error())
		}
	}

	events := kc.Events.Poll(agentID, req.Max)
	out := make([]wireEvent, 0, len(events))
	for _, e := range events {
		out = append(out, wireEvent{
			Type:      string(e.Type),
			Data:      e.Data,
			SourceID:  e.SourceID,
			Timestamp: e.Timestamp.Format(timeLayout),
		})
	}

	data, _ := json.Marshal(struct {
		Success bool        `json:"success"`
		Events  []wireEvent `json:"events"`
		Count   int         `json:"count"`
	}{true, out, len(out)})
	return data
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

type emitRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type customEventData struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (kc *Context) handleEmit(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req emitRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}
	data, _ := json.Marshal(customEventData{Name: req.Type, Payload: req.Data})
	kc.Events.Emit(eventbus.TypeCustom, data, agentID)
	return mustJSON(wire.Envelope{Success: true})
}
