// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package router

import (
	"context"
	"testing"

	"github.com/AnujJha88/Clove/internal/wire"
)

func TestDispatchKnownOpcode(t *testing.T) {
	r := New()
	r.Handle(wire.OpNoop, func(ctx context.Context, agentID uint32, payload []byte) []byte {
		return []byte("pong")
	})

	resp := r.Dispatch(context.Background(), wire.Frame{AgentID: 3, Opcode: wire.OpNoop, Payload: []byte("ping")})
	if string(resp.Payload) != "pong" || resp.Opcode != wire.OpNoop || resp.AgentID != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestDispatchUnknownOpcodeEchoes(t *testing.T) {
	r := New()
	req := wire.Frame{AgentID: 9, Opcode: wire.Opcode(0x99), Payload: []byte("hello")}
	resp := r.Dispatch(context.Background(), req)
	if string(resp.Payload) != "hello" || resp.Opcode != req.Opcode {
		t.Fatalf("expected echo, got %+v", resp)
	}
}

func TestHandleDuplicatePanics(t *testing.T) {
	r := New()
	r.Handle(wire.OpNoop, func(ctx context.Context, agentID uint32, payload []byte) []byte { return nil })

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	r.Handle(wire.OpNoop, func(ctx context.Context, agentID uint32, payload []byte) []byte { return nil })
}
