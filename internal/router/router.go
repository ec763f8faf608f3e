// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package router implements the kernel's syscall dispatch table: a
// static map from opcode to handler, built once at startup by each
// subsystem registering the opcodes it owns. Handlers are closures
// capturing a reference to the kernel context — the router itself
// holds no subsystem state.
package router

import (
	"context"
	"sync"

	"github.com/AnujJha88/Clove/internal/wire"
)

// Handler processes one decoded frame and returns the payload for the
// response frame (same opcode, any payload). Handlers never return an
// error across this boundary — failures are encoded into the response
// payload by the handler itself.
type Handler func(ctx context.Context, agentID uint32, payload []byte) []byte

// Router dispatches frames to registered handlers. Registration is
// expected to complete before Dispatch is ever called, but the map is
// still guarded for tests that register lazily.
type Router struct {
	mu sync.RWMutex
	handlers map[wire.Opcode]Handler
}

// New creates an empty Router.
func New() *Router {
	return &Router{handlers: make(map[wire.Opcode]Handler)}
}

// Handle registers handler for opcode. Panics on duplicate registration —
// this is a startup-time wiring bug, not a runtime condition.
func (r *Router) Handle(opcode wire.Opcode, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[opcode]; exists {
		panic("router: duplicate handler for opcode " + opcode.String())
	}
	r.handlers[opcode] = handler
}

// Dispatch routes frame to its handler and returns the response frame.
// An opcode with no registered handler is echoed back unchanged — an
// explicit compatibility escape hatch for opcodes a future client may
// send that this kernel build does not yet implement.
func (r *Router) Dispatch(ctx context.Context, frame wire.Frame) wire.Frame {
	r.mu.RLock()
	handler, ok := r.handlers[frame.Opcode]
	r.mu.RUnlock()

	if !ok {
		return wire.Frame{AgentID: frame.AgentID, Opcode: frame.Opcode, Payload: frame.Payload}
	}

	payload := handler(ctx, frame.AgentID, frame.Payload)
	return wire.Frame{AgentID: frame.AgentID, Opcode: frame.Opcode, Payload: payload}
}
