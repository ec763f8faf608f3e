// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package kernel implements the kernel context: it
// owns every service singleton, registers a handler for each opcode on
// a router, and drives the tick loop that reaps dead agents, retries
// pending restarts, and sweeps expired state-store entries. Handlers
// are closures capturing a reference to the Context (dynamic
// dispatch note); the Context itself holds no back-pointer into any
// service, and no service holds a back-pointer to the Context.
package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/AnujJha88/Clove/internal/agentmgr"
	"github.com/AnujJha88/Clove/internal/asynctask"
	"github.com/AnujJha88/Clove/internal/audit"
	"github.com/AnujJha88/Clove/internal/eventbus"
	"github.com/AnujJha88/Clove/internal/execlog"
	"github.com/AnujJha88/Clove/internal/mailbox"
	"github.com/AnujJha88/Clove/internal/permissions"
	"github.com/AnujJha88/Clove/internal/router"
	"github.com/AnujJha88/Clove/internal/sandbox"
	"github.com/AnujJha88/Clove/internal/statestore"
	"github.com/AnujJha88/Clove/internal/tunnel"
	"github.com/AnujJha88/Clove/internal/wire"
	"github.com/AnujJha88/Clove/internal/world"
	"github.com/AnujJha88/Clove/lib/clock"
	"github.com/AnujJha88/Clove/lib/config"
	"github.com/AnujJha88/Clove/lib/version"
)

// Context owns every kernel service and the router they are registered
// against. It is safe for concurrent use: each field is independently
// thread-safe and no lock is ever held across a call into another
// service ("layering" rule).
type Context struct {
	Logger *slog.Logger
	Clock clock.Clock
	Config *config.Config

	Router *router.Router

	Permissions *permissions.Store
	State *statestore.Store
	Mailbox *mailbox.Registry
	Events *eventbus.Bus
	Audit *audit.Log
	Exec *execlog.Logger
	Async *asynctask.Manager
	Agents *agentmgr.Manager
	Worlds *world.Registry
	Tunnel *tunnel.Endpoint

	startedAt time.Time
	lastAgentID atomic.Uint32
	sandboxAvailable bool
}

// New wires every service together, registers every opcode's handler,
// and returns a ready-to-serve Context. It does not start the tick
// loop or the transport — call Run and transport.Serve separately.
func New(cfg *config.Config, logger *slog.Logger) *Context {
	clk := clock.Real()

	kc := &Context{
		Logger: logger,
		Clock: clk,
		Config: cfg,
		Router: router.New(),
		Permissions: permissions.NewStore(),
		State: statestore.New(clk),
		Mailbox: mailbox.New(clk),
		Events: eventbus.New(clk),
		Audit: audit.New(clk),
		Exec: execlog.New(clk),
		Async: asynctask.New(cfg.WorkerCount),
		Worlds: world.New(clk),
		startedAt: clk.Now(),
		sandboxAvailable: !cfg.NoSandbox && sandbox.Available(),
	}
	kc.lastAgentID.Store(0)

	kc.Permissions.SetDefaultPreset(permissions.Preset(cfg.DefaultPermissionPreset))
	kc.Agents = agentmgr.New(clk, logger, kc, kc.nextAgentID)
	kc.State.OnGlobalStore = kc.onGlobalStore
	kc.Audit.SetCapacity(cfg.AuditCapacity)
	execConfig := kc.Exec.GetConfig()
	if cfg.ExecLogCapacity > 0 {
		execConfig.MaxEntries = cfg.ExecLogCapacity
	}
	kc.Exec.SetConfig(execConfig)

	kc.Tunnel = tunnel.New(kc.authorizeTunnel, kc.bridgeDispatch)
	if cfg.Tunnel.Enabled {
		kc.Tunnel.SetEnabled(true)
	}

	kc.registerHandlers()
	return kc
}

// nextAgentID draws from the single process-wide counter backing every
// agent id, whether assigned to a bare connection on its first frame
// or to a process spawned via SPAWN.
func (kc *Context) nextAgentID() uint32 {
	return kc.lastAgentID.Add(1)
}

// Dispatch assigns a fresh agent id to a connection's first frame (0
// until the first frame fixes it), then
// routes the frame and returns the response. HELLO and EXIT are
// answered directly; every other opcode goes through the router.
func (kc *Context) Dispatch(ctx context.Context, frame wire.Frame) wire.Frame {
	if frame.AgentID == 0 {
		frame.AgentID = kc.nextAgentID()
	}

	if entry, ok := kc.Exec.NextReplayEntry(); ok && entry.AgentID == frame.AgentID && entry.Opcode == frame.Opcode.String() {
		kc.Exec.AdvanceReplay(true)
		return wire.Frame{AgentID: frame.AgentID, Opcode: frame.Opcode, Payload: []byte(entry.Response)}
	}

	var resp wire.Frame
	switch frame.Opcode {
	case wire.OpHello:
		resp = wire.Frame{AgentID: frame.AgentID, Opcode: wire.OpHello, Payload: kc.handleHello(frame.AgentID)}
	case wire.OpExit:
		resp = wire.Frame{AgentID: frame.AgentID, Opcode: wire.OpExit, Payload: mustJSON(wire.Envelope{Success: true})}
	default:
		resp = kc.Router.Dispatch(ctx, frame)
	}

	if kc.Exec.RecordingState() == execlog.RecordingActive {
		category := execCategory(frame.Opcode)
		kc.Exec.Capture(frame.AgentID, frame.Opcode.String(), category, json.RawMessage(frame.Payload), json.RawMessage(resp.Payload))
	}

	return resp
}

func execCategory(op wire.Opcode) string {
	switch op {
	case wire.OpThink:
		return "think"
	case wire.OpHTTP:
		return "http"
	case wire.OpExec:
		return "exec"
	default:
		return ""
	}
}

// OnDisconnect is called by the transport when a connection closes.
// Queued mailbox and event state is intentionally left
// in place: it remains addressable until the agent id is reaped by the
// agent manager or the kernel restarts.
func (kc *Context) OnDisconnect(agentID uint32) {
	kc.Logger.Debug("connection closed", "agent_id", agentID)
}

type helloResult struct {
	Success bool `json:"success"`
	Version string `json:"version"`
	Capabilities []string `json:"capabilities"`
	AgentID uint32 `json:"agent_id"`
	Uptime float64 `json:"uptime"`
}

func (kc *Context) handleHello(agentID uint32) []byte {
	uptime := kc.Clock.Now().Sub(kc.startedAt).Seconds()
	caps := version.Capabilities(kc.sandboxAvailable, kc.Tunnel.Status().Enabled, true)
	return mustJSON(helloResult{
		Success: true,
		Version: version.Version,
		Capabilities: caps,
		AgentID: agentID,
		Uptime: uptime,
	})
}

// EmitLifecycle implements agentmgr.EventEmitter: it publishes the
// event on the bus and mirrors it into the audit log under lifecycle.
func (kc *Context) EmitLifecycle(eventType, detail string, agentID uint32) {
	data, _ := json.Marshal(map[string]string{"detail": detail})
	kc.Events.Emit(eventbus.Type(eventType), data, agentID)
	id := agentID
	kc.Audit.Record(audit.CategoryLifecycle, &id, eventType, data, true)
}

func (kc *Context) onGlobalStore(key string, value []byte) {
	data, _ := json.Marshal(map[string]string{"key": key})
	kc.Events.Emit(eventbus.TypeStateChanged, data, 0)
}

// blockSyscall audits a permission denial and emits SYSCALL_BLOCKED,
// uniform handling of every Permission-kind error.
func (kc *Context) blockSyscall(agentID uint32, action, reason string) []byte {
	id := agentID
	detail, _ := json.Marshal(map[string]string{"reason": reason})
	kc.Audit.Record(audit.CategorySecurity, &id, action, detail, false)
	kc.Events.Emit(eventbus.TypeSyscallBlocked, detail, agentID)
	return wire.Fail(fmt.Sprintf("Permission denied: %s", reason))
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return wire.Fail(fmt.Sprintf("internal: marshaling response: %v", err))
	}
	return data
}

// Reap purges every per-agent resource once an agent id is fully
// terminated and will never be reused.
func (kc *Context) reap(agentID uint32) {
	kc.Permissions.Remove(agentID)
	kc.Mailbox.Remove(agentID)
	kc.Events.Remove(agentID)
	kc.Async.Remove(agentID)
	kc.Worlds.Leave(agentID)
}

// Tick drives the periodic, non-request-triggered work: restart
// bookkeeping and state-store TTL sweep.
func (kc *Context) Tick() {
	kc.Agents.ReapAndRestart()
	kc.Agents.ProcessPendingRestarts()
	kc.State.Sweep()
}

// Run starts the tick loop; it returns when ctx is cancelled.
func (kc *Context) Run(ctx context.Context) {
	interval := kc.Config.TickInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := kc.Clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			kc.State.ClearSession()
			kc.Async.Close()
			return
		case <-ticker.C:
			kc.Tick()
		}
	}
}
