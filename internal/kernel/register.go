// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import "github.com/AnujJha88/Clove/internal/wire"

// registerHandlers wires every opcode this kernel build implements
// onto the router. OpNoop and OpHello/OpExit are deliberately absent:
// NOOP relies on the router's built-in echo for unregistered opcodes,
// and HELLO/EXIT are special-cased directly in Dispatch.
func (kc *Context) registerHandlers() {
	kc.Router.Handle(wire.OpThink, kc.handleThink)
	kc.Router.Handle(wire.OpExec, kc.handleExec)
	kc.Router.Handle(wire.OpRead, kc.handleRead)
	kc.Router.Handle(wire.OpWrite, kc.handleWrite)

	kc.Router.Handle(wire.OpSpawn, kc.handleSpawn)
	kc.Router.Handle(wire.OpKill, kc.handleKill)
	kc.Router.Handle(wire.OpList, kc.handleList)
	kc.Router.Handle(wire.OpPause, kc.handlePause)
	kc.Router.Handle(wire.OpResume, kc.handleResume)

	kc.Router.Handle(wire.OpSend, kc.handleSend)
	kc.Router.Handle(wire.OpRecv, kc.handleRecv)
	kc.Router.Handle(wire.OpBroadcast, kc.handleBroadcast)
	kc.Router.Handle(wire.OpRegister, kc.handleRegister)

	kc.Router.Handle(wire.OpStore, kc.handleStore)
	kc.Router.Handle(wire.OpFetch, kc.handleFetch)
	kc.Router.Handle(wire.OpDelete, kc.handleDelete)
	kc.Router.Handle(wire.OpKeys, kc.handleKeys)

	kc.Router.Handle(wire.OpGetPerms, kc.handleGetPerms)
	kc.Router.Handle(wire.OpSetPerms, kc.handleSetPerms)

	kc.Router.Handle(wire.OpHTTP, kc.handleHTTP)

	kc.Router.Handle(wire.OpSubscribe, kc.handleSubscribe)
	kc.Router.Handle(wire.OpUnsubscribe, kc.handleUnsubscribe)
	kc.Router.Handle(wire.OpPollEvents, kc.handlePollEvents)
	kc.Router.Handle(wire.OpEmit, kc.handleEmit)

	kc.Router.Handle(wire.OpRecordStart, kc.handleRecordStart)
	kc.Router.Handle(wire.OpRecordStop, kc.handleRecordStop)
	kc.Router.Handle(wire.OpRecordStatus, kc.handleRecordStatus)
	kc.Router.Handle(wire.OpReplayStart, kc.handleReplayStart)
	kc.Router.Handle(wire.OpReplayStatus, kc.handleReplayStatus)

	kc.Router.Handle(wire.OpGetAuditLog, kc.handleGetAuditLog)
	kc.Router.Handle(wire.OpSetAuditConfig, kc.handleSetAuditConfig)

	kc.Router.Handle(wire.OpAsyncPoll, kc.handleAsyncPoll)

	kc.Router.Handle(wire.OpWorldCreate, kc.handleWorldCreate)
	kc.Router.Handle(wire.OpWorldDestroy, kc.handleWorldDestroy)
	kc.Router.Handle(wire.OpWorldList, kc.handleWorldList)
	kc.Router.Handle(wire.OpWorldJoin, kc.handleWorldJoin)
	kc.Router.Handle(wire.OpWorldLeave, kc.handleWorldLeave)
	kc.Router.Handle(wire.OpWorldEvent, kc.handleWorldEvent)
	kc.Router.Handle(wire.OpWorldState, kc.handleWorldState)
	kc.Router.Handle(wire.OpWorldSnapshot, kc.handleWorldSnapshot)
	kc.Router.Handle(wire.OpWorldRestore, kc.handleWorldRestore)

	kc.Router.Handle(wire.OpTunnelConnect, kc.handleTunnelConnect)
	kc.Router.Handle(wire.OpTunnelDisconnect, kc.handleTunnelDisconnect)
	kc.Router.Handle(wire.OpTunnelStatus, kc.handleTunnelStatus)
	kc.Router.Handle(wire.OpTunnelListRemotes, kc.handleTunnelListRemotes)
	kc.Router.Handle(wire.OpTunnelConfig, kc.handleTunnelConfig)
}
