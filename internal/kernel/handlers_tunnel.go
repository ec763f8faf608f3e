// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AnujJha88/Clove/internal/tunnel"
	"github.com/AnujJha88/Clove/internal/wire"
)

// authorizeTunnel implements tunnel.AuthFunc against the configured
// machine token list.
func (kc *Context) authorizeTunnel(token string) (bool, error) {
	if token == "" {
		return false, fmt.Errorf("tunnel: empty machine token")
	}
	for _, t := range kc.Config.Tunnel.MachineTokens {
		if t == token {
			return true, nil
		}
	}
	return false, fmt.Errorf("tunnel: unrecognized machine token")
}

// bridgeDispatch implements tunnel.Dispatcher by feeding a bridged
// frame through the same Dispatch path a local connection uses.
func (kc *Context) bridgeDispatch(f wire.Frame) wire.Frame {
	return kc.Dispatch(context.Background(), f)
}

type tunnelConnectRequest struct {
	MachineToken string `json:"machine_token"`
	RemoteName string `json:"remote_name"`
}

func (kc *Context) handleTunnelConnect(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req tunnelConnectRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}
	resp := kc.Tunnel.Connect(tunnel.ConnectRequest{MachineToken: req.MachineToken, RemoteName: req.RemoteName}, kc.Clock.Now())
	if !resp.OK {
		return wire.Fail("tunnel_connect failed: " + resp.Error)
	}
	return mustJSON(struct {
		Success bool `json:"success"`
		RemoteID string `json:"remote_id"`
	}{true, resp.RemoteID})
}

type tunnelTargetRequest struct {
	RemoteID string `json:"remote_id"`
}

func (kc *Context) handleTunnelDisconnect(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req tunnelTargetRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}
	if !kc.Tunnel.Disconnect(req.RemoteID) {
		return wire.Fail("tunnel_disconnect failed: remote not connected")
	}
	return mustJSON(wire.Envelope{Success: true})
}

func (kc *Context) handleTunnelStatus(ctx context.Context, agentID uint32, payload []byte) []byte {
	status := kc.Tunnel.Status()
	return mustJSON(struct {
		Success bool `json:"success"`
		Enabled bool `json:"enabled"`
		ConnectedIDs []string `json:"connected_ids"`
	}{true, status.Enabled, status.ConnectedIDs})
}

func (kc *Context) handleTunnelListRemotes(ctx context.Context, agentID uint32, payload []byte) []byte {
	remotes := kc.Tunnel.ListRemotes()
	type remoteInfo struct {
		ID string `json:"id"`
		Name string `json:"name"`
		ConnectedAt string `json:"connected_at"`
	}
	out := make([]remoteInfo, 0, len(remotes))
	for _, r := range remotes {
		out = append(out, remoteInfo{ID: r.ID, Name: r.Name, ConnectedAt: r.ConnectedAt.Format(timeLayout)})
	}
	return mustJSON(struct {
		Success bool `json:"success"`
		Remotes []remoteInfo `json:"remotes"`
	}{true, out})
}

type tunnelConfigRequest struct {
	Enabled bool `json:"enabled"`
}

func (kc *Context) handleTunnelConfig(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req tunnelConfigRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}
	if !kc.Permissions.Get(agentID).Spawn {
		return kc.blockSyscall(agentID, "tunnel_config", "agent lacks tunnel administration capability")
	}
	kc.Tunnel.SetEnabled(req.Enabled)
	return mustJSON(wire.Envelope{Success: true})
}
