// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package tunnel bridges remote, machine-token-authenticated clients
// onto the local syscall router so that a tunneled request is
// indistinguishable, from the router's perspective, from a locally
// connected one. The control types below carry CBOR tags and
// EncodeControl/DecodeControl encode them as CBOR; the bridged
// syscall traffic itself stays on the ordinary wire protocol.
package tunnel

import (
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/AnujJha88/Clove/internal/wire"
)

// ConnectRequest authenticates a remote client wishing to bridge
// traffic through the tunnel.
type ConnectRequest struct {
	MachineToken string `cbor:"machine_token"`
	RemoteName string `cbor:"remote_name"`
}

// ConnectResponse acknowledges a bridged connection.
type ConnectResponse struct {
	OK bool `cbor:"ok"`
	Error string `cbor:"error,omitempty"`
	RemoteID string `cbor:"remote_id,omitempty"`
}

// Status reports the tunnel endpoint's current condition.
type Status struct {
	Enabled bool `cbor:"enabled"`
	ConnectedIDs []string `cbor:"connected_ids"`
}

// RemoteInfo describes one connected remote.
type RemoteInfo struct {
	ID string `cbor:"id"`
	Name string `cbor:"name"`
	ConnectedAt time.Time `cbor:"connected_at"`
}

// Dispatcher is the subset of the router the tunnel bridges requests
// onto — any function able to decode, route, and encode a frame
// exactly as a local connection would.
type Dispatcher func(f wire.Frame) wire.Frame

// AuthFunc validates a machine token, returning whether it is
// authorized and an error describing the failure otherwise.
type AuthFunc func(token string) (bool, error)

// Endpoint owns every bridged remote connection.
type Endpoint struct {
	mu sync.Mutex

	enabled bool
	authorize AuthFunc
	dispatch Dispatcher
	remotes map[string]RemoteInfo
	nextSuffix int
}

// New creates a disabled Endpoint. SetEnabled(true) must be called before any
// remote may connect.
func New(authorize AuthFunc, dispatch Dispatcher) *Endpoint {
	return &Endpoint{
		authorize: authorize,
		dispatch: dispatch,
		remotes: make(map[string]RemoteInfo),
	}
}

// SetEnabled toggles whether Connect accepts new remotes.
func (e *Endpoint) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

// Connect authenticates and registers a remote. now is injected by the
// caller so the endpoint carries no direct clock dependency.
func (e *Endpoint) Connect(req ConnectRequest, now time.Time) ConnectResponse {
	e.mu.Lock()
	if !e.enabled {
		e.mu.Unlock()
		return ConnectResponse{OK: false, Error: "tunnel: endpoint is disabled"}
	}
	e.mu.Unlock()

	ok, err := e.authorize(req.MachineToken)
	if err != nil || !ok {
		return ConnectResponse{OK: false, Error: "tunnel: authorization failed"}
	}

	e.mu.Lock()
	e.nextSuffix++
	id := fmt.Sprintf("remote-%d", e.nextSuffix)
	e.remotes[id] = RemoteInfo{ID: id, Name: req.RemoteName, ConnectedAt: now}
	e.mu.Unlock()

	return ConnectResponse{OK: true, RemoteID: id}
}

// Disconnect removes a remote. Returns false if it was not connected.
func (e *Endpoint) Disconnect(remoteID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.remotes[remoteID]; !ok {
		return false
	}
	delete(e.remotes, remoteID)
	return true
}

// Status reports whether the endpoint is enabled and who is connected.
func (e *Endpoint) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.remotes))
	for id := range e.remotes {
		ids = append(ids, id)
	}
	return Status{Enabled: e.enabled, ConnectedIDs: ids}
}

// ListRemotes returns every currently connected remote.
func (e *Endpoint) ListRemotes() []RemoteInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]RemoteInfo, 0, len(e.remotes))
	for _, r := range e.remotes {
		out = append(out, r)
	}
	return out
}

// Bridge feeds a frame synthesized on behalf of remoteID into the
// local router, exactly as if it had arrived on a local connection,
// and returns the response frame to ship back. Fails if remoteID is
// not connected.
func (e *Endpoint) Bridge(remoteID string, f wire.Frame) (wire.Frame, error) {
	e.mu.Lock()
	_, ok := e.remotes[remoteID]
	e.mu.Unlock()
	if !ok {
		return wire.Frame{}, fmt.Errorf("tunnel: remote %q is not connected", remoteID)
	}
	return e.dispatch(f), nil
}

// EncodeControl and DecodeControl wrap the tunnel's own CBOR-framed
// control plane (connect/disconnect/status/list-remotes/config),
// kept distinct from the bridged syscall traffic which stays on the
// binary wire protocol end to end.
func EncodeControl(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func DecodeControl(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
