// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"testing"
	"time"

	"github.com/AnujJha88/Clove/internal/wire"
)

func alwaysAuthorized(token string) (bool, error) {
	return token == "good-token", nil
}

func echoDispatch(f wire.Frame) wire.Frame { return f }

func TestConnectRequiresEndpointEnabled(t *testing.T) {
	e := New(alwaysAuthorized, echoDispatch)
	resp := e.Connect(ConnectRequest{MachineToken: "good-token"}, time.Unix(0, 0))
	if resp.OK {
		t.Fatal("expected connect to fail while endpoint disabled")
	}
}

func TestConnectRejectsBadToken(t *testing.T) {
	e := New(alwaysAuthorized, echoDispatch)
	e.SetEnabled(true)
	resp := e.Connect(ConnectRequest{MachineToken: "bad-token"}, time.Unix(0, 0))
	if resp.OK {
		t.Fatal("expected connect to fail for bad token")
	}
}

func TestConnectDisconnectRoundTrip(t *testing.T) {
	e := New(alwaysAuthorized, echoDispatch)
	e.SetEnabled(true)

	resp := e.Connect(ConnectRequest{MachineToken: "good-token", RemoteName: "r1"}, time.Unix(0, 0))
	if !resp.OK || resp.RemoteID == "" {
		t.Fatalf("expected successful connect, got %+v", resp)
	}

	status := e.Status()
	if len(status.ConnectedIDs) != 1 {
		t.Fatalf("expected one connected remote, got %+v", status)
	}

	if !e.Disconnect(resp.RemoteID) {
		t.Fatal("expected disconnect to succeed")
	}
	if e.Disconnect(resp.RemoteID) {
		t.Fatal("expected second disconnect to fail")
	}
}

func TestBridgeRejectsUnknownRemote(t *testing.T) {
	e := New(alwaysAuthorized, echoDispatch)
	_, err := e.Bridge("nope", wire.Frame{})
	if err == nil {
		t.Fatal("expected bridge to unknown remote to fail")
	}
}

func TestBridgeDispatchesThroughRouterFunction(t *testing.T) {
	e := New(alwaysAuthorized, echoDispatch)
	e.SetEnabled(true)
	resp := e.Connect(ConnectRequest{MachineToken: "good-token"}, time.Unix(0, 0))

	f := wire.Frame{AgentID: 7, Opcode: wire.OpNoop, Payload: []byte("ping")}
	got, err := e.Bridge(resp.RemoteID, f)
	if err != nil {
		t.Fatalf("Bridge: %v", err)
	}
	if string(got.Payload) != "ping" {
		t.Fatalf("expected echoed payload, got %q", got.Payload)
	}
}

func TestEncodeDecodeControlRoundTrip(t *testing.T) {
	req := ConnectRequest{MachineToken: "good-token", RemoteName: "r1"}
	data, err := EncodeControl(req)
	if err != nil {
		t.Fatalf("EncodeControl: %v", err)
	}
	var got ConnectRequest
	if err := DecodeControl(data, &got); err != nil {
		t.Fatalf("DecodeControl: %v", err)
	}
	if got != req {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, req)
	}
}
