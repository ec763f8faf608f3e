// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"testing"

	"github.com/AnujJha88/Clove/internal/kernelerr"
)

func TestWriteReadRoundTrip(t *testing.T) {
	frame := Frame{AgentID: 7, Opcode: OpStore, Payload: []byte(`{"key":"k"}`)}

	var buf bytes.Buffer
	if err := Write(&buf, frame); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.AgentID != frame.AgentID || got.Opcode != frame.Opcode || !bytes.Equal(got.Payload, frame.Payload) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, frame)
	}
}

func TestZeroLengthPayloadIsLegal(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Frame{AgentID: 1, Opcode: OpNoop}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got.Payload) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(got.Payload))
	}
}

func TestMaxPayloadLengthIsLegal(t *testing.T) {
	var buf bytes.Buffer
	payload := make([]byte, MaxPayloadLength)
	if err := Write(&buf, Frame{AgentID: 1, Opcode: OpNoop, Payload: payload}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := Read(&buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
}

func TestOverMaxPayloadLengthIsProtocolError(t *testing.T) {
	payload := make([]byte, MaxPayloadLength+1)
	err := Write(&bytes.Buffer{}, Frame{AgentID: 1, Opcode: OpNoop, Payload: payload})
	if err == nil {
		t.Fatal("expected error for oversized payload")
	}
	if kernelerr.KindOf(err) != kernelerr.Protocol {
		t.Fatalf("expected Protocol kind, got %v", kernelerr.KindOf(err))
	}
}

func TestBadMagicIsProtocolError(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Frame{AgentID: 1, Opcode: OpNoop}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	corrupted := buf.Bytes()
	corrupted[0] ^= 0xFF

	_, err := Read(bytes.NewReader(corrupted))
	if err == nil {
		t.Fatal("expected protocol error for bad magic")
	}
	if kernelerr.KindOf(err) != kernelerr.Protocol {
		t.Fatalf("expected Protocol kind, got %v", kernelerr.KindOf(err))
	}
}
