// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the kernel's binary frame codec: a
// fixed 17-byte header — magic, agent id, opcode, payload length — followed
// by an opaque payload, commonly UTF-8 JSON. Framing mirrors the fixed
// type+length header style used elsewhere in the corpus for long-lived
// binary streams, generalized to the kernel's wider header.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/AnujJha88/Clove/internal/kernelerr"
)

// Magic is the fixed 4-byte constant that opens every frame.
const Magic uint32 = 0x41474E54

// HeaderLength is the fixed size of a frame header in bytes.
const HeaderLength = 17

// MaxPayloadLength is the largest payload a single frame may carry.
const MaxPayloadLength = 1 << 20 // 1 MiB

// Frame is one decoded protocol message.
type Frame struct {
	AgentID uint32
	Opcode Opcode
	Payload []byte
}

// Write serializes f to w as [magic|agent_id|opcode|length|payload].
func Write(w io.Writer, f Frame) error {
	if len(f.Payload) > MaxPayloadLength {
		return kernelerr.New(kernelerr.Protocol, fmt.Errorf("wire: payload length %d exceeds %d", len(f.Payload), MaxPayloadLength))
	}

	var header [HeaderLength]byte
	binary.LittleEndian.PutUint32(header[0:4], Magic)
	binary.LittleEndian.PutUint32(header[4:8], f.AgentID)
	header[8] = byte(f.Opcode)
	binary.LittleEndian.PutUint64(header[9:17], uint64(len(f.Payload)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}
	if len(f.Payload) > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return fmt.Errorf("wire: write payload: %w", err)
		}
	}
	return nil
}

// Read decodes one Frame from r. A bad magic, truncated header, or
// oversized payload is reported as a kernelerr.Protocol error — the
// caller (the transport reactor) closes the connection on any such error.
func Read(r io.Reader) (Frame, error) {
	var header [HeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return Frame{}, err
		}
		return Frame{}, kernelerr.New(kernelerr.Protocol, fmt.Errorf("wire: read header: %w", err))
	}

	magic := binary.LittleEndian.Uint32(header[0:4])
	if magic != Magic {
		return Frame{}, kernelerr.New(kernelerr.Protocol, fmt.Errorf("wire: bad magic %#x", magic))
	}

	agentID := binary.LittleEndian.Uint32(header[4:8])
	opcode := Opcode(header[8])
	length := binary.LittleEndian.Uint64(header[9:17])
	if length > MaxPayloadLength {
		return Frame{}, kernelerr.New(kernelerr.Protocol, fmt.Errorf("wire: payload length %d exceeds %d", length, MaxPayloadLength))
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, kernelerr.New(kernelerr.Protocol, fmt.Errorf("wire: read payload: %w", err))
		}
	}

	return Frame{AgentID: agentID, Opcode: opcode, Payload: payload}, nil
}
