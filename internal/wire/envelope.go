// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "encoding/json"

// Envelope is the common shape of every JSON response payload:
// success plus either a shape-specific result (embedded by handlers
// via their own struct) or an error string.
type Envelope struct {
	Success bool `json:"success"`
	Error string `json:"error,omitempty"`
}

// Fail marshals a failure envelope with the given message.
func Fail(message string) []byte {
	data, _ := json.Marshal(Envelope{Success: false, Error: message})
	return data
}

// AsyncAck is returned by a handler that hands work to the async task
// manager instead of answering synchronously.
type AsyncAck struct {
	Success bool `json:"success"`
	Async bool `json:"async"`
	RequestID uint64 `json:"request_id"`
}

// MarshalAsyncAck builds the JSON payload for an async acknowledgement.
func MarshalAsyncAck(requestID uint64) []byte {
	data, _ := json.Marshal(AsyncAck{Success: true, Async: true, RequestID: requestID})
	return data
}
