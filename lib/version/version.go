// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package version holds the kernel's semantic version and the
// capability list returned by HELLO.
package version

// Version is the kernel build's semantic version.
const Version = "0.1.0"

// BaseCapabilities are the syscall groups every kernel build supports,
// regardless of runtime feature detection.
var BaseCapabilities = []string{
	"exec", "read", "write", "spawn", "ipc", "state", "events",
	"audit", "record", "async",
}

// Capabilities returns the full capability list for a running kernel,
// appending features gated on runtime support (HELLO detail:
// "sandbox" only when namespace/cgroup setup succeeded, "tunnel" only
// when a tunnel endpoint is configured, "world" when the world engine
// is enabled).
func Capabilities(sandboxAvailable, tunnelEnabled, worldEnabled bool) []string {
	caps := make([]string, len(BaseCapabilities))
	copy(caps, BaseCapabilities)
	if sandboxAvailable {
		caps = append(caps, "sandbox")
	}
	if tunnelEnabled {
		caps = append(caps, "tunnel")
	}
	if worldEnabled {
		caps = append(caps, "world")
	}
	return caps
}
