// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package permissions implements the per-agent permission objects and
// predicate checks that gate every privileged syscall.
package permissions

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/AnujJha88/Clove/lib/glob"
)

// Permissions is one agent's capability set. The zero value is not a
// valid permission set — use a Preset.
type Permissions struct {
	Read bool
	Write bool
	Exec bool
	Think bool
	Spawn bool
	Network bool

	AllowedRead []string
	AllowedWrite []string
	Blocked []string

	AllowedCommands []string
	BlockedCommands []string

	AllowedDomains []string

	MaxMemoryBytes int64
	MaxCPUPercent int
	MaxLLMCallsPerMinute int
}

// Preset names the five canonical permission templates.
type Preset string

const (
	PresetUnrestricted Preset = "unrestricted"
	PresetStandard Preset = "standard"
	PresetSandboxed Preset = "sandboxed"
	PresetReadonly Preset = "readonly"
	PresetMinimal Preset = "minimal"
)

// Resolve builds a Permissions value for the named preset. An unknown
// preset name falls back to PresetStandard.
func Resolve(preset Preset) Permissions {
	switch preset {
	case PresetUnrestricted:
		return Permissions{
			Read: true, Write: true, Exec: true, Think: true, Spawn: true, Network: true,
			MaxMemoryBytes: 0,
			MaxCPUPercent: 0,
			MaxLLMCallsPerMinute: 0,
		}
	case PresetSandboxed:
		return Permissions{
			Read: true, Write: true, Exec: true, Think: true,
			AllowedRead: []string{"/workspace", "/tmp"},
			AllowedWrite: []string{"/workspace", "/tmp"},
			BlockedCommands: []string{"rm -rf /", "sudo", "shutdown", "reboot"},
			MaxMemoryBytes: 512 * 1024 * 1024,
			MaxCPUPercent: 50,
			MaxLLMCallsPerMinute: 20,
		}
	case PresetReadonly:
		return Permissions{
			Read: true, Think: true,
			MaxLLMCallsPerMinute: 20,
		}
	case PresetMinimal:
		return Permissions{
			Think: true,
			MaxLLMCallsPerMinute: 5,
		}
	default: // PresetStandard and unrecognized names.
		return Permissions{
			Read: true, Write: true, Exec: true, Think: true, Network: true,
			AllowedWrite: []string{"/workspace", "/tmp"},
			BlockedCommands: []string{"sudo", "shutdown", "reboot"},
			MaxMemoryBytes: 1024 * 1024 * 1024,
			MaxCPUPercent: 100,
			MaxLLMCallsPerMinute: 60,
		}
	}
}

// normalizePath resolves p to an absolute, cleaned path; matching
// always happens against the normalized form.
func normalizePath(p string) string {
	if !filepath.IsAbs(p) {
		p = "/" + p
	}
	return filepath.Clean(p)
}

func matchesAny(patterns []string, p string) bool {
	for _, pattern := range patterns {
		// A plain directory entry (no glob metacharacters) matches as a
		// path prefix of p.
		if !strings.ContainsAny(pattern, "*?") {
			cleanPattern := normalizePath(pattern)
			if p == cleanPattern || strings.HasPrefix(p, cleanPattern+"/") {
				return true
			}
			continue
		}
		if glob.MatchCached(pattern, p) {
			return true
		}
	}
	return false
}

// CanReadPath implements can_read_path predicate.
func (p Permissions) CanReadPath(path string) bool {
	if !p.Read {
		return false
	}
	normalized := normalizePath(path)
	if matchesAny(p.Blocked, normalized) {
		return false
	}
	if len(p.AllowedRead) == 0 {
		return true
	}
	return matchesAny(p.AllowedRead, normalized)
}

// CanWritePath implements can_write_path predicate.
func (p Permissions) CanWritePath(path string) bool {
	if !p.Write {
		return false
	}
	normalized := normalizePath(path)
	if matchesAny(p.Blocked, normalized) {
		return false
	}
	if len(p.AllowedWrite) == 0 {
		return true
	}
	return matchesAny(p.AllowedWrite, normalized)
}

// CanExec implements can_exec predicate: parses the leading
// program token from cmd and checks it against the command lists.
func (p Permissions) CanExec(cmd string) bool {
	if !p.Exec {
		return false
	}
	program := leadingToken(cmd)
	for _, blocked := range p.BlockedCommands {
		if matchesCommand(blocked, cmd, program) {
			return false
		}
	}
	if len(p.AllowedCommands) == 0 {
		return true
	}
	for _, allowed := range p.AllowedCommands {
		if matchesCommand(allowed, cmd, program) {
			return true
		}
	}
	return false
}

// CanNetwork implements can_network predicate: parses the
// host from url and matches it against the domain whitelist using glob
// semantics where '*' matches exactly one label.
func (p Permissions) CanNetwork(rawURL string) bool {
	if !p.Network {
		return false
	}
	if len(p.AllowedDomains) == 0 {
		return true
	}
	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	for _, pattern := range p.AllowedDomains {
		if matchesDomain(pattern, host) {
			return true
		}
	}
	return false
}

func leadingToken(cmd string) string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// matchesCommand checks a pattern against both the full command line and
// its leading program token — command allow/block lists in practice
// contain either shape ("sudo" or "sudo *").
func matchesCommand(pattern, fullCommand, program string) bool {
	if pattern == program || pattern == fullCommand {
		return true
	}
	return glob.MatchCached(pattern, fullCommand) || glob.MatchCached(pattern, program)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if u.Host == "" {
		// A bare "host:port" or "host" with no scheme.
		u, err = url.Parse("//" + rawURL)
		if err != nil {
			return ""
		}
	}
	return u.Hostname()
}

// matchesDomain applies label-wise glob matching: '*' in the pattern
// matches exactly one dot-separated label of host.
func matchesDomain(pattern, host string) bool {
	patternLabels := strings.Split(pattern, ".")
	hostLabels := strings.Split(host, ".")
	if len(patternLabels) != len(hostLabels) {
		return false
	}
	for i, label := range patternLabels {
		if label == "*" {
			continue
		}
		if !strings.EqualFold(label, hostLabels[i]) {
			return false
		}
	}
	return true
}
