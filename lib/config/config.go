// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the kernel's startup configuration from a single
// YAML file specified by:
// - the CLOVE_CONFIG environment variable, or
// - the --config flag passed to the kernel binary.
//
// There are no fallbacks or automatic discovery. This keeps startup
// deterministic and auditable: what the file says is what runs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the kernel's startup configuration.
type Config struct {
	// SocketPath is the Unix socket the transport reactor listens on.
	// Default: /tmp/clove.sock
	SocketPath string `yaml:"socket_path"`

	// LogLevel selects the slog level: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// NoSandbox disables namespace/cgroup isolation even when the host
	// supports it, forcing every agent onto the plain fork/exec path.
	NoSandbox bool `yaml:"no_sandbox"`

	// DefaultPermissionPreset names the preset new agents receive before
	// any explicit SET_PERMS call.
	DefaultPermissionPreset string `yaml:"default_permission_preset"`

	// WorkerCount sizes the async task manager's worker pool.
	WorkerCount int `yaml:"worker_count"`

	// AuditCapacity and ExecLogCapacity bound the audit and execution
	// log rings.
	AuditCapacity int `yaml:"audit_capacity"`
	ExecLogCapacity int `yaml:"exec_log_capacity"`

	// TickInterval drives reap_and_restart, process_pending_restarts,
	// and the state-store TTL sweep.
	TickInterval time.Duration `yaml:"tick_interval"`

	// Restart holds the restart-policy defaults applied to a spawn
	// config that does not specify its own.
	Restart RestartDefaults `yaml:"restart"`

	// Tunnel configures the optional external bridge.
	Tunnel TunnelConfig `yaml:"tunnel"`

	// ThinkCommand is the external command the THINK handler shells out
	// to, read on stdin as the prompt and captured on stdout as the
	// completion. Empty disables THINK entirely.
	ThinkCommand string `yaml:"think_command"`

	// ThinkTimeout bounds how long ThinkCommand may run before it is
	// killed and the request fails as a timeout.
	ThinkTimeout time.Duration `yaml:"think_timeout"`
}

// RestartDefaults mirrors AgentConfig restart-policy fields.
type RestartDefaults struct {
	Kind string `yaml:"kind"`
	MaxRestarts int `yaml:"max_restarts"`
	WindowSeconds int `yaml:"window_seconds"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
	Multiplier float64 `yaml:"multiplier"`
}

// TunnelConfig configures the optional remote bridge.
type TunnelConfig struct {
	Enabled bool `yaml:"enabled"`
	MachineTokens []string `yaml:"machine_tokens"`
}

// Default returns the configuration used before any file is loaded.
// These exist so every field has a sensible zero value; an explicit
// config file is still how production deployments are expected to
// configure the kernel.
func Default() *Config {
	return &Config{
		SocketPath: "/tmp/clove.sock",
		LogLevel: "info",
		DefaultPermissionPreset: "standard",
		WorkerCount: 4,
		AuditCapacity: 10000,
		ExecLogCapacity: 100000,
		TickInterval: 250 * time.Millisecond,
		Restart: RestartDefaults{
			Kind: "on-failure",
			MaxRestarts: 5,
			WindowSeconds: 60,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff: 10 * time.Second,
			Multiplier: 2,
		},
		ThinkTimeout: 30 * time.Second,
	}
}

// Load loads configuration from the CLOVE_CONFIG environment variable.
// There is no fallback — if it is unset, this fails.
func Load() (*Config, error) {
	path := os.Getenv("CLOVE_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("CLOVE_CONFIG not set; point it at a clove.yaml file, or use --config")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from an explicit path, merging it onto
// Default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
