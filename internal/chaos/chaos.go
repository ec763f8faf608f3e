// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package chaos implements the per-world probabilistic failure and
// latency injection engine.
package chaos

import (
	"math/rand"
	"sync"
	"time"

	"github.com/AnujJha88/Clove/lib/glob"
)

// OpType names the kind of operation a rule applies to.
type OpType string

const (
	OpDisk OpType = "disk"
	OpNetwork OpType = "network"
)

// Rule is one (type, path/url pattern, probability) entry.
type Rule struct {
	Type OpType `json:"type"`
	Pattern string `json:"pattern"`
	Probability float64 `json:"probability"`
}

// LatencyRange bounds the uniformly sampled injected latency.
type LatencyRange struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
}

// Config configures a new Engine.
type Config struct {
	Enabled bool `json:"enabled"`
	BaseFailureRate float64 `json:"base_failure_rate"`
	Latency LatencyRange `json:"latency"`
	Rules []Rule `json:"rules,omitempty"`
}

// Known injected-event names.
const (
	EventDiskFail = "disk_fail"
	EventNetworkPartition = "network_partition"
	EventSlowIO = "slow_io"
	EventDiskFull = "disk_full"
)

// Engine owns chaos configuration, active injected events, and its own
// RNG lock.
//
// Open question resolution: when multiple rules match the same
// operation, this engine applies first-match-wins in rule-list order.
// The source left the ordering unspecified; first-match is chosen for
// predictability — callers that want priority order rules by
// specificity themselves.
type Engine struct {
	mu sync.Mutex
	rand *rand.Rand

	enabled bool
	baseFailureRate float64
	latency LatencyRange
	rules []Rule
	activeEvents map[string]bool
}

// New creates an Engine. seed controls the RNG; callers needing
// deterministic chaos in tests should pass a fixed seed.
func New(config Config, seed int64) *Engine {
	return &Engine{
		rand: rand.New(rand.NewSource(seed)),
		enabled: config.Enabled,
		baseFailureRate: config.BaseFailureRate,
		latency: config.Latency,
		rules: config.Rules,
		activeEvents: make(map[string]bool),
	}
}

// SetEnabled toggles the engine globally.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

// InjectEvent activates a named chaos event (e.g. "disk_fail").
func (e *Engine) InjectEvent(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activeEvents[name] = true
}

// ClearEvent deactivates a named chaos event.
func (e *Engine) ClearEvent(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.activeEvents, name)
}

// Snapshot is the exportable state of an Engine: its config plus
// whichever named events are currently forced active.
type Snapshot struct {
	Config Config `json:"config"`
	ActiveEvents []string `json:"active_events,omitempty"`
}

// Snapshot captures the engine's full state for world snapshot/restore.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	events := make([]string, 0, len(e.activeEvents))
	for name := range e.activeEvents {
		events = append(events, name)
	}
	return Snapshot{
		Config: Config{
			Enabled: e.enabled,
			BaseFailureRate: e.baseFailureRate,
			Latency: e.latency,
			Rules: append([]Rule(nil), e.rules...),
		},
		ActiveEvents: events,
	}
}

// Restore rebuilds an Engine from a previously captured Snapshot. seed
// controls the restored engine's RNG just as it does for New.
func Restore(snapshot Snapshot, seed int64) *Engine {
	e := New(snapshot.Config, seed)
	for _, name := range snapshot.ActiveEvents {
		e.InjectEvent(name)
	}
	return e
}

// Decision is the outcome of one Evaluate call.
type Decision struct {
	Fail bool
	Latency time.Duration
}

// eventForType maps an operation type to the active-event name that
// forces a failure for it outright.
func eventForType(opType OpType) string {
	switch opType {
	case OpDisk:
		return EventDiskFail
	case OpNetwork:
		return EventNetworkPartition
	default:
		return ""
	}
}

// Evaluate rolls chaos for one operation against path: a forced event
// check, an active slow-io/disk-full event check, a per-rule
// probability roll, and finally the base failure rate.
func (e *Engine) Evaluate(opType OpType, path string) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return Decision{}
	}

	if name := eventForType(opType); name != "" && e.activeEvents[name] {
		return Decision{Fail: true}
	}
	if e.activeEvents[EventSlowIO] || e.activeEvents[EventDiskFull] {
		if e.activeEvents[EventDiskFull] && opType == OpDisk {
			return Decision{Fail: true}
		}
		return Decision{Latency: e.sampleLatency()}
	}

	for _, rule := range e.rules {
		if rule.Type != opType {
			continue
		}
		if !glob.MatchCached(rule.Pattern, path) {
			continue
		}
		if e.rand.Float64() < rule.Probability {
			return Decision{Fail: true}
		}
		break // first match wins, whether or not it rolled a failure
	}

	if e.rand.Float64() < e.baseFailureRate {
		return Decision{Fail: true}
	}

	return Decision{Latency: e.sampleLatency()}
}

func (e *Engine) sampleLatency() time.Duration {
	if e.latency.Max <= e.latency.Min {
		return e.latency.Min
	}
	span := int64(e.latency.Max - e.latency.Min)
	return e.latency.Min + time.Duration(e.rand.Int63n(span))
}
