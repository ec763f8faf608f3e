// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package agentmgr owns every agent process: spawning, killing,
// pausing, resuming, listing, and driving the exponential-backoff
// restart protocol on crash.
package agentmgr

import (
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"sync"
	"time"

	"github.com/AnujJha88/Clove/internal/agentproc"
	"github.com/AnujJha88/Clove/internal/sandbox"
	"github.com/AnujJha88/Clove/lib/clock"
)

// RestartKind selects how a failed agent is handled.
type RestartKind string

const (
	RestartNever RestartKind = "never"
	RestartAlways RestartKind = "always"
	RestartOnFailure RestartKind = "on-failure"
)

// RestartPolicy is the triple (kind, window, backoff schedule) from
// AgentConfig.
type RestartPolicy struct {
	Kind RestartKind
	MaxRestarts int
	WindowSeconds int
	InitialBackoff time.Duration
	MaxBackoff time.Duration
	Multiplier float64
}

// Config describes how to spawn one agent (AgentConfig).
type Config struct {
	Name string
	ScriptPath string
	Interpreter string
	SocketPath string
	Sandboxed bool
	NetworkNamespace bool
	Limits sandbox.Limits
	Restart RestartPolicy
	ParentID uint32
}

// restartState tracks one agent's progress through the backoff
// protocol.
type restartState struct {
	restartCount int
	windowStart time.Time
	consecutiveFailures int
	escalated bool
}

// pendingRestart is a scheduled restart attempt awaiting its due time.
type pendingRestart struct {
	name string
	dueAt time.Time
	config Config
}

// Agent is one supervised agent: identity, config, and process handle.
type Agent struct {
	ID uint32
	Name string
	ParentID uint32
	Config Config
	Proc *agentproc.Process
	CreatedAt time.Time
}

// EventEmitter lets the manager publish lifecycle events without
// importing the event bus package directly (emits
// AGENT_RESTARTING / AGENT_ESCALATED).
type EventEmitter interface {
	EmitLifecycle(eventType, detail string, agentID uint32)
}

// Manager owns every agent, keyed by id, plus restart bookkeeping.
type Manager struct {
	mu sync.Mutex

	clock clock.Clock
	logger *slog.Logger
	events EventEmitter
	nextID func() uint32

	agents map[uint32]*Agent
	byName map[string]uint32

	restarts map[string]*restartState
	pending []pendingRestart
}

// New creates an empty Manager. idSource draws the next agent id from
// the same process-wide counter the transport uses to assign ids to
// bare connections, so a spawned agent and a directly-connected client
// can never collide.
func New(clk clock.Clock, logger *slog.Logger, events EventEmitter, idSource func() uint32) *Manager {
	return &Manager{
		clock: clk,
		logger: logger,
		events: events,
		nextID: idSource,
		agents: make(map[uint32]*Agent),
		byName: make(map[string]uint32),
		restarts: make(map[string]*restartState),
	}
}

// Spawn creates and starts an agent process per config, optionally
// under namespace/cgroup isolation.
func (m *Manager) Spawn(config Config) (*Agent, error) {
	m.mu.Lock()
	if config.Name != "" {
		if _, exists := m.byName[config.Name]; exists {
			m.mu.Unlock()
			return nil, fmt.Errorf("agentmgr: name %q already in use", config.Name)
		}
	}
	m.mu.Unlock()
	id := m.nextID()

	var group *sandbox.Group
	var cmd *exec.Cmd

	if config.Sandboxed {
		g, attr, err := sandbox.Setup(m.logger, config.Name, id, config.Limits, config.NetworkNamespace)
		if err != nil {
			return nil, fmt.Errorf("agentmgr: sandbox setup: %w", err)
		}
		group = g
		cmd = sandbox.BuildCommand(config.Interpreter, config.ScriptPath, nil, attr)
	} else {
		cmd = exec.Command(config.Interpreter, config.ScriptPath)
	}

	proc := agentproc.New(cmd, group)
	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("agentmgr: spawn: %w", err)
	}
	go proc.Wait()

	agent := &Agent{
		ID: id,
		Name: config.Name,
		ParentID: config.ParentID,
		Config: config,
		Proc: proc,
		CreatedAt: m.clock.Now(),
	}

	m.mu.Lock()
	m.agents[id] = agent
	if config.Name != "" {
		m.byName[config.Name] = id
	}
	m.mu.Unlock()

	return agent, nil
}

// resolve looks up an agent by id or, if id is 0, by name.
func (m *Manager) resolve(id uint32, name string) (*Agent, bool) {
	if id != 0 {
		a, ok := m.agents[id]
		return a, ok
	}
	resolvedID, ok := m.byName[name]
	if !ok {
		return nil, false
	}
	a, ok := m.agents[resolvedID]
	return a, ok
}

// Kill stops an agent (graceful then forced) and removes its record. It
// returns the resolved agent id so a caller that addressed the agent by
// name can still purge that id's per-agent state.
func (m *Manager) Kill(id uint32, name string) (uint32, bool, error) {
	m.mu.Lock()
	agent, ok := m.resolve(id, name)
	if !ok {
		m.mu.Unlock()
		return 0, false, nil
	}
	resolvedID := agent.ID
	delete(m.agents, agent.ID)
	delete(m.byName, agent.Name)
	delete(m.restarts, agent.Name)
	m.mu.Unlock()

	if err := agent.Proc.Stop(true); err != nil {
		return resolvedID, false, fmt.Errorf("agentmgr: kill: %w", err)
	}
	return resolvedID, true, nil
}

// Pause sends a stop signal to the named/identified agent.
func (m *Manager) Pause(id uint32, name string) error {
	m.mu.Lock()
	agent, ok := m.resolve(id, name)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("agentmgr: agent not found")
	}
	return agent.Proc.Pause()
}

// Resume sends a continue signal to the named/identified agent.
func (m *Manager) Resume(id uint32, name string) error {
	m.mu.Lock()
	agent, ok := m.resolve(id, name)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("agentmgr: agent not found")
	}
	return agent.Proc.Resume()
}

// List returns a snapshot of every currently tracked agent.
func (m *Manager) List() []*Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a)
	}
	return out
}

// Get returns the agent by id.
func (m *Manager) Get(id uint32) (*Agent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	return a, ok
}

// ReapAndRestart scans every tracked agent whose process has exited
// but whose manager record has not yet been reconciled, applying the
// restart policy to each.
func (m *Manager) ReapAndRestart() {
	m.mu.Lock()
	var dead []*Agent
	for _, a := range m.agents {
		if !a.Proc.IsRunning() && a.Proc.State() != agentproc.StateCreated && a.Proc.State() != agentproc.StateStarting {
			dead = append(dead, a)
		}
	}
	m.mu.Unlock()

	for _, agent := range dead {
		m.handleDeath(agent)
	}
}

func (m *Manager) handleDeath(agent *Agent) {
	exitCode := agent.Proc.ExitCode()

	m.mu.Lock()
	delete(m.agents, agent.ID)
	delete(m.byName, agent.Name)
	policy := agent.Config.Restart
	m.mu.Unlock()

	switch policy.Kind {
	case RestartAlways:
		m.scheduleRestart(agent)
	case RestartOnFailure:
		if exitCode != 0 {
			m.scheduleRestart(agent)
		} else {
			m.clearRestartState(agent.Name)
		}
	default: // never, or unset
		m.clearRestartState(agent.Name)
	}
}

func (m *Manager) clearRestartState(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.restarts, name)
}

// scheduleRestart applies the backoff protocol and either queues a
// pending restart or escalates the agent if its restart budget is spent.
func (m *Manager) scheduleRestart(agent *Agent) {
	policy := agent.Config.Restart
	now := m.clock.Now()

	m.mu.Lock()
	state, ok := m.restarts[agent.Name]
	if !ok {
		state = &restartState{windowStart: now}
		m.restarts[agent.Name] = state
	}

	windowDuration := time.Duration(policy.WindowSeconds) * time.Second
	if windowDuration > 0 && now.Sub(state.windowStart) > windowDuration {
		state.restartCount = 0
		state.consecutiveFailures = 0
		state.windowStart = now
		state.escalated = false
	}

	if policy.MaxRestarts > 0 && state.restartCount >= policy.MaxRestarts {
		alreadyEscalated := state.escalated
		state.escalated = true
		m.mu.Unlock()
		if !alreadyEscalated {
			m.events.EmitLifecycle("AGENT_ESCALATED", agent.Name, agent.ID)
		}
		return
	}
	state.escalated = false

	multiplier := policy.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}
	backoff := float64(policy.InitialBackoff) * math.Pow(multiplier, float64(state.consecutiveFailures))
	if policy.MaxBackoff > 0 && time.Duration(backoff) > policy.MaxBackoff {
		backoff = float64(policy.MaxBackoff)
	}

	state.restartCount++
	state.consecutiveFailures++
	dueAt := now.Add(time.Duration(backoff))
	m.pending = append(m.pending, pendingRestart{name: agent.Name, dueAt: dueAt, config: agent.Config})
	m.mu.Unlock()

	m.events.EmitLifecycle("AGENT_RESTARTING", agent.Name, agent.ID)
}

// ProcessPendingRestarts attempts to spawn every due entry in the
// pending-restart queue.
func (m *Manager) ProcessPendingRestarts() {
	now := m.clock.Now()

	m.mu.Lock()
	var due []pendingRestart
	var notYet []pendingRestart
	for _, pr := range m.pending {
		if !pr.dueAt.After(now) {
			due = append(due, pr)
		} else {
			notYet = append(notYet, pr)
		}
	}
	m.pending = notYet
	m.mu.Unlock()

	for _, pr := range due {
		if _, err := m.Spawn(pr.config); err != nil {
			m.logger.Error("pending restart failed to spawn", "name", pr.name, "error", err)
			// Dropped; the next reap cycle observes the failure again
			// only if something new fails. This entry simply vanishes.
		}
	}
}

// PendingRestartCount reports how many restarts are currently queued.
func (m *Manager) PendingRestartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
