// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package agentmgr

import (
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AnujJha88/Clove/lib/clock"
)

func testIDSource() func() uint32 {
	var next atomic.Uint32
	next.Store(1)
	return func() uint32 { return next.Add(1) - 1 }
}

type recordingEmitter struct {
	events []string
}

func (r *recordingEmitter) EmitLifecycle(eventType, detail string, agentID uint32) {
	r.events = append(r.events, eventType)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitUntilDead(t *testing.T, m *Manager, name string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		_, stillTracked := m.byName[name]
		m.mu.Unlock()
		if stillTracked {
			m.mu.Lock()
			agent := m.agents[m.byName[name]]
			m.mu.Unlock()
			if agent != nil && !agent.Proc.IsRunning() {
				return
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("process never exited")
}

func TestSpawnKillRoundTrip(t *testing.T) {
	fc := clock.Fake(time.Unix(0, 0))
	emitter := &recordingEmitter{}
	m := New(fc, testLogger(), emitter, testIDSource())

	agent, err := m.Spawn(Config{Name: "w", Interpreter: "sleep", ScriptPath: "30"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer agent.Proc.Stop(true)

	list := m.List()
	if len(list) != 1 || list[0].Name != "w" {
		t.Fatalf("expected one agent named w, got %+v", list)
	}

	resolvedID, killed, err := m.Kill(0, "w")
	if err != nil || !killed {
		t.Fatalf("Kill: killed=%v err=%v", killed, err)
	}
	if resolvedID != agent.ID {
		t.Fatalf("expected resolved id %d, got %d", agent.ID, resolvedID)
	}
	if len(m.List()) != 0 {
		t.Fatal("expected no agents after kill")
	}
}

func TestSpawnRejectsDuplicateName(t *testing.T) {
	fc := clock.Fake(time.Unix(0, 0))
	m := New(fc, testLogger(), &recordingEmitter{}, testIDSource())

	a, err := m.Spawn(Config{Name: "dup", Interpreter: "sleep", ScriptPath: "30"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer a.Proc.Stop(true)

	if _, err := m.Spawn(Config{Name: "dup", Interpreter: "sleep", ScriptPath: "30"}); err == nil {
		t.Fatal("expected duplicate name to fail")
	}
}

func TestRestartBackoffScenario(t *testing.T) {
	fc := clock.Fake(time.Unix(0, 0))
	emitter := &recordingEmitter{}
	m := New(fc, testLogger(), emitter, testIDSource())

	policy := RestartPolicy{
		Kind:           RestartOnFailure,
		MaxRestarts:    3,
		WindowSeconds:  60,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     1000 * time.Millisecond,
		Multiplier:     2,
	}
	config := Config{Name: "crasher", Interpreter: "false", ScriptPath: "", Restart: policy}

	if _, err := m.Spawn(config); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	expectedBackoffs := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}

	for i, backoff := range expectedBackoffs {
		waitUntilDead(t, m, "crasher")
		m.ReapAndRestart()

		if m.PendingRestartCount() != 1 {
			t.Fatalf("iteration %d: expected one pending restart, got %d", i, m.PendingRestartCount())
		}

		fc.Advance(backoff)
		m.ProcessPendingRestarts()

		if m.PendingRestartCount() != 0 {
			t.Fatalf("iteration %d: expected pending restart consumed", i)
		}
	}

	// A fourth failure should escalate rather than schedule another
	// restart.
	waitUntilDead(t, m, "crasher")
	m.ReapAndRestart()

	if m.PendingRestartCount() != 0 {
		t.Fatal("expected escalation, not a fourth pending restart")
	}

	escalations := 0
	restarting := 0
	for _, e := range emitter.events {
		switch e {
		case "AGENT_ESCALATED":
			escalations++
		case "AGENT_RESTARTING":
			restarting++
		}
	}
	if escalations != 1 {
		t.Fatalf("expected exactly one AGENT_ESCALATED, got %d", escalations)
	}
	if restarting != 3 {
		t.Fatalf("expected exactly 3 AGENT_RESTARTING events, got %d", restarting)
	}
}

func TestPauseResumeThroughManager(t *testing.T) {
	fc := clock.Fake(time.Unix(0, 0))
	m := New(fc, testLogger(), &recordingEmitter{}, testIDSource())

	a, err := m.Spawn(Config{Name: "p", Interpreter: "sleep", ScriptPath: "30"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer a.Proc.Stop(true)

	if err := m.Pause(0, "p"); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := m.Resume(0, "p"); err != nil {
		t.Fatalf("Resume: %v", err)
	}
}
