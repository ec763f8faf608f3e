// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package agentproc

import (
	"os/exec"
	"testing"
	"time"
)

func TestStartRunWaitCapturesCleanExit(t *testing.T) {
	p := New(exec.Command("true"), nil)
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p.Wait()

	if p.State() != StateStopped {
		t.Fatalf("expected Stopped after clean exit, got %s", p.State())
	}
	if p.ExitCode() != 0 {
		t.Fatalf("expected exit code 0, got %d", p.ExitCode())
	}
}

func TestWaitCapturesNonZeroExitAsFailed(t *testing.T) {
	p := New(exec.Command("false"), nil)
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p.Wait()

	if p.State() != StateFailed {
		t.Fatalf("expected Failed after non-zero exit, got %s", p.State())
	}
	if p.ExitCode() == 0 {
		t.Fatal("expected non-zero exit code")
	}
}

func TestStopGracefulSendsTermThenWaits(t *testing.T) {
	p := New(exec.Command("sleep", "30"), nil)
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()

	if err := p.Stop(true); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("process did not exit after graceful stop")
	}
	if p.IsRunning() {
		t.Fatal("expected process to no longer be running")
	}
}

func TestPauseResumeRequireRunningState(t *testing.T) {
	p := New(exec.Command("sleep", "30"), nil)
	if err := p.Pause(); err == nil {
		t.Fatal("expected Pause to fail before Start")
	}

	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(false)

	if err := p.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if p.State() != StatePaused {
		t.Fatalf("expected Paused, got %s", p.State())
	}
	if err := p.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if p.State() != StateRunning {
		t.Fatalf("expected Running after Resume, got %s", p.State())
	}
}

func TestMetricsSnapshotRequiresStartedProcess(t *testing.T) {
	p := New(exec.Command("sleep", "1"), nil)
	if _, err := p.MetricsSnapshot(); err == nil {
		t.Fatal("expected error before process is started")
	}
}

func TestPIDZeroBeforeStart(t *testing.T) {
	p := New(exec.Command("sleep", "1"), nil)
	if p.PID() != 0 {
		t.Fatalf("expected PID 0 before start, got %d", p.PID())
	}
}
