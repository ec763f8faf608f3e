// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package execlog

import (
	"testing"
	"time"

	"github.com/AnujJha88/Clove/lib/clock"
)

func newTestLogger() *Logger {
	return New(clock.Fake(time.Unix(0, 0)))
}

func TestCaptureRequiresActiveRecording(t *testing.T) {
	l := newTestLogger()
	l.Capture(1, "READ", "", nil, nil)
	if l.EntryCount() != 0 {
		t.Fatalf("expected no entries while not recording, got %d", l.EntryCount())
	}

	l.StartRecording()
	l.Capture(1, "READ", "", nil, nil)
	if l.EntryCount() != 1 {
		t.Fatalf("expected 1 entry while recording, got %d", l.EntryCount())
	}
}

func TestCaptureRespectsCategoryFilters(t *testing.T) {
	l := newTestLogger()
	c := l.GetConfig()
	c.IncludeThink = false
	l.SetConfig(c)
	l.StartRecording()

	l.Capture(1, "THINK", "think", nil, nil)
	l.Capture(1, "EXEC", "exec", nil, nil)
	if l.EntryCount() != 0 {
		t.Fatalf("expected think/exec filtered out by default config, got %d", l.EntryCount())
	}
}

func TestCaptureRespectsAgentFilter(t *testing.T) {
	l := newTestLogger()
	c := l.GetConfig()
	c.FilterAgents = []uint32{1}
	l.SetConfig(c)
	l.StartRecording()

	l.Capture(1, "READ", "", nil, nil)
	l.Capture(2, "READ", "", nil, nil)
	if l.EntryCount() != 1 {
		t.Fatalf("expected only agent 1's entry, got %d", l.EntryCount())
	}
}

func TestStopRecordingHaltsCapture(t *testing.T) {
	l := newTestLogger()
	l.StartRecording()
	l.Capture(1, "READ", "", nil, nil)
	l.StopRecording()
	l.Capture(1, "WRITE", "", nil, nil)
	if l.EntryCount() != 1 {
		t.Fatalf("expected capture to stop after StopRecording, got %d entries", l.EntryCount())
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newTestLogger()
	src.StartRecording()
	src.Capture(1, "READ", "", nil, nil)
	src.Capture(1, "WRITE", "", nil, nil)
	data := src.ExportRecording()

	dst := newTestLogger()
	if !dst.ImportRecording(data) {
		t.Fatal("ImportRecording failed")
	}
	if dst.EntryCount() != 2 {
		t.Fatalf("expected 2 imported entries, got %d", dst.EntryCount())
	}
}

func TestImportMalformedDataFails(t *testing.T) {
	l := newTestLogger()
	if l.ImportRecording([]byte("not json")) {
		t.Fatal("expected malformed import to fail")
	}
}

func TestReplayLifecycle(t *testing.T) {
	l := newTestLogger()
	l.StartRecording()
	l.Capture(1, "READ", "", nil, nil)
	l.Capture(1, "WRITE", "", nil, nil)
	l.StopRecording()

	if !l.StartReplay() {
		t.Fatal("StartReplay failed")
	}
	if got := l.GetReplayProgress().State; got != ReplayRunning {
		t.Fatalf("expected running state, got %v", got)
	}

	entry, ok := l.NextReplayEntry()
	if !ok || entry.Opcode != "READ" {
		t.Fatalf("expected first entry to be READ, got %+v ok=%v", entry, ok)
	}
	l.AdvanceReplay(true)

	entry, ok = l.NextReplayEntry()
	if !ok || entry.Opcode != "WRITE" {
		t.Fatalf("expected second entry to be WRITE, got %+v ok=%v", entry, ok)
	}
	l.AdvanceReplay(true)

	if _, ok := l.NextReplayEntry(); ok {
		t.Fatal("expected no entry left after both were advanced")
	}

	progress := l.GetReplayProgress()
	if progress.State != ReplayCompleted || progress.EntriesReplayed != 2 {
		t.Fatalf("expected completed state with 2 replayed, got %+v", progress)
	}
}

func TestAdvanceReplayRecordsSkipOnMismatch(t *testing.T) {
	l := newTestLogger()
	l.StartRecording()
	l.Capture(1, "READ", "", nil, nil)
	l.StopRecording()
	l.StartReplay()

	if _, ok := l.NextReplayEntry(); !ok {
		t.Fatal("expected an entry to replay")
	}
	l.AdvanceReplay(false)

	progress := l.GetReplayProgress()
	if progress.EntriesSkipped != 1 || progress.LastError == "" {
		t.Fatalf("expected skip recorded with last error, got %+v", progress)
	}
}

func TestPauseResumeReplay(t *testing.T) {
	l := newTestLogger()
	l.StartRecording()
	l.Capture(1, "READ", "", nil, nil)
	l.StopRecording()
	l.StartReplay()

	if err := l.PauseReplay(); err != nil {
		t.Fatalf("PauseReplay: %v", err)
	}
	if got := l.GetReplayProgress().State; got != ReplayPaused {
		t.Fatalf("expected paused, got %v", got)
	}
	if err := l.ResumeReplay(); err != nil {
		t.Fatalf("ResumeReplay: %v", err)
	}
	if got := l.GetReplayProgress().State; got != ReplayRunning {
		t.Fatalf("expected running after resume, got %v", got)
	}
}

func TestStartReplayFailsWithNoEntries(t *testing.T) {
	l := newTestLogger()
	if l.StartReplay() {
		t.Fatal("expected StartReplay to fail with no entries")
	}
	if got := l.GetReplayProgress().State; got != ReplayError {
		t.Fatalf("expected error state, got %v", got)
	}
}
