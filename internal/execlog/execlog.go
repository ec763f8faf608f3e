// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package execlog implements the kernel's syscall recording and replay
// facility: a bounded, filterable log of syscall activity
// that can be exported, re-imported, and replayed deterministically
// with side effects suppressed.
package execlog

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/AnujJha88/Clove/lib/clock"
)

// RecordingState tracks whether the logger is currently capturing.
type RecordingState int

const (
	RecordingStopped RecordingState = iota
	RecordingActive
	RecordingPaused
)

// ReplayState is the replay state machine:
// Idle -> Running -> (Paused <-> Running) -> Completed | Error.
type ReplayState int

const (
	ReplayIdle ReplayState = iota
	ReplayRunning
	ReplayPaused
	ReplayCompleted
	ReplayError
)

func (s ReplayState) String() string {
	switch s {
	case ReplayIdle:
		return "idle"
	case ReplayRunning:
		return "running"
	case ReplayPaused:
		return "paused"
	case ReplayCompleted:
		return "completed"
	case ReplayError:
		return "error"
	default:
		return "unknown"
	}
}

// Config controls what gets captured while recording.
type Config struct {
	IncludeThink bool `json:"include_think"`
	IncludeHTTP bool `json:"include_http"`
	IncludeExec bool `json:"include_exec"`
	MaxEntries int `json:"max_entries"`
	FilterAgents []uint32 `json:"filter_agents,omitempty"`
}

// DefaultMaxEntries bounds the log when Config.MaxEntries is unset.
const DefaultMaxEntries = 100000

// Entry is one recorded syscall.
type Entry struct {
	SequenceID uint64 `json:"sequence_id"`
	Timestamp time.Time `json:"timestamp"`
	AgentID uint32 `json:"agent_id"`
	Opcode string `json:"opcode"`
	Request json.RawMessage `json:"request,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

// Progress reports where a replay currently stands.
type Progress struct {
	State ReplayState `json:"state"`
	TotalEntries int `json:"total_entries"`
	CurrentEntry int `json:"current_entry"`
	EntriesReplayed int `json:"entries_replayed"`
	EntriesSkipped int `json:"entries_skipped"`
	LastError string `json:"last_error,omitempty"`
}

// Logger owns the recorded entry log and replay cursor. Safe for
// concurrent use.
type Logger struct {
	mu sync.Mutex
	clock clock.Clock

	config Config
	state RecordingState
	nextSeq uint64
	entries []Entry

	replay Progress
}

// New creates an idle Logger with default configuration.
func New(clk clock.Clock) *Logger {
	return &Logger{
		clock: clk,
		config: Config{MaxEntries: DefaultMaxEntries},
		nextSeq: 1,
		replay: Progress{State: ReplayIdle},
	}
}

// GetConfig returns the current recording configuration.
func (l *Logger) GetConfig() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.config
}

// SetConfig replaces the recording configuration.
func (l *Logger) SetConfig(c Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	l.config = c
}

// StartRecording begins capture. Fails if a replay is in progress.
func (l *Logger) StartRecording() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.replay.State == ReplayRunning || l.replay.State == ReplayPaused {
		return false
	}
	l.state = RecordingActive
	return true
}

// StopRecording halts capture.
func (l *Logger) StopRecording() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = RecordingStopped
	return true
}

// RecordingState reports whether capture is active, paused, or stopped.
func (l *Logger) RecordingState() RecordingState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// EntryCount returns the number of captured entries.
func (l *Logger) EntryCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// LastSequenceID returns the sequence id of the most recently captured
// entry, or 0 if none has been captured yet.
func (l *Logger) LastSequenceID() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return 0
	}
	return l.entries[len(l.entries)-1].SequenceID
}

// included reports whether an opcode category passes the active filter
// configuration.
func (l *Logger) included(agentID uint32, category string) bool {
	if len(l.config.FilterAgents) > 0 {
		found := false
		for _, id := range l.config.FilterAgents {
			if id == agentID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	switch category {
	case "think":
		return l.config.IncludeThink
	case "http":
		return l.config.IncludeHTTP
	case "exec":
		return l.config.IncludeExec
	default:
		return true
	}
}

// Capture appends an entry if recording is active and the entry passes
// the configured filters. category is one of "think", "http", "exec",
// or "" for syscalls not gated by those flags.
func (l *Logger) Capture(agentID uint32, opcode, category string, request, response json.RawMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != RecordingActive {
		return
	}
	if !l.included(agentID, category) {
		return
	}

	entry := Entry{
		SequenceID: l.nextSeq,
		Timestamp: l.clock.Now(),
		AgentID: agentID,
		Opcode: opcode,
		Request: request,
		Response: response,
	}
	l.nextSeq++

	l.entries = append(l.entries, entry)
	if len(l.entries) > l.config.MaxEntries {
		l.entries = l.entries[len(l.entries)-l.config.MaxEntries:]
	}
}

// GetEntries returns up to limit entries with sequence id > sinceID,
// oldest first.
func (l *Logger) GetEntries(sinceID uint64, limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Entry
	for _, e := range l.entries {
		if e.SequenceID <= sinceID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// recording is the on-the-wire export/import shape.
type recording struct {
	Config Config `json:"config"`
	Entries []Entry `json:"entries"`
}

// ExportRecording serializes the captured entries and active config.
func (l *Logger) ExportRecording() json.RawMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	data, _ := json.Marshal(recording{Config: l.config, Entries: l.entries})
	return data
}

// ImportRecording replaces the entry log from previously exported data
// and resets the replay cursor to idle. Fails on malformed input.
func (l *Logger) ImportRecording(data []byte) bool {
	var rec recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = rec.Entries
	if len(rec.Entries) > 0 {
		l.nextSeq = rec.Entries[len(rec.Entries)-1].SequenceID + 1
	}
	l.replay = Progress{State: ReplayIdle, TotalEntries: len(rec.Entries)}
	return true
}

// StartReplay begins replaying the imported (or captured) log from the
// beginning. Fails if a replay is already running or paused.
func (l *Logger) StartReplay() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.replay.State == ReplayRunning || l.replay.State == ReplayPaused {
		return false
	}
	if len(l.entries) == 0 {
		l.replay = Progress{State: ReplayError, LastError: "no entries to replay"}
		return false
	}
	l.replay = Progress{State: ReplayRunning, TotalEntries: len(l.entries)}
	return true
}

// PauseReplay suspends a running replay.
func (l *Logger) PauseReplay() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.replay.State != ReplayRunning {
		return fmt.Errorf("execlog: replay is not running")
	}
	l.replay.State = ReplayPaused
	return nil
}

// ResumeReplay continues a paused replay.
func (l *Logger) ResumeReplay() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.replay.State != ReplayPaused {
		return fmt.Errorf("execlog: replay is not paused")
	}
	l.replay.State = ReplayRunning
	return nil
}

// NextReplayEntry peeks at the entry sitting at the replay cursor
// without consuming it. It returns false whenever there is nothing to
// replay right now: replay is not running, or the cursor has already
// reached the end. Callers match the returned entry's AgentID and
// Opcode against a live frame before calling AdvanceReplay.
func (l *Logger) NextReplayEntry() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.replay.State != ReplayRunning {
		return Entry{}, false
	}
	if l.replay.CurrentEntry >= len(l.entries) {
		return Entry{}, false
	}
	return l.entries[l.replay.CurrentEntry], true
}

// AdvanceReplay consumes the entry NextReplayEntry last returned,
// advancing the cursor and transitioning to ReplayCompleted once the
// log is exhausted. matched records whether the entry was actually
// substituted for a live request (true) or skipped because nothing
// matched it (false).
func (l *Logger) AdvanceReplay(matched bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.replay.State != ReplayRunning {
		return
	}
	if l.replay.CurrentEntry >= len(l.entries) {
		l.replay.State = ReplayCompleted
		return
	}
	l.replay.CurrentEntry++
	if matched {
		l.replay.EntriesReplayed++
	} else {
		l.replay.EntriesSkipped++
		l.replay.LastError = "no matching live request for recorded entry"
	}
	if l.replay.CurrentEntry >= len(l.entries) {
		l.replay.State = ReplayCompleted
	}
}

// GetReplayProgress reports the current replay cursor state.
func (l *Logger) GetReplayProgress() Progress {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replay
}
