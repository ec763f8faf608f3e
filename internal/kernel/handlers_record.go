// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"context"
	"encoding/json"
	"time"

	"github.com/AnujJha88/Clove/internal/execlog"
	"github.com/AnujJha88/Clove/internal/wire"
)

func (kc *Context) handleRecordStart(ctx context.Context, agentID uint32, payload []byte) []byte {
	if len(payload) > 0 {
		var cfg execlog.Config
		if err := json.Unmarshal(payload, &cfg); err == nil && (cfg.MaxEntries != 0 || len(cfg.FilterAgents) > 0 || cfg.IncludeThink || cfg.IncludeHTTP || cfg.IncludeExec) {
			kc.Exec.SetConfig(cfg)
		}
	}
	if !kc.Exec.StartRecording() {
		return wire.Fail("record_start failed: a replay is in progress")
	}
	return mustJSON(wire.Envelope{Success: true})
}

func (kc *Context) handleRecordStop(ctx context.Context, agentID uint32, payload []byte) []byte {
	kc.Exec.StopRecording()
	return mustJSON(wire.Envelope{Success: true})
}

func (kc *Context) handleRecordStatus(ctx context.Context, agentID uint32, payload []byte) []byte {
	state := kc.Exec.RecordingState()
	data, _ := json.Marshal(struct {
		Success bool `json:"success"`
		State string `json:"state"`
		Entries int `json:"entries"`
	}{true, recordingStateName(state), kc.Exec.EntryCount()})
	return data
}

func recordingStateName(s execlog.RecordingState) string {
	switch s {
	case execlog.RecordingActive:
		return "active"
	case execlog.RecordingPaused:
		return "paused"
	default:
		return "stopped"
	}
}

// replayStepInterval paces the background replay driver so a large log
// doesn't burn a full CPU core stepping through entries instantly.
const replayStepInterval = time.Millisecond

func (kc *Context) handleReplayStart(ctx context.Context, agentID uint32, payload []byte) []byte {
	if !kc.Exec.StartReplay() {
		progress := kc.Exec.GetReplayProgress()
		return wire.Fail("replay_start failed: " + progress.LastError)
	}
	go kc.driveReplay()
	return mustJSON(wire.Envelope{Success: true})
}

// driveReplay resubmits every recorded entry through Dispatch in
// order, one at a time. Dispatch itself recognizes each resubmitted
// frame as the next entry due on the replay cursor and short-circuits
// it with the recorded response instead of running the real handler,
// so no syscall underlying a replayed entry is ever re-executed.
func (kc *Context) driveReplay() {
	for {
		entry, ok := kc.Exec.NextReplayEntry()
		if !ok {
			return
		}

		op, ok := wire.ParseOpcode(entry.Opcode)
		if !ok {
			kc.Logger.Warn("replay: unrecognized opcode in recorded entry", "opcode", entry.Opcode, "sequence_id", entry.SequenceID)
			kc.Exec.AdvanceReplay(false)
			continue
		}

		kc.Dispatch(context.Background(), wire.Frame{AgentID: entry.AgentID, Opcode: op, Payload: []byte(entry.Request)})

		if kc.Exec.GetReplayProgress().State != execlog.ReplayRunning {
			return
		}
		kc.Clock.Sleep(replayStepInterval)
	}
}

func (kc *Context) handleReplayStatus(ctx context.Context, agentID uint32, payload []byte) []byte {
	progress := kc.Exec.GetReplayProgress()
	data, _ := json.Marshal(struct {
		Success bool `json:"success"`
		Status execlog.Progress `json:"status"`
	}{true, progress})
	return data
}
