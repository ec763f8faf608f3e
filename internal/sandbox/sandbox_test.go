// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "testing"

func TestLimitsHasLimits(t *testing.T) {
	if (Limits{}).HasLimits() {
		t.Error("expected zero-value Limits to report no limits")
	}
	if !(Limits{MemoryBytes: 1024}).HasLimits() {
		t.Error("expected memory cap to count as a limit")
	}
	if !(Limits{MaxPIDs: 32}).HasLimits() {
		t.Error("expected PID cap to count as a limit")
	}
}

func TestTrimNewline(t *testing.T) {
	cases := map[string]string{
		"42\n":   "42",
		"42\r\n": "42",
		"42":     "42",
		"":       "",
	}
	for in, want := range cases {
		if got := string(trimNewline([]byte(in))); got != want {
			t.Errorf("trimNewline(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUnavailableGroupTeardownIsNoOp(t *testing.T) {
	g := &Group{Isolated: false}
	if err := g.Teardown(); err != nil {
		t.Errorf("expected unisolated Teardown to be a no-op, got %v", err)
	}
}

func TestUnisolatedGroupRejectsUsageReads(t *testing.T) {
	g := &Group{Isolated: false}
	if _, err := g.MemoryUsageBytes(); err == nil {
		t.Error("expected error reading memory usage of unisolated group")
	}
	if _, err := g.PIDCount(); err == nil {
		t.Error("expected error reading PID count of unisolated group")
	}
}
