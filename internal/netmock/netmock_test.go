// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package netmock

import "testing"

func TestPassthroughModeNeverIntercepts(t *testing.T) {
	table := New(Config{Mode: ModePassthrough})
	table.SetExact("https://example.com/a", Response{Status: 200})

	_, err := table.Lookup("https://example.com/a", "example.com")
	if err != ErrPassthrough {
		t.Fatalf("expected ErrPassthrough, got %v", err)
	}
}

func TestMockModeExactMatchWins(t *testing.T) {
	table := New(Config{Mode: ModeMock})
	table.SetExact("https://example.com/a", Response{Status: 200, Body: "exact"})
	table.SetPattern("https://example.com/*", Response{Status: 200, Body: "pattern"})

	resp, err := table.Lookup("https://example.com/a", "example.com")
	if err != nil || resp.Body != "exact" {
		t.Fatalf("expected exact match, got resp=%+v err=%v", resp, err)
	}
}

func TestMockModeFallsThroughForAllowedDomain(t *testing.T) {
	table := New(Config{Mode: ModeMock, AllowedDomains: []string{"*.trusted.com"}})
	_, err := table.Lookup("https://api.trusted.com/x", "api.trusted.com")
	if err != ErrPassthrough {
		t.Fatalf("expected ErrPassthrough for allowed domain, got %v", err)
	}
}

func TestMockModeFailUnmatchedReturns503(t *testing.T) {
	table := New(Config{Mode: ModeMock, FailUnmatched: true})
	resp, err := table.Lookup("https://example.com/unknown", "example.com")
	if err != ErrUnmatched || resp.Status != 503 {
		t.Fatalf("expected unmatched 503, got resp=%+v err=%v", resp, err)
	}
}

func TestMockModeUnmatchedWithoutFailFlag(t *testing.T) {
	table := New(Config{Mode: ModeMock})
	_, err := table.Lookup("https://example.com/unknown", "example.com")
	if err != ErrUnmatched {
		t.Fatalf("expected ErrUnmatched, got %v", err)
	}
}

func TestRecordModeMissSignalsPassthrough(t *testing.T) {
	table := New(Config{Mode: ModeRecord})
	_, err := table.Lookup("https://example.com/new", "example.com")
	if err != ErrPassthrough {
		t.Fatalf("expected ErrPassthrough on record-mode miss, got %v", err)
	}

	table.Record("https://example.com/new", Response{Status: 200, Body: "captured"})
	resp, err := table.Lookup("https://example.com/new", "example.com")
	if err != nil || resp.Body != "captured" {
		t.Fatalf("expected recorded response on replay, got resp=%+v err=%v", resp, err)
	}
}
