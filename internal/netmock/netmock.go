// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package netmock implements the per-world outbound-HTTP mock table:
// a URL-pattern-to-canned-response table with passthrough, mock, and
// record modes.
package netmock

import (
	"fmt"
	"sync"
	"time"

	"github.com/AnujJha88/Clove/lib/glob"
)

// Mode selects how the table is consulted.
type Mode string

const (
	ModePassthrough Mode = "passthrough"
	ModeMock Mode = "mock"
	ModeRecord Mode = "record"
)

// Response is a canned HTTP response.
type Response struct {
	Status int `json:"status"`
	Body string `json:"body"`
	Headers map[string]string `json:"headers,omitempty"`
	Latency time.Duration `json:"latency,omitempty"`
}

// Table is one world's network-mock configuration.
type Table struct {
	mu sync.RWMutex

	mode Mode
	exact map[string]Response
	patterns []patternEntry
	allowedDomains []string
	failUnmatched bool
}

type patternEntry struct {
	pattern string
	response Response
}

// Config configures a new Table.
type Config struct {
	Mode Mode `json:"mode"`
	AllowedDomains []string `json:"allowed_domains,omitempty"`
	FailUnmatched bool `json:"fail_unmatched,omitempty"`
}

// New creates an empty Table.
func New(config Config) *Table {
	mode := config.Mode
	if mode == "" {
		mode = ModePassthrough
	}
	return &Table{
		mode: mode,
		exact: make(map[string]Response),
		allowedDomains: config.AllowedDomains,
		failUnmatched: config.FailUnmatched,
	}
}

// SetExact registers a canned response for an exact URL.
func (t *Table) SetExact(url string, resp Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exact[url] = resp
}

// SetPattern registers a canned response for a glob URL pattern.
func (t *Table) SetPattern(pattern string, resp Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.patterns = append(t.patterns, patternEntry{pattern: pattern, response: resp})
}

// Record captures a response observed for url while in record mode,
// so future lookups return it without a real call.
func (t *Table) Record(url string, resp Response) {
	t.SetExact(url, resp)
}

// PatternEntry is one exported glob-pattern response rule.
type PatternEntry struct {
	Pattern string `json:"pattern"`
	Response Response `json:"response"`
}

// Snapshot is the exportable state of a Table: its config plus every
// registered exact and pattern response.
type Snapshot struct {
	Config Config `json:"config"`
	Exact map[string]Response `json:"exact,omitempty"`
	Patterns []PatternEntry `json:"patterns,omitempty"`
}

// Snapshot captures the table's full state for world snapshot/restore.
func (t *Table) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	exact := make(map[string]Response, len(t.exact))
	for url, resp := range t.exact {
		exact[url] = resp
	}
	patterns := make([]PatternEntry, len(t.patterns))
	for i, p := range t.patterns {
		patterns[i] = PatternEntry{Pattern: p.pattern, Response: p.response}
	}

	return Snapshot{
		Config: Config{
			Mode: t.mode,
			AllowedDomains: append([]string(nil), t.allowedDomains...),
			FailUnmatched: t.failUnmatched,
		},
		Exact: exact,
		Patterns: patterns,
	}
}

// Restore rebuilds a Table from a previously captured Snapshot.
func Restore(snapshot Snapshot) *Table {
	t := New(snapshot.Config)
	for url, resp := range snapshot.Exact {
		t.SetExact(url, resp)
	}
	for _, p := range snapshot.Patterns {
		t.SetPattern(p.Pattern, p.Response)
	}
	return t
}

// Mode returns the table's current mode.
func (t *Table) Mode() Mode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

// ErrPassthrough signals the caller should perform the real HTTP call.
var ErrPassthrough = fmt.Errorf("netmock: passthrough")

// ErrUnmatched signals that mock mode found no entry and the host is not
// an allowed domain. With fail_unmatched set, Lookup also returns a 503
// Response alongside it.
var ErrUnmatched = fmt.Errorf("netmock: unmatched url")

// Lookup resolves url against the table per the active mode:
// passthrough never intercepts; mock always consults the table,
// falling through only for allowed domains; record consults the
// table and signals passthrough (for the caller to Record) on miss.
func (t *Table) Lookup(url, host string) (Response, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.mode == ModePassthrough {
		return Response{}, ErrPassthrough
	}

	if resp, ok := t.exact[url]; ok {
		return resp, nil
	}
	for _, entry := range t.patterns {
		if glob.MatchCached(entry.pattern, url) {
			return entry.response, nil
		}
	}

	if t.mode == ModeRecord {
		return Response{}, ErrPassthrough
	}

	// mock mode miss
	for _, domain := range t.allowedDomains {
		if glob.MatchCached(domain, host) {
			return Response{}, ErrPassthrough
		}
	}
	if t.failUnmatched {
		return Response{Status: 503, Body: "no matching mock response"}, ErrUnmatched
	}
	return Response{}, ErrUnmatched
}
