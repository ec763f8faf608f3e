// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package glob implements the path/URL/command glob dialect used across
// the permission engine, the virtual filesystem, and the network mock:
// '*' matches within one path segment, '**' matches across segments, and
// '?' matches exactly one non-separator character. Patterns are compiled
// to regular expressions once and reused.
package glob

import (
	"regexp"
	"strings"
	"sync"
)

// Matcher is a compiled glob pattern.
type Matcher struct {
	pattern string
	re      *regexp.Regexp
}

// Compile builds a Matcher for pattern. The separator is '/' — '*' stops
// at a '/', '**' does not, and '?' never matches '/'.
func Compile(pattern string) (*Matcher, error) {
	re, err := regexp.Compile("^" + translate(pattern) + "$")
	if err != nil {
		return nil, err
	}
	return &Matcher{pattern: pattern, re: re}, nil
}

// MustCompile is Compile, panicking on error. Intended for static patterns.
func MustCompile(pattern string) *Matcher {
	m, err := Compile(pattern)
	if err != nil {
		panic("glob: invalid pattern " + pattern + ": " + err.Error())
	}
	return m
}

// Match reports whether s matches the compiled pattern.
func (m *Matcher) Match(s string) bool { return m.re.MatchString(s) }

// String returns the original pattern text.
func (m *Matcher) String() string { return m.pattern }

// Match compiles pattern and matches it against s in one call. Prefer
// Compile when the same pattern is checked repeatedly.
func Match(pattern, s string) bool {
	m, err := Compile(pattern)
	if err != nil {
		return false
	}
	return m.Match(s)
}

// translate converts a glob pattern into the body of an anchored regular
// expression, escaping regex metacharacters everywhere except the glob
// wildcards themselves.
func translate(pattern string) string {
	var b strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(runes[i])))
		}
	}
	return b.String()
}

// cache memoizes compiled patterns for hot paths (permission checks run
// on every privileged syscall). Safe for concurrent use.
type cache struct {
	mu    sync.Mutex
	items map[string]*Matcher
}

var globalCache = &cache{items: make(map[string]*Matcher)}

// MatchCached is Match but reuses a process-wide compiled-pattern cache.
// Use for patterns drawn from configuration that are checked repeatedly
// (permission allow/block lists, VFS patterns, network mock patterns).
func MatchCached(pattern, s string) bool {
	globalCache.mu.Lock()
	m, ok := globalCache.items[pattern]
	if !ok {
		var err error
		m, err = Compile(pattern)
		if err != nil {
			globalCache.mu.Unlock()
			return false
		}
		globalCache.items[pattern] = m
	}
	globalCache.mu.Unlock()
	return m.Match(s)
}
