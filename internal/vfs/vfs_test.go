// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"testing"
	"time"

	"github.com/AnujJha88/Clove/lib/clock"
)

func newTestFS(config Config) *FS {
	return New(clock.Fake(time.Unix(0, 0)), config)
}

func TestReadInitialFile(t *testing.T) {
	fs := newTestFS(Config{InitialFiles: map[string]InitialFile{"/data/x": {Content: "hello"}}})
	content, ok := fs.Read("/data/x")
	if !ok || string(content) != "hello" {
		t.Fatalf("Read: content=%q ok=%v", content, ok)
	}
}

func TestReadMissNeverFallsThrough(t *testing.T) {
	fs := newTestFS(Config{})
	if _, ok := fs.Read("/nope"); ok {
		t.Fatal("expected miss for unknown path")
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	fs := newTestFS(Config{InitialFiles: map[string]InitialFile{"/data/x": {Content: "hello"}}})
	if err := fs.Write("/data/x", []byte("bye")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	content, _ := fs.Read("/data/x")
	if string(content) != "bye" {
		t.Fatalf("expected updated content, got %q", content)
	}
}

func TestWriteRejectsReadOnlyPattern(t *testing.T) {
	fs := newTestFS(Config{ReadonlyPatterns: []string{"/etc/**"}})
	if err := fs.Write("/etc/passwd", []byte("x")); err == nil {
		t.Fatal("expected write to readonly pattern to fail")
	}
}

func TestWriteRejectsPathOutsideWritablePatterns(t *testing.T) {
	fs := newTestFS(Config{WritablePatterns: []string{"/tmp/**"}})
	if err := fs.Write("/etc/passwd", []byte("x")); err == nil {
		t.Fatal("expected write outside writable patterns to fail")
	}
	if err := fs.Write("/tmp/scratch", []byte("x")); err != nil {
		t.Fatalf("expected write inside writable pattern to succeed: %v", err)
	}
}

func TestWriteRejectsExistingReadOnlyFile(t *testing.T) {
	fs := newTestFS(Config{InitialFiles: map[string]InitialFile{"/ro": {Content: "x", Mode: ModeReadOnly}}})
	if err := fs.Write("/ro", []byte("y")); err == nil {
		t.Fatal("expected write to existing read-only file to fail")
	}
}

func TestInterceptsDefaultsToEverythingWhenFilesConfigured(t *testing.T) {
	fs := newTestFS(Config{InitialFiles: map[string]InitialFile{"/data/x": {Content: "hello"}}})
	if !fs.Intercepts("/data/x") {
		t.Fatal("expected default intercept pattern to match any path")
	}
}

func TestInterceptsRespectsExplicitPatterns(t *testing.T) {
	fs := newTestFS(Config{InterceptPatterns: []string{"/data/**"}})
	if !fs.Intercepts("/data/x") {
		t.Fatal("expected /data/** to intercept /data/x")
	}
	if fs.Intercepts("/other/x") {
		t.Fatal("expected /data/** to not intercept /other/x")
	}
}

func TestNormalizeCollapsesDotSegments(t *testing.T) {
	if got := Normalize("data/../data/x"); got != "/data/x" {
		t.Fatalf("Normalize: got %q", got)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	fs := newTestFS(Config{InitialFiles: map[string]InitialFile{"/data/x": {Content: "hello"}}})
	snap := fs.Snapshot()

	restored := Restore(clock.Fake(time.Unix(0, 0)), snap)
	content, ok := restored.Read("/data/x")
	if !ok || string(content) != "hello" {
		t.Fatalf("restored Read: content=%q ok=%v", content, ok)
	}
}
