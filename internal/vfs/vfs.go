// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package vfs implements the per-world virtual filesystem: an
// in-memory file tree with glob-based readonly, writable, and
// intercept rules.
package vfs

import (
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/AnujJha88/Clove/lib/clock"
	"github.com/AnujJha88/Clove/lib/glob"
)

// Mode is a virtual file's access mode.
type Mode string

const (
	ModeReadOnly Mode = "read-only"
	ModeReadWrite Mode = "read-write"
)

// File is one virtual file.
type File struct {
	Content []byte `json:"content"`
	Mode Mode `json:"mode"`
	Created time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// Config seeds and constrains a new filesystem.
type Config struct {
	InitialFiles map[string]InitialFile
	ReadonlyPatterns []string
	WritablePatterns []string
	InterceptPatterns []string
}

// InitialFile seeds one path at construction time.
type InitialFile struct {
	Content string
	Mode Mode
}

// FS is one world's virtual filesystem.
type FS struct {
	mu sync.RWMutex
	clock clock.Clock

	files map[string]*File
	readonly []string
	writable []string
	intercept []string

	readCount int64
	writeCount int64
}

// New builds an FS from config, seeding InitialFiles.
func New(clk clock.Clock, config Config) *FS {
	fs := &FS{
		clock: clk,
		files: make(map[string]*File),
		readonly: config.ReadonlyPatterns,
		writable: config.WritablePatterns,
		intercept: config.InterceptPatterns,
	}

	if len(fs.intercept) == 0 && (len(config.InitialFiles) > 0 || len(fs.readonly) > 0 || len(fs.writable) > 0) {
		fs.intercept = []string{"/**"}
	}

	now := clk.Now()
	for p, f := range config.InitialFiles {
		mode := f.Mode
		if mode == "" {
			mode = ModeReadWrite
		}
		fs.files[Normalize(p)] = &File{
			Content: []byte(f.Content),
			Mode: mode,
			Created: now,
			Modified: now,
		}
	}
	return fs
}

// Normalize collapses "." and ".." components and guarantees a
// leading slash, matching path key rule.
func Normalize(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// Intercepts reports whether p falls under one of this filesystem's
// intercept patterns — i.e. whether syscalls against it should be
// served virtually instead of passed through to the host.
func (fs *FS) Intercepts(p string) bool {
	p = Normalize(p)
	for _, pattern := range fs.intercept {
		if glob.MatchCached(pattern, p) {
			return true
		}
	}
	return false
}

// Read returns the content of path p, incrementing the read counter.
// A miss never falls through to the host filesystem.
func (fs *FS) Read(p string) ([]byte, bool) {
	p = Normalize(p)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.readCount++

	f, ok := fs.files[p]
	if !ok {
		return nil, false
	}
	return f.Content, true
}

// Write upserts the content at path p, subject to readonly/writable
// pattern checks.
func (fs *FS) Write(p string, content []byte) error {
	p = Normalize(p)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.writeCount++

	existing, exists := fs.files[p]
	if exists && existing.Mode == ModeReadOnly {
		return fmt.Errorf("vfs: %s is read-only", p)
	}
	for _, pattern := range fs.readonly {
		if glob.MatchCached(pattern, p) {
			return fmt.Errorf("vfs: %s matches a read-only pattern", p)
		}
	}
	if !exists && len(fs.writable) > 0 {
		allowed := false
		for _, pattern := range fs.writable {
			if glob.MatchCached(pattern, p) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("vfs: %s does not match any writable pattern", p)
		}
	}

	now := fs.clock.Now()
	if exists {
		existing.Content = content
		existing.Modified = now
		return nil
	}
	fs.files[p] = &File{Content: content, Mode: ModeReadWrite, Created: now, Modified: now}
	return nil
}

// Counters returns the read/write counters accumulated so far.
func (fs *FS) Counters() (reads, writes int64) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.readCount, fs.writeCount
}

// Snapshot is the serializable form of an FS, used by world
// snapshot/restore.
type Snapshot struct {
	Files map[string]*File `json:"files"`
	Readonly []string `json:"readonly_patterns"`
	Writable []string `json:"writable_patterns"`
	Intercept []string `json:"intercept_patterns"`
}

// Snapshot captures the current file tree and pattern configuration.
func (fs *FS) Snapshot() Snapshot {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	files := make(map[string]*File, len(fs.files))
	for p, f := range fs.files {
		copyOfFile := *f
		files[p] = &copyOfFile
	}
	return Snapshot{
		Files: files,
		Readonly: append([]string{}, fs.readonly...),
		Writable: append([]string{}, fs.writable...),
		Intercept: append([]string{}, fs.intercept...),
	}
}

// Restore rebuilds an FS from a previously captured Snapshot.
func Restore(clk clock.Clock, snap Snapshot) *FS {
	fs := &FS{
		clock: clk,
		files: make(map[string]*File, len(snap.Files)),
		readonly: snap.Readonly,
		writable: snap.Writable,
		intercept: snap.Intercept,
	}
	for p, f := range snap.Files {
		copyOfFile := *f
		fs.files[p] = &copyOfFile
	}
	return fs
}
