// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package world

import (
	"testing"
	"time"

	"github.com/AnujJha88/Clove/internal/vfs"
	"github.com/AnujJha88/Clove/lib/clock"
)

func newTestRegistry() *Registry {
	return New(clock.Fake(time.Unix(0, 0)))
}

func TestCreateJoinLeaveLifecycle(t *testing.T) {
	r := newTestRegistry()
	id, err := r.CreateWorld(Config{Name: "sim"})
	if err != nil {
		t.Fatalf("CreateWorld: %v", err)
	}

	if err := r.Join(1, id); err != nil {
		t.Fatalf("Join: %v", err)
	}
	w, ok := r.WorldOf(1)
	if !ok || w.ID != id {
		t.Fatalf("WorldOf: w=%v ok=%v", w, ok)
	}

	r.Leave(1)
	if _, ok := r.WorldOf(1); ok {
		t.Fatal("expected agent to have left the world")
	}
}

func TestJoinFailsIfAlreadyInAWorld(t *testing.T) {
	r := newTestRegistry()
	id1, _ := r.CreateWorld(Config{Name: "a"})
	id2, _ := r.CreateWorld(Config{Name: "b"})

	if err := r.Join(1, id1); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := r.Join(1, id2); err == nil {
		t.Fatal("expected joining a second world to fail")
	}
}

func TestJoinFailsForUnknownWorld(t *testing.T) {
	r := newTestRegistry()
	if err := r.Join(1, "nope"); err == nil {
		t.Fatal("expected join of unknown world to fail")
	}
}

func TestDestroyFailsWithMembersUnlessForced(t *testing.T) {
	r := newTestRegistry()
	id, _ := r.CreateWorld(Config{Name: "sim"})
	r.Join(1, id)

	if err := r.DestroyWorld(id, false); err == nil {
		t.Fatal("expected destroy without force to fail")
	}
	if err := r.DestroyWorld(id, true); err != nil {
		t.Fatalf("expected forced destroy to succeed: %v", err)
	}
	if _, ok := r.Get(id); ok {
		t.Fatal("expected world to be gone after destroy")
	}
}

func TestVFSInterceptionScenario(t *testing.T) {
	r := newTestRegistry()
	id, err := r.CreateWorld(Config{
		Name: "sim",
		VFS: vfs.Config{
			InitialFiles:      map[string]vfs.InitialFile{"/data/x": {Content: "hello"}},
			InterceptPatterns: []string{"/**"},
		},
	})
	if err != nil {
		t.Fatalf("CreateWorld: %v", err)
	}
	r.Join(1, id)

	w, _ := r.WorldOf(1)
	if !w.VFS.Intercepts("/data/x") {
		t.Fatal("expected /data/x to be intercepted")
	}
	content, ok := w.VFS.Read("/data/x")
	if !ok || string(content) != "hello" {
		t.Fatalf("Read: content=%q ok=%v", content, ok)
	}

	if err := w.VFS.Write("/data/x", []byte("bye")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	content, _ = w.VFS.Read("/data/x")
	if string(content) != "bye" {
		t.Fatalf("expected updated content, got %q", content)
	}

	// A second agent in a different world must not see the first
	// world's VFS.
	id2, _ := r.CreateWorld(Config{Name: "other"})
	r.Join(2, id2)
	w2, _ := r.WorldOf(2)
	if _, ok := w2.VFS.Read("/data/x"); ok {
		t.Fatal("expected second world's VFS to be independent")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	r := newTestRegistry()
	id, _ := r.CreateWorld(Config{
		Name: "sim",
		VFS:  vfs.Config{InitialFiles: map[string]vfs.InitialFile{"/data/x": {Content: "hello"}}},
	})
	r.Join(1, id)

	snap, err := r.Snapshot(id)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	newID, err := r.Restore(snap, "")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	restored, ok := r.Get(newID)
	if !ok {
		t.Fatal("expected restored world to be registered")
	}
	content, ok := restored.VFS.Read("/data/x")
	if !ok || string(content) != "hello" {
		t.Fatalf("restored VFS Read: content=%q ok=%v", content, ok)
	}
	members := restored.Members()
	if len(members) != 1 || members[0] != 1 {
		t.Fatalf("expected agents list preserved, got %v", members)
	}
}
