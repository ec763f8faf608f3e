// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package permissions

import "testing"

func TestCanReadPathRespectsAllowList(t *testing.T) {
	p := Permissions{Read: true, AllowedRead: []string{"/workspace"}}
	if !p.CanReadPath("/workspace/file.txt") {
		t.Error("expected read allowed under /workspace")
	}
	if p.CanReadPath("/etc/passwd") {
		t.Error("expected read denied outside allow-list")
	}
}

func TestCanReadPathEmptyAllowListMeansAll(t *testing.T) {
	p := Permissions{Read: true}
	if !p.CanReadPath("/anywhere") {
		t.Error("expected empty allow-list to permit all reads")
	}
}

func TestBlockedTakesPrecedence(t *testing.T) {
	p := Permissions{Read: true, Blocked: []string{"/workspace/secrets"}}
	if p.CanReadPath("/workspace/secrets/key.pem") {
		t.Error("expected blocked path to be denied even with empty allow-list")
	}
}

func TestCanExecCommandLists(t *testing.T) {
	p := Permissions{Exec: true, AllowedCommands: []string{"git", "ls"}}
	if !p.CanExec("git status") {
		t.Error("expected git to be allowed")
	}
	if p.CanExec("rm -rf /") {
		t.Error("expected rm to be denied, not in allow-list")
	}
}

func TestCanExecBlockedOverridesAllowed(t *testing.T) {
	p := Permissions{Exec: true, AllowedCommands: []string{"sudo"}, BlockedCommands: []string{"sudo"}}
	if p.CanExec("sudo ls") {
		t.Error("expected blocked to take precedence over allowed")
	}
}

func TestCanNetworkDomainGlob(t *testing.T) {
	p := Permissions{Network: true, AllowedDomains: []string{"*.example.com"}}
	if !p.CanNetwork("https://api.example.com/v1") {
		t.Error("expected api.example.com to match *.example.com")
	}
	if p.CanNetwork("https://evil.com") {
		t.Error("expected evil.com to be denied")
	}
	if p.CanNetwork("https://sub.api.example.com") {
		t.Error("expected sub.api.example.com NOT to match single-label glob *.example.com")
	}
}

func TestAuthorizeSelfAlwaysAllowed(t *testing.T) {
	if err := Authorize(5, Permissions{}, 5); err != nil {
		t.Errorf("expected self-modification to be allowed, got %v", err)
	}
}

func TestAuthorizeRequiresSpawnForOthers(t *testing.T) {
	if err := Authorize(5, Permissions{}, 6); err == nil {
		t.Error("expected error without spawn capability")
	}
	if err := Authorize(5, Permissions{Spawn: true}, 6); err != nil {
		t.Errorf("expected spawn capability to allow target modification, got %v", err)
	}
}

func TestStoreCreatesStandardPresetOnFirstAccess(t *testing.T) {
	store := NewStore()
	p := store.Get(42)
	if !p.Read || !p.Write || !p.Exec {
		t.Errorf("expected standard preset capabilities, got %+v", p)
	}
}

func TestStoreRemovePurgesEntry(t *testing.T) {
	store := NewStore()
	store.Set(1, Resolve(PresetUnrestricted))
	store.Remove(1)
	// Removed entries re-create as standard on next access.
	p := store.Get(1)
	if p.MaxMemoryBytes != Resolve(PresetStandard).MaxMemoryBytes {
		t.Error("expected removed entry to reset to standard preset on re-access")
	}
}
