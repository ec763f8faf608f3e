// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox isolates an agent process using Linux namespaces and
// a cgroup v2 control group, falling back to a plain fork/exec when
// the host lacks the required capabilities or cgroup mount.
package sandbox

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// cgroupRoot is the well-known cgroup v2 mount point.
const cgroupRoot = "/sys/fs/cgroup"

// groupParent is the parent directory under which every agent's
// control group is created, named "clove/<name>_<id>".
const groupParent = "clove"

// Limits mirrors an agent's configured resource caps. Zero means
// "no limit".
type Limits struct {
	MemoryBytes int64
	CPUQuotaUS int64
	CPUPeriodUS int64
	MaxPIDs int64
}

// HasLimits reports whether any cap is configured.
func (l Limits) HasLimits() bool {
	return l.MemoryBytes > 0 || l.CPUQuotaUS > 0 || l.MaxPIDs > 0
}

// warnOnce ensures the missing-capability fallback warning is logged a
// single time per kernel process, not once per spawned agent.
var warnOnce sync.Once

// Group is a created cgroup v2 directory plus the flag recording
// whether isolation is actually active for the process placed in it.
type Group struct {
	Path string
	Isolated bool
}

// Available reports whether the host exposes a cgroup v2 mount: the
// cgroup root is a directory holding a cgroup.controllers file. It does
// not check permission to create subdirectories under it.
func Available() bool {
	info, err := os.Stat(cgroupRoot)
	if err != nil || !info.IsDir() {
		return false
	}
	if _, err := os.Stat(filepath.Join(cgroupRoot, "cgroup.controllers")); err != nil {
		return false
	}
	return true
}

// Setup creates a fresh control group for name/id, applies limits, and
// returns the group plus a *syscall.SysProcAttr pre-configured for
// namespace isolation. When the host lacks cgroup v2 or permission to
// create the group, it falls back to a plain process group with a
// one-time logged warning
func Setup(logger *slog.Logger, name string, id uint32, limits Limits, networkNamespace bool) (*Group, *syscall.SysProcAttr, error) {
	if !Available() {
		warnOnce.Do(func() {
			logger.Warn("cgroup v2 unavailable, falling back to unisolated fork/exec")
		})
		return &Group{Isolated: false}, &syscall.SysProcAttr{Setpgid: true}, nil
	}

	groupPath := filepath.Join(cgroupRoot, groupParent, fmt.Sprintf("%s_%d", name, id))
	if err := os.MkdirAll(groupPath, 0755); err != nil {
		warnOnce.Do(func() {
			logger.Warn("failed to create cgroup, falling back to unisolated fork/exec", "error", err)
		})
		return &Group{Isolated: false}, &syscall.SysProcAttr{Setpgid: true}, nil
	}

	if err := applyLimits(groupPath, limits); err != nil {
		return nil, nil, fmt.Errorf("sandbox: apply resource limits: %w", err)
	}

	cloneFlags := uintptr(unix.CLONE_NEWPID | unix.CLONE_NEWNS | unix.CLONE_NEWUTS)
	if networkNamespace {
		cloneFlags |= unix.CLONE_NEWNET
	}

	attr := &syscall.SysProcAttr{
		Setpgid: true,
		Cloneflags: cloneFlags,
		// UseCgroupFD places the child directly into groupPath at
		// clone time, avoiding a TOCTOU window where the child could
		// run briefly outside the group.
		UseCgroupFD: true,
	}

	fd, err := unix.Open(groupPath, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("sandbox: open cgroup dir: %w", err)
	}
	attr.CgroupFD = fd

	return &Group{Path: groupPath, Isolated: true}, attr, nil
}

// applyLimits writes the configured caps into the cgroup's controller
// files. Missing/optional limits (zero value) are left at the
// controller's default.
func applyLimits(groupPath string, limits Limits) error {
	if limits.MemoryBytes > 0 {
		if err := writeControllerFile(groupPath, "memory.max", strconv.FormatInt(limits.MemoryBytes, 10)); err != nil {
			return err
		}
	}
	if limits.CPUQuotaUS > 0 && limits.CPUPeriodUS > 0 {
		value := fmt.Sprintf("%d %d", limits.CPUQuotaUS, limits.CPUPeriodUS)
		if err := writeControllerFile(groupPath, "cpu.max", value); err != nil {
			return err
		}
	}
	if limits.MaxPIDs > 0 {
		if err := writeControllerFile(groupPath, "pids.max", strconv.FormatInt(limits.MaxPIDs, 10)); err != nil {
			return err
		}
	}
	return nil
}

func writeControllerFile(groupPath, file, value string) error {
	path := filepath.Join(groupPath, file)
	if err := os.WriteFile(path, []byte(value), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Teardown removes an isolated group's cgroup directory. A no-op for
// unisolated groups. Callers invoke this once the child has exited;
// cgroup v2 refuses rmdir while a process remains a member.
func (g *Group) Teardown() error {
	if !g.Isolated || g.Path == "" {
		return nil
	}
	if err := os.Remove(g.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("sandbox: remove cgroup: %w", err)
	}
	return nil
}

// MemoryUsageBytes reads the current memory usage from the isolated
// group's accounting file.
func (g *Group) MemoryUsageBytes() (int64, error) {
	if !g.Isolated {
		return 0, fmt.Errorf("sandbox: group is not isolated")
	}
	data, err := os.ReadFile(filepath.Join(g.Path, "memory.current"))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(trimNewline(data)), 10, 64)
}

// PIDCount reads the current number of processes in the isolated
// group.
func (g *Group) PIDCount() (int64, error) {
	if !g.Isolated {
		return 0, fmt.Errorf("sandbox: group is not isolated")
	}
	data, err := os.ReadFile(filepath.Join(g.Path, "pids.current"))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(trimNewline(data)), 10, 64)
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

// BuildCommand constructs the exec.Cmd for the agent script using the
// given interpreter, applying the SysProcAttr produced by Setup.
func BuildCommand(interpreter, scriptPath string, args []string, attr *syscall.SysProcAttr) *exec.Cmd {
	fullArgs := append([]string{scriptPath}, args...)
	cmd := exec.Command(interpreter, fullArgs...)
	cmd.SysProcAttr = attr
	return cmd
}
