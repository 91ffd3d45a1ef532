// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

package kernel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	ferrors "go.pvefw.dev/pvefw/internal/errors"
)

// LinuxAdapter drives the real iptables/iptables-save/iptables-restore
// binaries via os/exec. It holds no state of its own beyond the
// binary paths, matching the teacher's thin-exec-wrapper style.
type LinuxAdapter struct {
	IptablesPath        string
	IptablesSavePath    string
	IptablesRestorePath string
}

// NewLinuxAdapter returns an adapter using the binaries found on PATH.
func NewLinuxAdapter() *LinuxAdapter {
	return &LinuxAdapter{
		IptablesPath:        "iptables",
		IptablesSavePath:    "iptables-save",
		IptablesRestorePath: "iptables-restore",
	}
}

func (a *LinuxAdapter) GetChains(ctx context.Context) (map[string]string, error) {
	cmd := exec.CommandContext(ctx, a.IptablesSavePath, "-t", "filter")
	out, err := cmd.Output()
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindApply, "iptables-save failed")
	}
	return ParseSave(string(out)), nil
}

func (a *LinuxAdapter) RuleExists(ctx context.Context, ruleArgs []string) (bool, error) {
	argv := append([]string{"-t", "filter", "-C"}, ruleArgs...)
	cmd := exec.CommandContext(ctx, a.IptablesPath, argv...)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, ferrors.Wrap(err, ferrors.KindApply, "iptables -C failed")
}

func (a *LinuxAdapter) InsertJump(ctx context.Context, builtinChain, target string) error {
	cmd := exec.CommandContext(ctx, a.IptablesPath, "-t", "filter", "-I", builtinChain, "1", "-j", target)
	if err := cmd.Run(); err != nil {
		return ferrors.Wrap(err, ferrors.KindApply, fmt.Sprintf("inserting jump %s -> %s", builtinChain, target))
	}
	return nil
}

func (a *LinuxAdapter) Apply(ctx context.Context, script string) error {
	cmd := exec.CommandContext(ctx, a.IptablesRestorePath, "-n")
	cmd.Stdin = bytes.NewBufferString(script)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return ferrors.Wrap(err, ferrors.KindApply, fmt.Sprintf("iptables-restore -n failed: %s", stderr.String()))
	}
	return nil
}
