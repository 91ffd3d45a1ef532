// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package install resolves the well-known filesystem locations this
// tool reads rule files from and writes state to.
package install

import (
	"os"
	"path/filepath"
	"strconv"
)

const envPrefix = "PVEFW"

// Default locations, matching the cluster filesystem layout spec.md
// §6 names.
var (
	DefaultRuleDir    = "/etc/pve/firewall"
	DefaultHostRule   = "/etc/pve/local/host.fw"
	DefaultGroupsFile = "/etc/pve/firewall/groups.fw"
	DefaultLockFile   = "/var/lock/pvefw.lck"
	DefaultRunDir     = "/var/run/pvefw"
	DefaultStateDir   = "/var/lib/pvefw"
	DefaultLogDir     = "/var/log/pvefw"
)

// GetRuleDir returns the per-VM rule directory, checking
// PVEFW_RULE_DIR first.
func GetRuleDir() string {
	if dir := os.Getenv(envPrefix + "_RULE_DIR"); dir != "" {
		return dir
	}
	return DefaultRuleDir
}

// GetHostRuleFile returns the host rule file path.
func GetHostRuleFile() string {
	if path := os.Getenv(envPrefix + "_HOST_RULES"); path != "" {
		return path
	}
	return DefaultHostRule
}

// GetGroupsFile returns the groups rule file path.
func GetGroupsFile() string {
	if path := os.Getenv(envPrefix + "_GROUPS_FILE"); path != "" {
		return path
	}
	return DefaultGroupsFile
}

// GetLockFile returns the advisory lock file path used to serialize
// compile+apply cycles (spec.md §5).
func GetLockFile() string {
	if path := os.Getenv(envPrefix + "_LOCK_FILE"); path != "" {
		return path
	}
	return DefaultLockFile
}

// GetRunDir returns the runtime directory for the PID file.
func GetRunDir() string {
	if dir := os.Getenv(envPrefix + "_RUN_DIR"); dir != "" {
		return dir
	}
	return DefaultRunDir
}

// GetStateDir returns the directory for daemon state. Nothing is
// written there today; the PID file lives in GetRunDir.
func GetStateDir() string {
	if dir := os.Getenv(envPrefix + "_STATE_DIR"); dir != "" {
		return dir
	}
	return DefaultStateDir
}

// GetLogDir returns the daemon log directory.
func GetLogDir() string {
	if dir := os.Getenv(envPrefix + "_LOG_DIR"); dir != "" {
		return dir
	}
	return DefaultLogDir
}

// VMRuleFile returns the path to the rule file for a given VM ID.
func VMRuleFile(vmid int) string {
	return filepath.Join(GetRuleDir(), strconv.Itoa(vmid)+".fw")
}
