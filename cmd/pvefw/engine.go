// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.pvefw.dev/pvefw/internal/ctlapi"
	"go.pvefw.dev/pvefw/internal/daemonconfig"
	ferrors "go.pvefw.dev/pvefw/internal/errors"
	"go.pvefw.dev/pvefw/internal/firewall"
	"go.pvefw.dev/pvefw/internal/install"
	"go.pvefw.dev/pvefw/internal/inventory"
	"go.pvefw.dev/pvefw/internal/kernel"
	"go.pvefw.dev/pvefw/internal/lockfile"
	"go.pvefw.dev/pvefw/internal/metrics"
)

// engine owns one compile/reconcile cycle's collaborators and the
// last cycle's outcome, serving both the CLI's "compile"/"status"
// commands and ctlapi's HTTP surface from the same code path (spec.md
// §6: the CLI is a thin wrapper over the core).
type engine struct {
	cfg       *daemonconfig.Config
	inv       inventory.Provider
	reconcile *firewall.Reconciler

	mu     sync.Mutex
	last   ctlapi.Status
	lastAt time.Time
}

func newEngine(cfg *daemonconfig.Config) *engine {
	var adapter kernel.Adapter = kernel.NewLinuxAdapter()
	var inv inventory.Provider = inventory.NewFSProvider(cfg.VMDir)
	inv = inventory.NewNetlinkCrossCheck(inv)

	return &engine{
		cfg:       cfg,
		inv:       inv,
		reconcile: firewall.NewReconciler(adapter),
	}
}

// Compile runs one full parse -> compile -> reconcile cycle under the
// advisory lock (spec.md §5), implementing both ctlapi.Compiler and
// the CLI "compile" command. A dry run takes no lock.
func (e *engine) Compile(dryRun bool) (*ctlapi.Status, error) {
	cycleID := uuid.New().String()
	start := time.Now()

	var result *firewall.CycleResult
	var warnings []firewall.ParseWarning
	var lockErr error
	if dryRun {
		// A dry run never applies, so it never touches kernel state
		// and does not need the advisory lock (spec.md §5 guards
		// mutation, not read-only diffing).
		result, warnings, lockErr = e.runCycleLocked(dryRun)
	} else {
		lockErr = lockfile.WithLock(e.cfg.LockFile, 10*time.Second, func() error {
			metrics.LockWaitSeconds.Observe(time.Since(start).Seconds())
			var err error
			result, warnings, err = e.runCycleLocked(dryRun)
			return err
		})
	}

	duration := time.Since(start)
	metrics.CycleDuration.Observe(duration.Seconds())
	for _, w := range warnings {
		metrics.ParseWarnings.WithLabelValues(w.File).Inc()
	}

	if lockErr != nil {
		outcome := "error"
		if ferrors.HasKind(lockErr, ferrors.KindLockTimeout) {
			outcome = "lock_timeout"
		}
		metrics.CyclesTotal.WithLabelValues(outcome).Inc()
		e.recordStatus(cycleID, nil, lockErr)
		return nil, lockErr
	}

	metrics.CyclesTotal.WithLabelValues("success").Inc()
	metrics.ChainsManaged.Set(float64(len(result.Diff)))
	for _, st := range result.Diff {
		metrics.ChainActions.WithLabelValues(st.Action.String()).Inc()
	}

	status := e.recordStatus(cycleID, result, nil)
	log.Printf("reconciler: cycle %s done in %s, changed=%v", cycleID, duration, result.Changed)
	return status, nil
}

// Status returns the most recently recorded cycle outcome.
func (e *engine) Status() ctlapi.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

func (e *engine) recordStatus(cycleID string, result *firewall.CycleResult, cycleErr error) *ctlapi.Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastAt = time.Now()
	e.last = ctlapi.Status{
		LastCycleTime:   e.lastAt.Format(time.RFC3339),
		RuleDirectories: []string{e.cfg.VMDir, e.cfg.ClusterDir, e.cfg.NodeDir},
	}
	if cycleErr != nil {
		e.last.LastCycleError = fmt.Sprintf("[%s] %v", cycleID, cycleErr)
		return &e.last
	}
	e.last.ChainsManaged = len(result.Diff)
	actions := make(map[string]int)
	for _, st := range result.Diff {
		actions[st.Action.String()]++
	}
	e.last.ChainActions = actions
	return &e.last
}

// runCycleLocked performs the actual parse/compile/reconcile sequence;
// caller must hold the advisory lock unless dryRun is set.
func (e *engine) runCycleLocked(dryRun bool) (*firewall.CycleResult, []firewall.ParseWarning, error) {
	ctx := context.Background()

	vms, err := e.inv.ListVMs(ctx)
	if err != nil {
		return nil, nil, ferrors.Wrap(err, ferrors.KindInventory, "listing VM inventory")
	}

	var allWarnings []firewall.ParseWarning

	vmFiles, warnings := loadVMFiles(e.cfg.VMDir, vms)
	allWarnings = append(allWarnings, warnings...)

	groups, warnings := loadGroupsFile(install.GetGroupsFile())
	allWarnings = append(allWarnings, warnings...)

	host, warnings := loadHostFile(install.GetHostRuleFile())
	allWarnings = append(allWarnings, warnings...)

	for _, w := range allWarnings {
		log.Printf("parser warning: %s", w.String())
	}

	compiler := firewall.NewCompiler(groups, host)
	rs, err := compiler.Compile(vmFiles, vms)
	if err != nil {
		return nil, allWarnings, err
	}

	result, err := e.reconcile.Reconcile(ctx, rs, dryRun)
	if err != nil {
		return nil, allWarnings, err
	}
	return result, allWarnings, nil
}

// services is shared by every parser this process builds, so the OS
// services/protocols tables are read once per process.
var services = firewall.NewServicesDirectory()

func newParser() *firewall.Parser {
	return firewall.NewParser(services, firewall.DefaultMacros)
}

// loadVMFiles reads "<vmid>.fw" for every inventory VM that has one;
// a VM with no rule file compiles to defaults-only chains (spec.md
// §4.4). A file that fails to open is treated as "no rules", not an
// error, matching spec.md §7's inventory-error posture.
func loadVMFiles(vmDir string, vms map[int]inventory.VM) (map[int]*firewall.RuleFile, []firewall.ParseWarning) {
	p := newParser()
	files := make(map[int]*firewall.RuleFile, len(vms))
	var warnings []firewall.ParseWarning

	vmids := make([]int, 0, len(vms))
	for vmid := range vms {
		vmids = append(vmids, vmid)
	}
	sort.Ints(vmids)

	for _, vmid := range vmids {
		path := filepath.Join(vmDir, strconv.Itoa(vmid)+".fw")
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		rf, ws := p.ParseVMFile(path, f)
		f.Close()
		files[vmid] = rf
		warnings = append(warnings, ws...)
	}
	return files, warnings
}

func loadGroupsFile(path string) (*firewall.GroupsFile, []firewall.ParseWarning) {
	f, err := os.Open(path)
	if err != nil {
		return firewall.NewGroupsFile(), nil
	}
	defer f.Close()
	return newParser().ParseGroupsFile(path, f)
}

func loadHostFile(path string) (*firewall.RuleFile, []firewall.ParseWarning) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil
	}
	defer f.Close()
	return newParser().ParseHostFile(path, f)
}

func formatWarnings(warnings []firewall.ParseWarning) string {
	lines := make([]string, len(warnings))
	for i, w := range warnings {
		lines[i] = w.String()
	}
	return strings.Join(lines, "\n")
}
