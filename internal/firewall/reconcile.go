// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	ferrors "go.pvefw.dev/pvefw/internal/errors"
	"go.pvefw.dev/pvefw/internal/kernel"
)

// ChainAction is the reconciler's per-chain diff verdict (spec.md
// §4.5).
type ChainAction int

const (
	ChainCreate ChainAction = iota
	ChainUpdate
	ChainExists
	ChainDelete
)

func (a ChainAction) String() string {
	switch a {
	case ChainCreate:
		return "create"
	case ChainUpdate:
		return "update"
	case ChainExists:
		return "exists"
	case ChainDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ChainStatus is one chain's diff result: its freshly computed (or,
// for a delete, its last-known) signature plus the verdict.
type ChainStatus struct {
	Sig    string
	Action ChainAction
}

// Signature computes the canary signature of a chain's rule lines: a
// base64 SHA-1 over their concatenation, one trailing newline per
// line (spec.md §3, ChainStatus).
func Signature(lines []string) string {
	h := sha1.New()
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte("\n"))
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Diff compares a freshly compiled ruleset's chains against the
// kernel's currently discovered chains (spec.md §4.5 diff table).
func Diff(rs *Ruleset, kernelChains map[string]string) map[string]ChainStatus {
	result := make(map[string]ChainStatus, len(rs.Chains())+len(kernelChains))

	for _, chain := range rs.Chains() {
		sig := Signature(rs.Rules(chain))
		oldSig, existed := kernelChains[chain]
		switch {
		case !existed:
			result[chain] = ChainStatus{Sig: sig, Action: ChainCreate}
		case oldSig == sig:
			result[chain] = ChainStatus{Sig: sig, Action: ChainExists}
		default:
			result[chain] = ChainStatus{Sig: sig, Action: ChainUpdate}
		}
	}

	for chain, oldSig := range kernelChains {
		if _, ok := result[chain]; !ok {
			result[chain] = ChainStatus{Sig: oldSig, Action: ChainDelete}
		}
	}
	return result
}

// BuildRestoreScript renders the single atomic restore script for a
// diff (spec.md §4.5, "Emission"): chain declarations for every
// create, then flush+rules+canary for every create/update, then
// flush+remove for every delete (except the three top-level PVEFW
// chains, which are never removed).
func BuildRestoreScript(rs *Ruleset, diff map[string]ChainStatus) string {
	var b strings.Builder
	b.WriteString("*filter\n")

	for _, chain := range rs.Chains() {
		if diff[chain].Action == ChainCreate {
			fmt.Fprintf(&b, ":%s - [0:0]\n", chain)
		}
	}

	for _, chain := range rs.Chains() {
		st := diff[chain]
		if st.Action != ChainCreate && st.Action != ChainUpdate {
			continue
		}
		fmt.Fprintf(&b, "-F %s\n", chain)
		for _, line := range rs.Rules(chain) {
			fmt.Fprintf(&b, "-A %s %s\n", chain, line)
		}
		fmt.Fprintf(&b, "-A %s -m comment --comment \"PVESIG:%s\"\n", chain, st.Sig)
	}

	var deletes []string
	for chain, st := range diff {
		if st.Action == ChainDelete {
			deletes = append(deletes, chain)
		}
	}
	sort.Strings(deletes)

	for _, chain := range deletes {
		fmt.Fprintf(&b, "-F %s\n", chain)
	}
	for _, chain := range deletes {
		if isTopLevelChain(chain) {
			continue
		}
		fmt.Fprintf(&b, "-X %s\n", chain)
	}

	b.WriteString("COMMIT\n")
	return b.String()
}

func isTopLevelChain(chain string) bool {
	return chain == ChainInput || chain == ChainOutput || chain == ChainForward
}

// BuildTeardownScript renders the restore script that removes every
// currently discovered PVEFW-managed chain, plus the builtin-chain
// jumps into the three top-level ones, for the SIGINT/TERM/QUIT
// shutdown path (spec.md §5 Cancellation: "the daemon's signal
// handlers ... act only at cycle boundaries by clearing the PVEFW
// chains and exiting"). Jumps are removed first so no managed chain
// is still referenced when its own -X runs, and every chain is
// flushed before any is deleted so cross-chain references (tap chains
// jumping into GROUP chains, for instance) never dangle mid-script.
func BuildTeardownScript(kernelChains map[string]string) string {
	var b strings.Builder
	b.WriteString("*filter\n")

	for _, jump := range topLevelJumps {
		fmt.Fprintf(&b, "-D %s -j %s\n", jump[0], jump[1])
	}

	chains := make([]string, 0, len(kernelChains))
	for chain := range kernelChains {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	for _, chain := range chains {
		fmt.Fprintf(&b, "-F %s\n", chain)
	}
	for _, chain := range chains {
		fmt.Fprintf(&b, "-X %s\n", chain)
	}

	b.WriteString("COMMIT\n")
	return b.String()
}

// topLevelJumps are the one-time splices from the kernel's built-in
// chains into the PVEFW entry chains (spec.md §4.5).
var topLevelJumps = [...][2]string{
	{"INPUT", ChainInput},
	{"OUTPUT", ChainOutput},
	{"FORWARD", ChainForward},
}

// Reconciler drives one discover → diff → apply → verify cycle
// against a kernel.Adapter (spec.md §4.5).
type Reconciler struct {
	Kernel kernel.Adapter
}

// NewReconciler returns a Reconciler using the given kernel adapter.
func NewReconciler(k kernel.Adapter) *Reconciler {
	return &Reconciler{Kernel: k}
}

// CycleResult reports what a reconciliation cycle found and did.
type CycleResult struct {
	Diff    map[string]ChainStatus
	Changed bool
}

// changed reports whether any chain in a diff requires action.
func changed(diff map[string]ChainStatus) bool {
	for _, st := range diff {
		if st.Action != ChainExists {
			return true
		}
	}
	return false
}

// Reconcile runs discovery, diff, and (unless dryRun) apply plus
// post-apply verification, against a freshly compiled ruleset.
func (r *Reconciler) Reconcile(ctx context.Context, rs *Ruleset, dryRun bool) (*CycleResult, error) {
	kernelChains, err := r.Kernel.GetChains(ctx)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindApply, "discovering kernel chains")
	}

	diff := Diff(rs, kernelChains)
	result := &CycleResult{Diff: diff, Changed: changed(diff)}
	if dryRun || !result.Changed {
		return result, nil
	}

	if err := r.ensureTopLevelJumps(ctx); err != nil {
		return nil, err
	}

	script := BuildRestoreScript(rs, diff)
	if err := r.Kernel.Apply(ctx, script); err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindApply, "applying restore script")
	}

	if err := r.verify(ctx, rs); err != nil {
		return nil, err
	}
	return result, nil
}

// Teardown discovers every currently-managed chain and removes it,
// along with the builtin-chain jumps into the top-level ones (spec.md
// §5 Cancellation). Called from the daemon's signal handler, never
// mid-cycle.
func (r *Reconciler) Teardown(ctx context.Context) error {
	kernelChains, err := r.Kernel.GetChains(ctx)
	if err != nil {
		return ferrors.Wrap(err, ferrors.KindApply, "discovering kernel chains for teardown")
	}
	if len(kernelChains) == 0 {
		return nil
	}
	if err := r.Kernel.Apply(ctx, BuildTeardownScript(kernelChains)); err != nil {
		return ferrors.Wrap(err, ferrors.KindApply, "applying teardown script")
	}
	return nil
}

// ensureTopLevelJumps checks each built-in-chain jump via a
// single-rule existence check and inserts it if absent (spec.md
// §4.5: "outside the script").
func (r *Reconciler) ensureTopLevelJumps(ctx context.Context) error {
	for _, jump := range topLevelJumps {
		builtin, target := jump[0], jump[1]
		exists, err := r.Kernel.RuleExists(ctx, []string{builtin, "-j", target})
		if err != nil {
			return ferrors.Wrap(err, ferrors.KindApply, "checking top-level jump")
		}
		if exists {
			continue
		}
		if err := r.Kernel.InsertJump(ctx, builtin, target); err != nil {
			return ferrors.Wrap(err, ferrors.KindApply, "inserting top-level jump")
		}
	}
	return nil
}

// verify re-discovers and re-diffs, failing the cycle unless every
// chain reports "exists" (spec.md §4.5, "Verification").
func (r *Reconciler) verify(ctx context.Context, rs *Ruleset) error {
	kernelChains, err := r.Kernel.GetChains(ctx)
	if err != nil {
		return ferrors.Wrap(err, ferrors.KindApply, "re-discovering kernel chains for verification")
	}
	diff := Diff(rs, kernelChains)
	for chain, st := range diff {
		if st.Action != ChainExists {
			return ferrors.Errorf(ferrors.KindApply, "post-apply verification failed: chain %s has action %s", chain, st.Action)
		}
	}
	return nil
}
