// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package kernel abstracts the three kernel-filter operations the
// reconciler needs: discovering chains, checking single-rule
// existence, and atomically applying a restore script. It contains no
// policy of its own — the "save"/"restore -n"/"-C" wire protocol only.
package kernel

import "context"

// UnknownSig is the signature reported for a chain this process's
// own canary comment did not produce (no canary rule, or a canary
// whose text does not parse), per spec.md §4.5.
const UnknownSig = "unknown"

// Adapter is the thin wrapper around the kernel filter binary. It
// must not make decisions about which chains mean what; that is the
// reconciler's job.
type Adapter interface {
	// GetChains returns every PVEFW-managed chain currently present in
	// the kernel's filter table, mapped to its canary signature (or
	// UnknownSig if the chain carries no canary rule).
	GetChains(ctx context.Context) (map[string]string, error)

	// RuleExists reports whether a single rule, expressed as iptables
	// argv tokens after "-t filter -C" (chain first), is already
	// installed.
	RuleExists(ctx context.Context, ruleArgs []string) (bool, error)

	// InsertJump installs "-I <builtinChain> 1 -j <target>" outside the
	// bulk-restore script, used once to splice PVEFW-INPUT/OUTPUT/
	// FORWARD into the kernel's built-in chains (spec.md §4.5).
	InsertJump(ctx context.Context, builtinChain, target string) error

	// Apply feeds script to the bulk-restore interface. A non-zero
	// exit is returned as an error; the kernel's own atomicity
	// guarantees the previous ruleset remains live on failure.
	Apply(ctx context.Context, script string) error
}
