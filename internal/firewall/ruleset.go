// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"fmt"
	"strings"

	ferrors "go.pvefw.dev/pvefw/internal/errors"
)

// MaxChainNameLength is the kernel filter's hard ceiling on a chain
// name (spec.md §8, universally quantified invariant).
const MaxChainNameLength = 28

// Ruleset is a mapping from chain name to an ordered sequence of
// fully-formed kernel-filter command lines (spec.md §3). Chains are
// created exactly once; rule order within a chain is preserved and
// semantically significant. This is the iptables-restore-oriented
// counterpart to a teacher ScriptBuilder: one ordered command list
// per chain instead of nftables table/chain/rule objects.
type Ruleset struct {
	order []string
	rules map[string][]string
	seen  map[string]bool
}

// NewRuleset returns an empty ruleset.
func NewRuleset() *Ruleset {
	return &Ruleset{
		rules: make(map[string][]string),
		seen:  make(map[string]bool),
	}
}

// Chains returns the chain names in creation order.
func (rs *Ruleset) Chains() []string {
	return rs.order
}

// Rules returns the ordered command lines (without the leading
// "-A <chain> ") of a chain.
func (rs *Ruleset) Rules(chain string) []string {
	return rs.rules[chain]
}

// CreateChain registers chain if it does not already exist. Safe to
// call more than once (idempotent chain creation, spec.md §4.4).
func (rs *Ruleset) CreateChain(chain string) error {
	if len(chain) > MaxChainNameLength {
		return ferrors.Errorf(ferrors.KindInternal, "chain name %q exceeds %d characters", chain, MaxChainNameLength)
	}
	if rs.seen[chain] {
		return nil
	}
	rs.seen[chain] = true
	rs.order = append(rs.order, chain)
	rs.rules[chain] = nil
	return nil
}

// HasChain reports whether chain has already been created.
func (rs *Ruleset) HasChain(chain string) bool {
	return rs.seen[chain]
}

// Append adds a raw, already-rendered rule body (no leading "-A
// <chain> ") to the end of chain. chain must already exist.
func (rs *Ruleset) Append(chain, body string) {
	rs.rules[chain] = append(rs.rules[chain], body)
}

// Prepend inserts a raw rule body at the front of chain, used by the
// bridge/tap splicing rules (spec.md §4.4, "insert at the top").
func (rs *Ruleset) Prepend(chain, body string) {
	rs.rules[chain] = append([]string{body}, rs.rules[chain]...)
}

// useGoto reports whether target must be reached via -g instead of
// -j (spec.md §4.4): only the shared mark-setting helper chain.
func useGoto(target string) bool {
	return target == string(ActionMark)
}

// AppendRule renders r against target with the given terminal verb
// (ACCEPT/DROP/REJECT/RETURN/a chain name) and appends it to chain.
// This implements ruleset_generate_rule (spec.md §4.4): matchers in a
// fixed order, -g instead of -j when target is the mark-setter.
func (rs *Ruleset) AppendRule(chain string, r *Rule, target string) {
	rs.Append(chain, renderRule(r, target))
}

// renderRule builds the matcher/terminator portion of one emitted
// line. Matcher order: iprange-src (iff nbsource>1), -s, iprange-dst
// (iff nbdest>1), -d, -p, multiport (iff nbdport>1), --dport,
// multiport (iff nbsport>1), --sport. Terminator: -g for the mark
// setter, -j otherwise.
func renderRule(r *Rule, target string) string {
	var b strings.Builder

	if r.NBSource > 1 {
		fmt.Fprintf(&b, "-m iprange --src-range %s ", r.Source)
	} else if r.Source != "" {
		fmt.Fprintf(&b, "-s %s ", r.Source)
	}

	if r.NBDest > 1 {
		fmt.Fprintf(&b, "-m iprange --dst-range %s ", r.Dest)
	} else if r.Dest != "" {
		fmt.Fprintf(&b, "-d %s ", r.Dest)
	}

	if r.Proto != "" {
		fmt.Fprintf(&b, "-p %s ", r.Proto)
	}

	if r.NBDPort > 1 {
		b.WriteString("--match multiport ")
	}
	if r.DPort != "" {
		fmt.Fprintf(&b, "--dport %s ", r.DPort)
	}

	if r.NBSPort > 1 {
		b.WriteString("--match multiport ")
	}
	if r.SPort != "" {
		fmt.Fprintf(&b, "--sport %s ", r.SPort)
	}

	verb := "-j"
	if useGoto(target) {
		verb = "-g"
	}
	fmt.Fprintf(&b, "%s %s", verb, target)

	return b.String()
}

// Build renders the ruleset as a "*filter" ... "COMMIT" block,
// chain-declarations first (in creation order), then each chain's
// rules. builtinPolicy supplies the ":CHAIN POLICY [0:0]" policy word
// for kernel built-in chains (INPUT/OUTPUT/FORWARD); chains not listed
// default to "-" (a non-builtin, policy-less chain).
func (rs *Ruleset) Build(builtinPolicy map[string]string) string {
	var b strings.Builder
	b.WriteString("*filter\n")
	for _, chain := range rs.order {
		policy := builtinPolicy[chain]
		if policy == "" {
			policy = "-"
		}
		fmt.Fprintf(&b, ":%s %s [0:0]\n", chain, policy)
	}
	for _, chain := range rs.order {
		for _, rule := range rs.rules[chain] {
			fmt.Fprintf(&b, "-A %s %s\n", chain, rule)
		}
	}
	b.WriteString("COMMIT\n")
	return b.String()
}
