// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"fmt"
	"sort"
	"strings"

	"go.pvefw.dev/pvefw/internal/inventory"
)

// Entry chains the reconciler splices into the kernel's built-in
// INPUT/OUTPUT/FORWARD chains (spec.md §4.4).
const (
	ChainInput   = "PVEFW-INPUT"
	ChainOutput  = "PVEFW-OUTPUT"
	ChainForward = "PVEFW-FORWARD"
	ChainHostIn  = "PVEFW-HOST-IN"
	ChainHostOut = "PVEFW-HOST-OUT"
)

// Compiler builds a Ruleset from the parsed IR (groups file, host
// rules, per-VM rule files) and the VM inventory (spec.md §4.4).
type Compiler struct {
	Groups *GroupsFile
	Host   *RuleFile // nil if no host.fw is present
}

// NewCompiler returns a Compiler over the given groups and (optional)
// host rule file.
func NewCompiler(groups *GroupsFile, host *RuleFile) *Compiler {
	if groups == nil {
		groups = NewGroupsFile()
	}
	return &Compiler{Groups: groups, Host: host}
}

// defaultRuleFile is the IR for a VM with no rule file at all: empty
// rule lists, default policies (spec.md §8 seed scenario 1).
func defaultRuleFile() *RuleFile {
	return &RuleFile{Options: Options{PolicyIn: PolicyDrop, PolicyOut: PolicyAccept}}
}

// compileState carries the per-cycle mutable bookkeeping a single
// Compile call needs: the ruleset under construction, which group
// chains have already been generated, and whether the shared
// conntrack fast-path rule has been written to PVEFW-FORWARD yet.
type compileState struct {
	rs            *Ruleset
	groups        *GroupsFile
	builtGroups   map[string]bool
	forwardSeeded bool
}

// Compile builds the complete Ruleset for the given VM rule files
// (missing entries are treated as an empty, default-policy file) and
// VM inventory. It is a pure function of its inputs (spec.md §8).
func (c *Compiler) Compile(vmFiles map[int]*RuleFile, vms map[int]inventory.VM) (*Ruleset, error) {
	st := &compileState{
		rs:          NewRuleset(),
		groups:      c.Groups,
		builtGroups: make(map[string]bool),
	}

	for _, chain := range []string{ChainInput, ChainOutput, ChainForward, string(ActionMark)} {
		if err := st.rs.CreateChain(chain); err != nil {
			return nil, err
		}
	}
	st.rs.Append(string(ActionMark), "-j MARK --set-mark 1")

	hostEnabled := c.Host != nil
	if hostEnabled {
		st.rs.Prepend(ChainInput, "-i lo -j ACCEPT")
	}

	vmids := make([]int, 0, len(vms))
	for vmid := range vms {
		vmids = append(vmids, vmid)
	}
	sort.Ints(vmids)

	bridgesSeen := make(map[string]bool)

	for _, vmid := range vmids {
		vm := vms[vmid]
		vf := vmFiles[vmid]
		if vf == nil {
			vf = defaultRuleFile()
		}
		if vf.Options.EnabledSet && !vf.Options.Enabled {
			continue
		}

		netids := make([]string, 0, len(vm.Nets))
		for netid := range vm.Nets {
			netids = append(netids, netid)
		}
		sort.Strings(netids)

		for _, netid := range netids {
			iface := vm.Nets[netid]
			if iface.Bridge == "" {
				continue
			}
			if !bridgesSeen[iface.Bridge] {
				if err := st.ensureBridgeChains(iface.Bridge); err != nil {
					return nil, err
				}
				bridgesSeen[iface.Bridge] = true
			}
			tap := inventory.TapName(vmid, netid)
			if err := st.compileTapChains(tap, iface.Bridge, iface.MAC, vf); err != nil {
				return nil, err
			}
		}
	}

	if hostEnabled {
		if err := st.compileHostChains(c.Host); err != nil {
			return nil, err
		}
	}

	return st.rs, nil
}

// ensureBridgeChains creates the per-bridge plumbing chains and
// splices them into PVEFW-FORWARD (spec.md §4.4, "Per-bridge
// plumbing").
func (st *compileState) ensureBridgeChains(bridge string) error {
	fw, in, out := bridgeFW(bridge), bridgeIN(bridge), bridgeOUT(bridge)
	for _, chain := range []string{fw, in, out} {
		if err := st.rs.CreateChain(chain); err != nil {
			return err
		}
	}

	if !st.forwardSeeded {
		st.rs.Append(ChainForward, "-m conntrack --ctstate RELATED,ESTABLISHED -j ACCEPT")
		st.forwardSeeded = true
	}
	st.rs.Append(ChainForward, fmt.Sprintf("-o %s -m physdev --physdev-is-bridged -j %s", bridge, fw))
	st.rs.Append(ChainForward, fmt.Sprintf("-i %s -m physdev --physdev-is-bridged -j %s", bridge, fw))
	st.rs.Append(ChainForward, fmt.Sprintf("-o %s -j DROP", bridge))
	st.rs.Append(ChainForward, fmt.Sprintf("-i %s -j DROP", bridge))

	st.rs.Append(fw, fmt.Sprintf("-m physdev --physdev-is-in -j %s", out))
	st.rs.Append(fw, fmt.Sprintf("-m physdev --physdev-is-out -j %s", in))
	return nil
}

func bridgeFW(bridge string) string  { return bridge + "-FW" }
func bridgeIN(bridge string) string  { return bridge + "-IN" }
func bridgeOUT(bridge string) string { return bridge + "-OUT" }

// compileTapChains creates a VM interface's IN/OUT chains, emits its
// user rules and default policy, and splices the chains into the
// owning bridge (spec.md §4.4, "Per-tap chains" and "Splicing").
func (st *compileState) compileTapChains(tap, bridge, mac string, vf *RuleFile) error {
	inChain, outChain := tap+"-IN", tap+"-OUT"
	if err := st.rs.CreateChain(inChain); err != nil {
		return err
	}
	if err := st.rs.CreateChain(outChain); err != nil {
		return err
	}

	for _, chain := range []string{inChain, outChain} {
		st.rs.Append(chain, "-m conntrack --ctstate INVALID -j DROP")
		st.rs.Append(chain, "-m conntrack --ctstate RELATED,ESTABLISHED -j ACCEPT")
	}
	if mac != "" {
		st.rs.Append(outChain, fmt.Sprintf("-m mac ! --mac-source %s -j DROP", mac))
	}

	for _, r := range vf.In {
		if err := st.emitRule(inChain, r, DirIn); err != nil {
			return err
		}
	}
	st.emitDefaultPolicy(inChain, vf.Options.PolicyIn, DirIn)

	for _, r := range vf.Out {
		if err := st.emitRule(outChain, r, DirOut); err != nil {
			return err
		}
	}
	st.emitDefaultPolicy(outChain, vf.Options.PolicyOut, DirOut)

	st.rs.Prepend(bridgeIN(bridge), fmt.Sprintf("-m physdev --physdev-out %s --physdev-is-bridged -j %s", tap, inChain))
	st.rs.Prepend(bridgeOUT(bridge), fmt.Sprintf("-m physdev --physdev-in %s --physdev-is-bridged -j %s", tap, outChain))
	st.rs.Append(ChainInput, fmt.Sprintf("-i %s -j %s", tap, outChain))
	return nil
}

// compileHostChains builds PVEFW-HOST-IN/OUT and splices them into
// the top-level entry chains (spec.md §4.4, "Host firewall").
func (st *compileState) compileHostChains(host *RuleFile) error {
	if err := st.rs.CreateChain(ChainHostIn); err != nil {
		return err
	}
	if err := st.rs.CreateChain(ChainHostOut); err != nil {
		return err
	}

	for _, chain := range []string{ChainHostIn, ChainHostOut} {
		st.rs.Append(chain, "-m conntrack --ctstate INVALID -j DROP")
		st.rs.Append(chain, "-m conntrack --ctstate RELATED,ESTABLISHED -j ACCEPT")
		st.rs.Append(chain, "-i lo -j ACCEPT")
		st.rs.Append(chain, "-d 224.0.0.0/24 -j ACCEPT")
		st.rs.Append(chain, "-p udp --dport 5404 -j ACCEPT")
		st.rs.Append(chain, "-p udp --dport 5405 -j ACCEPT")
		st.rs.Append(chain, "-p udp --dport 9000 -j ACCEPT")
	}

	for _, r := range host.In {
		if err := st.emitRule(ChainHostIn, r, DirIn); err != nil {
			return err
		}
	}
	st.emitDefaultPolicy(ChainHostIn, PolicyDrop, DirIn)

	for _, r := range host.Out {
		if err := st.emitRule(ChainHostOut, r, DirOut); err != nil {
			return err
		}
	}
	st.emitDefaultPolicy(ChainHostOut, PolicyDrop, DirOut)

	st.rs.Append(ChainInput, fmt.Sprintf("-j %s", ChainHostIn))
	st.rs.Append(ChainOutput, fmt.Sprintf("-j %s", ChainHostOut))
	return nil
}

// emitRule renders one user rule into chain, applying the two
// direction-dependent rewrites (spec.md §4.4): OUT-side ACCEPT
// becomes RETURN, and a GROUP-<g> action is redirected to the
// matching group chain (built lazily) with the mark post-check on the
// OUT side.
func (st *compileState) emitRule(chain string, r *Rule, dir Direction) error {
	rule := r.Clone()

	if group := rule.Action.GroupName(); group != "" {
		groupChain := fmt.Sprintf("GROUP-%s-%s", group, strings.ToUpper(dir.String()))
		if !st.builtGroups[groupChain] {
			if err := st.buildGroupChain(group, dir); err != nil {
				return err
			}
		}
		st.rs.AppendRule(chain, rule, groupChain)
		if dir == DirOut {
			st.rs.Append(chain, "-m mark --mark 1 -j RETURN")
		}
		return nil
	}

	if dir == DirOut && rule.Action == ActionAccept {
		st.rs.AppendRule(chain, rule, string(ActionReturn))
		return nil
	}

	st.rs.AppendRule(chain, rule, string(rule.Action))
	return nil
}

// buildGroupChain generates GROUP-<name>-<dir> the first time any
// rule references it (spec.md §4.4, "Security groups"). The OUT
// chain clears the mark, then rewrites each ACCEPT user rule to jump
// (via goto) into the shared mark-setter chain.
func (st *compileState) buildGroupChain(group string, dir Direction) error {
	chainName := fmt.Sprintf("GROUP-%s-%s", group, strings.ToUpper(dir.String()))
	if st.builtGroups[chainName] {
		return nil
	}
	st.builtGroups[chainName] = true
	if err := st.rs.CreateChain(chainName); err != nil {
		return err
	}

	gr := st.groups.Groups[group]
	if gr == nil {
		gr = &GroupRules{}
	}

	var rules []*Rule
	if dir == DirOut {
		st.rs.Append(chainName, "-j MARK --set-mark 0")
		rules = gr.Out
	} else {
		rules = gr.In
	}

	for _, r := range rules {
		rule := r.Clone()
		if dir == DirOut && rule.Action == ActionAccept {
			st.rs.AppendRule(chainName, rule, string(ActionMark))
			continue
		}
		st.rs.AppendRule(chainName, rule, string(rule.Action))
	}
	return nil
}

// emitDefaultPolicy appends the direction's terminal default-policy
// rule(s) after all user rules (spec.md §4.4, "Default policy").
func (st *compileState) emitDefaultPolicy(chain string, policy Policy, dir Direction) {
	switch policy {
	case PolicyAccept:
		if dir == DirOut {
			st.rs.Append(chain, "-j RETURN")
		} else {
			st.rs.Append(chain, "-j ACCEPT")
		}
	case PolicyReject:
		st.rs.Append(chain, fmt.Sprintf(`-j LOG --log-prefix "%s-reject: " --log-level 4`, chain))
		st.rs.Append(chain, "-j REJECT")
	default: // PolicyDrop, or unset treated as the DROP default
		st.rs.Append(chain, fmt.Sprintf(`-j LOG --log-prefix "%s-dropped: " --log-level 4`, chain))
		st.rs.Append(chain, "-j DROP")
	}
}
