// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"context"
	"os"

	"gopkg.in/yaml.v3"

	"go.pvefw.dev/pvefw/internal/firewall"
	"go.pvefw.dev/pvefw/internal/install"
)

// chainDump is the YAML-serializable view of one compiled chain, in
// the order rules would be emitted to iptables-restore.
type chainDump struct {
	Name  string   `yaml:"name"`
	Rules []string `yaml:"rules"`
}

// rulesetDump is the YAML-serializable view of a full compiled
// ruleset, printed by the supplemental "dump" command for offline
// inspection and CI diffing (SPEC_FULL.md domain-stack expansion).
type rulesetDump struct {
	Chains []chainDump `yaml:"chains"`
}

// runDump parses and compiles the configured rule files without
// touching the kernel, then prints the result as YAML.
func runDump(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	eng := newEngine(cfg)
	vms, err := eng.inv.ListVMs(context.Background())
	if err != nil {
		return err
	}

	vmFiles, warnings := loadVMFiles(cfg.VMDir, vms)
	groups, gw := loadGroupsFile(install.GetGroupsFile())
	host, hw := loadHostFile(install.GetHostRuleFile())
	warnings = append(warnings, gw...)
	warnings = append(warnings, hw...)
	if len(warnings) > 0 {
		printer.Fprintf(os.Stderr, "%s\n", formatWarnings(warnings))
	}

	compiler := firewall.NewCompiler(groups, host)
	rs, err := compiler.Compile(vmFiles, vms)
	if err != nil {
		return err
	}

	dump := rulesetDump{}
	for _, chain := range rs.Chains() {
		dump.Chains = append(dump.Chains, chainDump{Name: chain, Rules: rs.Rules(chain)})
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(dump)
}
