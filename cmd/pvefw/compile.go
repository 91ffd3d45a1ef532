// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

// runCompile performs a single parse/compile/reconcile cycle and
// prints the spec.md §6-mandated one-line summary. Exit codes are
// handled by the caller (main), which inspects the returned error.
func runCompile(configPath string, dryRun bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	eng := newEngine(cfg)

	status, err := eng.Compile(dryRun)
	if err != nil {
		return err
	}

	changed := status.ChainActions["create"] > 0 ||
		status.ChainActions["update"] > 0 ||
		status.ChainActions["delete"] > 0

	if changed {
		printer.Println("detected changes")
	} else {
		printer.Println("no changes")
	}
	return nil
}
