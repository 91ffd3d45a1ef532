// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command pvefw compiles per-VM/host/security-group rule files into
// an iptables ruleset and reconciles the kernel's live filter table
// toward it, per spec.md §6.
package main

import (
	"flag"
	"os"
)

func main() {
	flag.Usage = func() {
		printer.Fprintf(os.Stderr, "usage: pvefw <start|stop|compile|status|dump> [flags]\n")
	}

	debug := flag.Bool("debug", false, "run start in verbose mode")
	dryRun := flag.Bool("dry-run", false, "compile: diff only, never apply")
	config := flag.String("config", "", "path to the daemon HCL config file")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "start":
		err = runStart(*debug, *config)
	case "stop":
		err = runStop()
	case "compile":
		err = runCompile(*config, *dryRun)
	case "status":
		err = runStatus(*config)
	case "dump":
		err = runDump(*config)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		printer.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
