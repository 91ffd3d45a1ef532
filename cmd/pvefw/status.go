// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"go.pvefw.dev/pvefw/internal/ctlapi"
)

// statusReport is the JSON body printed by the CLI "status" command,
// matching the shape spec.md §6 names: status in
// {unknown, stopped, active}, plus an optional "changes" bool.
type statusReport struct {
	Status    string `json:"status"`
	Changes   *bool  `json:"changes,omitempty"`
	LastCycle string `json:"last_cycle,omitempty"`
}

// runStatus reports process liveness from the PID file, and — if the
// daemon's ctlapi is reachable — enriches the report with the last
// cycle's outcome and a humanized age (SPEC_FULL.md's go-humanize
// expansion), rather than running a cycle itself.
func runStatus(configPath string) error {
	report := statusReport{Status: "unknown"}

	data, err := os.ReadFile(pidFilePath())
	switch {
	case os.IsNotExist(err):
		report.Status = "stopped"
	case err != nil:
		report.Status = "unknown"
	default:
		pid, perr := strconv.Atoi(string(data))
		if perr != nil {
			report.Status = "unknown"
			break
		}
		process, ferr := os.FindProcess(pid)
		if ferr != nil || process.Signal(syscall.Signal(0)) != nil {
			report.Status = "stopped"
			break
		}
		report.Status = "active"
	}

	if report.Status == "active" {
		enrichFromCtlAPI(configPath, &report)
	}

	out, err := json.Marshal(report)
	if err != nil {
		return err
	}
	printer.Println(string(out))
	return nil
}

// enrichFromCtlAPI queries the daemon's /status endpoint; failures
// are silent since this is best-effort enrichment, not the status
// command's primary liveness signal.
func enrichFromCtlAPI(configPath string, report *statusReport) {
	cfg, err := loadConfig(configPath)
	if err != nil || cfg.CtlAPI == nil || !cfg.CtlAPI.Enabled {
		return
	}

	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + cfg.CtlAPI.Listen + "/status")
	if err != nil {
		return
	}
	defer resp.Body.Close()

	var remote ctlapi.Status
	if err := json.NewDecoder(resp.Body).Decode(&remote); err != nil {
		return
	}

	changed := remote.ChainActions["create"] > 0 ||
		remote.ChainActions["update"] > 0 ||
		remote.ChainActions["delete"] > 0
	report.Changes = &changed

	if t, err := time.Parse(time.RFC3339, remote.LastCycleTime); err == nil {
		report.LastCycle = humanize.Time(t)
	}
}
