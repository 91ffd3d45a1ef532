// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"go.pvefw.dev/pvefw/internal/ctlapi"
	"go.pvefw.dev/pvefw/internal/daemonconfig"
	"go.pvefw.dev/pvefw/internal/install"
	"go.pvefw.dev/pvefw/internal/logging"
)

// runStart runs the reconciliation daemon in the foreground: one
// compile/reconcile cycle per tick, where a tick fires on the
// configured interval or on a rule-directory write (spec.md §5's
// SIGHUP-equivalent trigger, carried over a second channel per
// SPEC_FULL.md's fsnotify expansion). SIGINT/TERM/QUIT act only at
// cycle boundaries: they clear every PVEFW-managed chain via
// Reconciler.Teardown before the process exits (spec.md §5
// Cancellation).
func runStart(debug bool, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if err := writePIDFile(); err != nil {
		return err
	}
	defer removePIDFile()

	if closer, err := attachSyslog(cfg); err != nil {
		printer.Fprintf(os.Stderr, "warning: syslog: %v\n", err)
	} else if closer != nil {
		defer closer.Close()
	}

	if err := enableBridgeNFCall(); err != nil {
		printer.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	eng := newEngine(cfg)

	var apiServer *http.Server
	if cfg.CtlAPI != nil && cfg.CtlAPI.Enabled {
		srv := ctlapi.New(eng, eng)
		apiServer = &http.Server{Addr: cfg.CtlAPI.Listen, Handler: srv.Handler()}
		go func() {
			if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("ctlapi: %v", err)
			}
		}()
		printer.Printf("ctlapi listening on %s\n", cfg.CtlAPI.Listen)
	}

	watchTrigger := watchRuleDirectory(cfg.VMDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP)

	ticker := time.NewTicker(cfg.CycleInterval())
	defer ticker.Stop()

	printer.Printf("pvefw daemon started, cycle interval %s\n", cfg.CycleInterval())
	runOneCycle(eng, debug)

	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				printer.Println("SIGHUP received, triggering immediate cycle")
				runOneCycle(eng, debug)
				continue
			}
			printer.Println("shutting down")
			if apiServer != nil {
				apiServer.Close()
			}
			if err := eng.reconcile.Teardown(context.Background()); err != nil {
				printer.Fprintf(os.Stderr, "teardown: %v\n", err)
			}
			return nil
		case <-ticker.C:
			runOneCycle(eng, debug)
		case <-watchTrigger:
			runOneCycle(eng, debug)
		}
	}
}

func runOneCycle(eng *engine, debug bool) {
	status, err := eng.Compile(false)
	if err != nil {
		printer.Fprintf(os.Stderr, "reconcile error: %v\n", err)
		return
	}
	if debug {
		printer.Printf("cycle complete: %d chains managed\n", status.ChainsManaged)
	}
}

// watchRuleDirectory returns a channel that fires whenever dir's
// contents change; a failure to start the watcher is non-fatal since
// the ticker alone still drives reconciliation.
func watchRuleDirectory(dir string) <-chan struct{} {
	ch := make(chan struct{}, 1)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("fsnotify: %v, falling back to poll interval only", err)
		return ch
	}
	if err := watcher.Add(dir); err != nil {
		log.Printf("fsnotify: watching %s: %v", dir, err)
		return ch
	}
	go func() {
		for {
			select {
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("fsnotify: %v", err)
			}
		}
	}()
	return ch
}

// attachSyslog mirrors the standard logger to a syslog sink, in
// addition to stderr, when the daemon config's syslog block is
// enabled; the returned closer is nil when syslog is disabled.
func attachSyslog(cfg *daemonconfig.Config) (*logging.SyslogWriter, error) {
	lc := cfg.ToLoggingConfig()
	if !lc.Enabled {
		return nil, nil
	}
	w, err := logging.NewSyslogWriter(lc)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stderr, w))
	log.SetFlags(0)
	return w, nil
}

func loadConfig(path string) (*daemonconfig.Config, error) {
	if path == "" {
		return daemonconfig.Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return daemonconfig.Default(), nil
	}
	return daemonconfig.Load(path)
}

func pidFilePath() string {
	return filepath.Join(install.GetRunDir(), "pvefw.pid")
}

func writePIDFile() error {
	runDir := install.GetRunDir()
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}
	path := pidFilePath()
	if data, err := os.ReadFile(path); err == nil {
		if pid, err := strconv.Atoi(string(data)); err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if process.Signal(syscall.Signal(0)) == nil {
					return fmt.Errorf("pvefw already running (PID: %d)", pid)
				}
			}
		}
		printer.Printf("Warning: removing stale PID file %s\n", path)
		os.Remove(path)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func removePIDFile() {
	os.Remove(pidFilePath())
}

// enableBridgeNFCall writes "1" into the bridge-netfilter sysctls so
// bridged VM traffic actually reaches the iptables FORWARD chain
// (spec.md §6, "Bridge firewall enable"). Idempotent.
func enableBridgeNFCall() error {
	for _, path := range []string{
		"/proc/sys/net/bridge/bridge-nf-call-iptables",
		"/proc/sys/net/bridge/bridge-nf-call-ip6tables",
	} {
		if err := os.WriteFile(path, []byte("1"), 0644); err != nil {
			return fmt.Errorf("enabling %s: %w", path, err)
		}
	}
	return nil
}
