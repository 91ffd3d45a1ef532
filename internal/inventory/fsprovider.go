// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package inventory

import (
	"bufio"
	"context"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FSProvider reads VM configuration from a directory of "<vmid>.conf"
// files, each a flat "key: value" list including zero or more
// "netN: <netstring>" lines. A config file that cannot be read is
// logged and the VM is skipped entirely; a netN line that fails to
// parse is logged and only that interface is dropped (spec.md §7.3:
// inventory errors are not fatal to the cycle).
type FSProvider struct {
	ConfDir string
}

// NewFSProvider returns a provider reading VM configs from dir.
func NewFSProvider(dir string) *FSProvider {
	return &FSProvider{ConfDir: dir}
}

func (p *FSProvider) ListVMs(ctx context.Context) (map[int]VM, error) {
	entries, err := os.ReadDir(p.ConfDir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int]VM{}, nil
		}
		return nil, err
	}

	vms := make(map[int]VM)
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".conf") {
			continue
		}
		vmid, err := strconv.Atoi(strings.TrimSuffix(ent.Name(), ".conf"))
		if err != nil {
			continue
		}
		vm, err := p.readConfig(filepath.Join(p.ConfDir, ent.Name()), vmid)
		if err != nil {
			log.Printf("inventory: skipping VM %d, config unreadable: %v", vmid, err)
			continue
		}
		vms[vmid] = vm
	}
	return vms, nil
}

func (p *FSProvider) readConfig(path string, vmid int) (VM, error) {
	f, err := os.Open(path)
	if err != nil {
		return VM{}, err
	}
	defer f.Close()

	vm := VM{VMID: vmid, Nets: make(map[string]NetIface)}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if !strings.HasPrefix(key, "net") {
			continue
		}
		if _, err := strconv.Atoi(strings.TrimPrefix(key, "net")); err != nil {
			continue
		}
		iface, err := ParseNet(val)
		if err != nil {
			log.Printf("inventory: VM %d %s: %v", vmid, key, err)
			continue
		}
		vm.Nets[key] = iface
	}
	return vm, sc.Err()
}
