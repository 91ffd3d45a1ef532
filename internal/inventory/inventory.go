// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package inventory is the compiler's view of "what VMs exist and
// what network interfaces they have" (spec.md §1: treated as an
// external collaborator, specified only as an input interface).
package inventory

import (
	"context"
	"strconv"
	"strings"

	ferrors "go.pvefw.dev/pvefw/internal/errors"
	"go.pvefw.dev/pvefw/internal/netutil"
)

// NetIface is one VM network interface's configuration, as resolved
// from its "netN=" config string.
type NetIface struct {
	Bridge string
	Tag    int    // VLAN tag; 0 means untagged
	MAC    string // "" if the config does not pin a MAC
}

// VM is one inventoried guest: its numeric id and its net0..net31
// interfaces, keyed by netid ("net0", "net1", ...).
type VM struct {
	VMID int
	Nets map[string]NetIface
}

// Provider enumerates currently configured VMs and their network
// interfaces (spec.md §6, "VM inventory: list_vms()").
type Provider interface {
	ListVMs(ctx context.Context) (map[int]VM, error)
}

// ParseNet parses one "netN=" value, e.g.
// "virtio=AA:BB:CC:DD:EE:FF,bridge=vmbr0,tag=10,firewall=1", into a
// NetIface. Unknown keys are ignored; a MAC given as the value of any
// NIC-model key (virtio, e1000, rtl8139, vmxnet3, ...) is captured.
func ParseNet(s string) (NetIface, error) {
	var iface NetIface
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch key {
		case "bridge":
			iface.Bridge = val
		case "tag":
			n, err := strconv.Atoi(val)
			if err != nil {
				return NetIface{}, ferrors.Errorf(ferrors.KindInventory, "invalid tag %q: %v", val, err)
			}
			iface.Tag = n
		case "virtio", "e1000", "e1000e", "rtl8139", "vmxnet3", "ne2k_pci", "pcnet", "i82551", "i82557b", "i82559er":
			hw, err := netutil.ParseMAC(val)
			if err != nil {
				return NetIface{}, ferrors.Errorf(ferrors.KindInventory, "invalid MAC %q: %v", val, err)
			}
			iface.MAC = strings.ToUpper(netutil.FormatMAC(hw))
		}
	}
	if iface.Bridge == "" {
		return NetIface{}, ferrors.New(ferrors.KindInventory, "net string has no bridge=")
	}
	return iface, nil
}
