// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

package inventory

import (
	"context"
	"fmt"
	"log"

	"github.com/vishvananda/netlink"
)

// NetlinkCrossCheck wraps a Provider and drops any tap interface the
// configuration names but that does not actually exist as a link on
// the host. A VM whose config references a missing tap is not
// skipped wholesale (that interface alone is pruned), matching
// spec.md §7.3's "the VM is silently skipped; its interfaces get no
// tap chain" at the per-interface granularity the compiler needs:
// net<n> entries with no corresponding tap get no chain either.
type NetlinkCrossCheck struct {
	Inner Provider
}

// NewNetlinkCrossCheck returns a Provider that cross-checks Inner's
// results against the host's actual links.
func NewNetlinkCrossCheck(inner Provider) *NetlinkCrossCheck {
	return &NetlinkCrossCheck{Inner: inner}
}

func (c *NetlinkCrossCheck) ListVMs(ctx context.Context) (map[int]VM, error) {
	vms, err := c.Inner.ListVMs(ctx)
	if err != nil {
		return nil, err
	}

	links, err := netlink.LinkList()
	if err != nil {
		log.Printf("inventory: netlink cross-check unavailable, trusting config as-is: %v", err)
		return vms, nil
	}
	present := make(map[string]bool, len(links))
	for _, l := range links {
		present[l.Attrs().Name] = true
	}

	for vmid, vm := range vms {
		for netid := range vm.Nets {
			tap := TapName(vmid, netid)
			if !present[tap] {
				log.Printf("inventory: VM %d %s has no live tap %s, dropping from this cycle", vmid, netid, tap)
				delete(vm.Nets, netid)
			}
		}
	}
	return vms, nil
}

// TapName returns the tap interface name for a VM's netN entry, e.g.
// VM 100's net0 is "tap100i0".
func TapName(vmid int, netid string) string {
	n := "0"
	if len(netid) > 3 {
		n = netid[3:]
	}
	return fmt.Sprintf("tap%di%s", vmid, n)
}
