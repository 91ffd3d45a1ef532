// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package kernel

import (
	"bufio"
	"regexp"
	"strings"
)

// managedChainPatterns are the name shapes the reconciler considers
// "ours" when discovering the kernel's current state (spec.md §4.5).
var managedChainPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^PVEFW-`),
	regexp.MustCompile(`^tap\d+i\d+-(IN|OUT)$`),
	regexp.MustCompile(`^vmbr\d+-(FW|IN|OUT)$`),
	regexp.MustCompile(`^GROUP-.+-(IN|OUT)$`),
}

// legacyChainPrefixes lists chain-name prefixes this reconciler has
// used in the past, so an upgrade can still discover and clean up
// chains from a retired naming scheme. Empty today; a future rename
// registers its old prefix here rather than touching IsManagedChain's
// regexes directly.
var legacyChainPrefixes []string

// canaryRe extracts the base64 SHA-1 signature from the canary
// comment rule a prior apply left behind:
// -A <chain> -m comment --comment "PVESIG:<sig>"
var canaryRe = regexp.MustCompile(`--comment "PVESIG:([A-Za-z0-9+/=]+)"`)

// IsManagedChain reports whether name matches one of the chain-name
// shapes the reconciler owns, including any retired naming scheme
// listed in legacyChainPrefixes.
func IsManagedChain(name string) bool {
	for _, re := range managedChainPatterns {
		if re.MatchString(name) {
			return true
		}
	}
	for _, prefix := range legacyChainPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// ParseSave parses the text emitted by "iptables-save -t filter" and
// returns every managed chain mapped to its canary signature (or
// UnknownSig if no canary rule was found). Declaration lines (":CHAIN
// POLICY [pkts:bytes]") establish that a chain exists even before any
// -A line is seen, so a chain with zero rules still registers.
func ParseSave(save string) map[string]string {
	chains := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(save))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, ":"):
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			name := strings.TrimPrefix(fields[0], ":")
			if IsManagedChain(name) {
				if _, ok := chains[name]; !ok {
					chains[name] = UnknownSig
				}
			}
		case strings.HasPrefix(line, "-A "):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			name := fields[1]
			if !IsManagedChain(name) {
				continue
			}
			if m := canaryRe.FindStringSubmatch(line); m != nil {
				chains[name] = m[1]
			} else if _, ok := chains[name]; !ok {
				chains[name] = UnknownSig
			}
		}
	}
	return chains
}
