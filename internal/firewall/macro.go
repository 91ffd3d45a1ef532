// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import "strings"

// Template sentinel values (spec.md §3, §9: "Macros as data, not
// subclasses"). A template field holding one of these copies the
// same-named (PARAM) or explicitly-named (SOURCE/DEST) field from the
// rule being expanded; any other value is a literal.
const (
	sentinelParam  = "PARAM"
	sentinelSource = "SOURCE"
	sentinelDest   = "DEST"
)

// RuleTemplate is one partially-specified rule a macro expands to.
// Empty string means "unset" (same as "-" in the rule grammar).
type RuleTemplate struct {
	Proto  string
	DPort  string
	SPort  string
	Source string
	Dest   string
}

// resolve substitutes sentinels against the parsed rule being expanded
// and returns a fresh Rule carrying the given terminal action.
func (t RuleTemplate) resolve(r *Rule, action Action) *Rule {
	return &Rule{
		Action: action,
		Iface:  r.Iface,
		File:   r.File,
		Line:   r.Line,
		Proto:  substituteParam(t.Proto, r.Proto),
		DPort:  substituteParam(t.DPort, r.DPort),
		SPort:  substituteParam(t.SPort, r.SPort),
		Source: substituteAddr(t.Source, r.Source, r.Source, r.Dest),
		Dest:   substituteAddr(t.Dest, r.Dest, r.Source, r.Dest),
	}
}

// substituteParam resolves a PARAM sentinel to the rule's same-named
// field; any other template value (including "") is used literally.
func substituteParam(tplVal, own string) string {
	if tplVal == sentinelParam {
		return own
	}
	return tplVal
}

// substituteAddr additionally understands the SOURCE/DEST sentinels,
// which always refer to the rule's source/dest fields regardless of
// which slot is being filled in — this is what lets a template swap
// the two to express the reverse leg of a bidirectional flow (e.g.
// "source=DEST, dest=SOURCE").
func substituteAddr(tplVal, own, ruleSource, ruleDest string) string {
	switch tplVal {
	case sentinelParam:
		return own
	case sentinelSource:
		return ruleSource
	case sentinelDest:
		return ruleDest
	default:
		return tplVal
	}
}

// MacroRegistry maps a canonical-case macro name to its rule
// templates, plus a case-insensitive lookup index (spec.md §4.2: "a
// preferred-case name map is also kept so diagnostics can echo the
// canonical capitalization while lookups are case-insensitive").
type MacroRegistry struct {
	templates     map[string][]RuleTemplate
	canonicalCase map[string]string // lower(name) -> canonical name
}

// Expand resolves a macro invocation against the parsed rule r,
// returning one Rule per template, each carrying innerAction. The
// lookup is case-insensitive; ok is false if name does not name a
// known macro.
func (m *MacroRegistry) Expand(name string, r *Rule, innerAction Action) ([]*Rule, bool) {
	canon, ok := m.canonicalCase[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	tpls := m.templates[canon]
	rules := make([]*Rule, 0, len(tpls))
	for _, t := range tpls {
		rules = append(rules, t.resolve(r, innerAction))
	}
	return rules, true
}

// CanonicalName returns the registry's preferred capitalization for a
// case-insensitively matched macro name, for diagnostics.
func (m *MacroRegistry) CanonicalName(name string) (string, bool) {
	canon, ok := m.canonicalCase[strings.ToLower(name)]
	return canon, ok
}

func newRegistry(defs map[string][]RuleTemplate) *MacroRegistry {
	m := &MacroRegistry{
		templates:     defs,
		canonicalCase: make(map[string]string, len(defs)),
	}
	for name := range defs {
		m.canonicalCase[strings.ToLower(name)] = name
	}
	return m
}

// DefaultMacros is the static table of well-known service macros
// (spec.md §4.2). This is a representative subset of the ~80-entry
// table the source ships; new entries follow the same shape and need
// no code changes elsewhere.
var DefaultMacros = newRegistry(map[string][]RuleTemplate{
	"HTTP":    {{Proto: "tcp", DPort: "80"}},
	"HTTPS":   {{Proto: "tcp", DPort: "443"}},
	"SSH":     {{Proto: "tcp", DPort: "22"}},
	"Telnet":  {{Proto: "tcp", DPort: "23"}},
	"FTP":     {{Proto: "tcp", DPort: "21"}},
	"SMTP":    {{Proto: "tcp", DPort: "25"}},
	"SMTPS":   {{Proto: "tcp", DPort: "465"}},
	"Submission": {{Proto: "tcp", DPort: "587"}},
	"IMAP":    {{Proto: "tcp", DPort: "143"}},
	"IMAPS":   {{Proto: "tcp", DPort: "993"}},
	"POP3":    {{Proto: "tcp", DPort: "110"}},
	"POP3S":   {{Proto: "tcp", DPort: "995"}},
	"DNS":     {{Proto: "udp", DPort: "53"}, {Proto: "tcp", DPort: "53"}},
	"NTP":     {{Proto: "udp", DPort: "123"}},
	"Ping":    {{Proto: "icmp"}},
	"Syslog":  {{Proto: "udp", DPort: "514"}, {Proto: "tcp", DPort: "514"}},
	"TFTP":    {{Proto: "udp", DPort: "69"}},
	"Rsync":   {{Proto: "tcp", DPort: "873"}},
	"SMB":     {{Proto: "tcp", DPort: "445"}},
	"NFS":     {{Proto: "tcp", DPort: "2049"}, {Proto: "udp", DPort: "2049"}},
	"MySQL":   {{Proto: "tcp", DPort: "3306"}},
	"PostgreSQL": {{Proto: "tcp", DPort: "5432"}},
	"Redis":   {{Proto: "tcp", DPort: "6379"}},
	"VNC":     {{Proto: "tcp", DPort: "5900:5999"}},
	"SPICE":   {{Proto: "tcp", DPort: "3128"}},
	"IPsec": {
		{Proto: "udp", DPort: "500", SPort: "500"},
		{Proto: "udp", DPort: "4500", SPort: "4500"},
		{Proto: "50"}, // ESP
	},
	"PVEDiscoveryProtocol": {
		{Proto: "udp", DPort: "5404"},
		{Proto: "udp", DPort: "5405"},
	},
	"Trcrt":  {{Proto: "udp", DPort: "33434:33524"}},
	"Bitcoin": {{Proto: "tcp", DPort: "8332:8333"}},
	"HKP":    {{Proto: "tcp", DPort: "11371"}},
	"Git":    {{Proto: "tcp", DPort: "9418"}},
	"Web":    {{Proto: "tcp", DPort: "80,443"}},
	"Ceph":   {{Proto: "tcp", DPort: "6789,3300,6800:7300"}},
	"WakeOnLAN": {{Proto: "udp", DPort: "9"}},
	"OSPF":   {{Proto: "89"}},
	"BGP":    {{Proto: "tcp", DPort: "179"}},
	"Multicast-DNS": {{Proto: "udp", DPort: "5353"}},
	// Bidirectional templates that use the SOURCE/DEST cross sentinels:
	// a single macro invocation generates both the request and the
	// reply-path rule sharing the same addresses but swapped.
	"Amanda": {
		{Proto: "udp", DPort: "10080:10082"},
		{Proto: "tcp", SPort: "10080:10082", Source: sentinelDest, Dest: sentinelSource},
	},
})
