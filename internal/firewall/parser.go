// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	ferrors "go.pvefw.dev/pvefw/internal/errors"
)

// Parser tokenizes and validates rule lines, option lines, and
// section headers for the VM/host/group file schemas (spec.md §4.3).
// A malformed line is recoverable: it is skipped with a warning
// carrying "filename:lineno", and parsing continues (spec.md §7).
type Parser struct {
	Services *ServicesDirectory
	Macros   *MacroRegistry
}

// NewParser returns a Parser using the given services directory and
// macro registry.
func NewParser(services *ServicesDirectory, macros *MacroRegistry) *Parser {
	return &Parser{Services: services, Macros: macros}
}

// section identifies which block of a file a line belongs to.
type section struct {
	kind  string // "in", "out", "options"
	group string // set only for "[in:g]"/"[out:g]" headers
}

var (
	sectionHeaderRe = regexp.MustCompile(`^\[([a-z]+)(?::(\S+))?\]$`)
	macroInvokeRe   = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_-]*)\((ACCEPT|DROP|REJECT)\)$`)
	groupRefRe      = regexp.MustCompile(`^GROUP-(\S+)$`)
)

// ParseWarning is a recoverable per-line failure (spec.md §7.1/§7.2).
type ParseWarning struct {
	File string
	Line int
	Err  error
}

func (w ParseWarning) String() string {
	return fmt.Sprintf("%s:%d: %v", w.File, w.Line, w.Err)
}

func newWarning(file string, line int, err error) ParseWarning {
	return ParseWarning{File: file, Line: line, Err: ferrors.AtLine(err, file, line)}
}

// ParseVMFile parses a per-VM rule file: sections [in], [out],
// [options]. GROUP-<name> references are allowed.
func (p *Parser) ParseVMFile(filename string, r io.Reader) (*RuleFile, []ParseWarning) {
	rf := &RuleFile{Options: Options{PolicyIn: PolicyDrop, PolicyOut: PolicyAccept}}
	var warnings []ParseWarning
	p.scan(filename, r, func(sec section, lineno int, line string) {
		switch sec.kind {
		case "in", "out":
			rules, err := p.parseRuleLine(line, true, true, filename, lineno)
			if err != nil {
				warnings = append(warnings, newWarning(filename, lineno, err))
				return
			}
			if sec.kind == "in" {
				rf.In = append(rf.In, rules...)
			} else {
				rf.Out = append(rf.Out, rules...)
			}
		case "options":
			if err := parseOption(line, &rf.Options); err != nil {
				warnings = append(warnings, newWarning(filename, lineno, err))
			}
		default:
			warnings = append(warnings, newWarning(filename, lineno, ferrors.Errorf(ferrors.KindParse, "line outside any recognized section")))
		}
	})
	return rf, warnings
}

// ParseHostFile parses the host rule file: sections [in], [out].
// GROUP-<name> references are allowed; there is no [options] section.
func (p *Parser) ParseHostFile(filename string, r io.Reader) (*RuleFile, []ParseWarning) {
	rf := &RuleFile{}
	var warnings []ParseWarning
	p.scan(filename, r, func(sec section, lineno int, line string) {
		switch sec.kind {
		case "in", "out":
			rules, err := p.parseRuleLine(line, true, true, filename, lineno)
			if err != nil {
				warnings = append(warnings, newWarning(filename, lineno, err))
				return
			}
			if sec.kind == "in" {
				rf.In = append(rf.In, rules...)
			} else {
				rf.Out = append(rf.Out, rules...)
			}
		default:
			warnings = append(warnings, newWarning(filename, lineno, ferrors.Errorf(ferrors.KindParse, "line outside any recognized section")))
		}
	})
	return rf, warnings
}

// ParseGroupsFile parses the cluster groups.fw file: sections of the
// form [in:<group>] / [out:<group>]. GROUP-<name> references are not
// allowed inside a group's own rules.
func (p *Parser) ParseGroupsFile(filename string, r io.Reader) (*GroupsFile, []ParseWarning) {
	gf := NewGroupsFile()
	var warnings []ParseWarning
	p.scan(filename, r, func(sec section, lineno int, line string) {
		if (sec.kind != "in" && sec.kind != "out") || sec.group == "" {
			warnings = append(warnings, newWarning(filename, lineno, ferrors.Errorf(ferrors.KindParse, "line outside any recognized section")))
			return
		}
		rules, err := p.parseRuleLine(line, false, false, filename, lineno)
		if err != nil {
			warnings = append(warnings, newWarning(filename, lineno, err))
			return
		}
		gr := gf.group(sec.group)
		if sec.kind == "in" {
			gr.In = append(gr.In, rules...)
		} else {
			gr.Out = append(gr.Out, rules...)
		}
	})
	return gf, warnings
}

// scan drives the line-by-line, section-aware iteration shared by all
// three file schemas; onLine is invoked for each non-blank,
// non-comment, in-section line.
func (p *Parser) scan(filename string, r io.Reader, onLine func(sec section, lineno int, line string)) {
	sc := bufio.NewScanner(r)
	lineno := 0
	var cur section
	for sc.Scan() {
		lineno++
		line := stripComment(sc.Text())
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if m := sectionHeaderRe.FindStringSubmatch(trimmed); m != nil {
			cur = section{kind: m[1], group: m[2]}
			continue
		}
		onLine(cur, lineno, trimmed)
	}
}

// stripComment removes a trailing "#..." comment, respecting neither
// quoting nor escaping (the grammar has no quoted fields).
func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}

// parseRuleLine parses one "action [iface] source dest proto dport
// sport" line. allowIface selects the 7-field VM/host grammar over
// the 6-field group grammar; allowGroup selects whether a
// "GROUP-<name>" action is accepted. A "-" token means unset.
func (p *Parser) parseRuleLine(line string, allowIface, allowGroup bool, filename string, lineno int) ([]*Rule, error) {
	fields := strings.Fields(line)
	want := 6
	if allowIface {
		want = 7
	}
	if len(fields) != want {
		return nil, ferrors.Errorf(ferrors.KindParse, "expected %d fields, got %d", want, len(fields))
	}

	idx := 0
	actionTok := fields[idx]
	idx++

	r := &Rule{File: filename, Line: lineno}
	if allowIface {
		r.Iface = unset(fields[idx])
		idx++
	}
	r.Source = unset(fields[idx])
	idx++
	r.Dest = unset(fields[idx])
	idx++
	r.Proto = unset(fields[idx])
	idx++
	r.DPort = unset(fields[idx])
	idx++
	r.SPort = unset(fields[idx])

	if err := p.validateFields(r); err != nil {
		return nil, err
	}

	return p.resolveAction(actionTok, r, allowGroup)
}

func unset(tok string) string {
	if tok == "-" {
		return ""
	}
	return tok
}

// validateFields resolves proto/port/address cardinalities and caches
// them on the rule (spec.md §3: nbsource/nbdest/nbdport/nbsport).
func (p *Parser) validateFields(r *Rule) error {
	var err error
	if r.Proto != "" {
		if _, ok := p.Services.LookupProtocol(r.Proto); !ok {
			return ferrors.Errorf(ferrors.KindResolution, "unknown protocol: %q", r.Proto)
		}
	}
	if r.NBSource, err = validateAddressList(r.Source); err != nil {
		return err
	}
	if r.NBDest, err = validateAddressList(r.Dest); err != nil {
		return err
	}
	if r.NBDPort, err = validatePortList(r.DPort, p.Services); err != nil {
		return err
	}
	if r.NBSPort, err = validatePortList(r.SPort, p.Services); err != nil {
		return err
	}
	return nil
}

// resolveAction implements the action grammar (spec.md §4.3): a bare
// terminal action, a GROUP-<name> reference, or a macro invocation
// that expands to one or more rules.
func (p *Parser) resolveAction(tok string, r *Rule, allowGroup bool) ([]*Rule, error) {
	switch Action(tok) {
	case ActionAccept, ActionDrop, ActionReject:
		r.Action = Action(tok)
		return []*Rule{r}, nil
	}

	if m := groupRefRe.FindStringSubmatch(tok); m != nil {
		if !allowGroup {
			return nil, ferrors.Errorf(ferrors.KindParse, "GROUP- references are not allowed inside group files: %q", tok)
		}
		r.Action = Action(tok)
		return []*Rule{r}, nil
	}

	if m := macroInvokeRe.FindStringSubmatch(tok); m != nil {
		name, inner := m[1], Action(m[2])
		rules, ok := p.Macros.Expand(name, r, inner)
		if !ok {
			return nil, ferrors.Errorf(ferrors.KindResolution, "unknown macro: %q", name)
		}
		for _, er := range rules {
			if err := p.validateFields(er); err != nil {
				return nil, err
			}
		}
		return rules, nil
	}

	return nil, ferrors.Errorf(ferrors.KindParse, "invalid action: %q", tok)
}

// parseOption parses one "[options]" line: "enable: 0|1",
// "policy-in: ACCEPT|DROP|REJECT", "policy-out: same".
func parseOption(line string, opts *Options) error {
	key, val, ok := strings.Cut(line, ":")
	if !ok {
		return ferrors.Errorf(ferrors.KindParse, "malformed option line: %q", line)
	}
	key = strings.TrimSpace(key)
	val = strings.TrimSpace(val)

	switch key {
	case "enable":
		n, err := strconv.Atoi(val)
		if err != nil || (n != 0 && n != 1) {
			return ferrors.Errorf(ferrors.KindParse, "enable must be 0 or 1, got %q", val)
		}
		opts.Enabled = n == 1
		opts.EnabledSet = true
	case "policy-in":
		pol, err := parsePolicy(val)
		if err != nil {
			return err
		}
		opts.PolicyIn = pol
	case "policy-out":
		if val == "same" {
			opts.PolicyOut = opts.PolicyIn
			return nil
		}
		pol, err := parsePolicy(val)
		if err != nil {
			return err
		}
		opts.PolicyOut = pol
	default:
		return ferrors.Errorf(ferrors.KindParse, "unknown option: %q", key)
	}
	return nil
}

func parsePolicy(val string) (Policy, error) {
	switch Policy(val) {
	case PolicyAccept, PolicyDrop, PolicyReject:
		return Policy(val), nil
	}
	return "", ferrors.Errorf(ferrors.KindParse, "invalid policy: %q", val)
}
