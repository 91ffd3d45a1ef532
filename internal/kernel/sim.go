// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package kernel

import (
	"context"
	"strings"
	"sync"
)

// SimAdapter is an in-memory stand-in for a real kernel filter table,
// used by reconciler tests so they can exercise discovery/diff/apply
// without a real iptables binary.
type SimAdapter struct {
	mu    sync.Mutex
	rules map[string][]string // chain -> ordered "-A chain ..." bodies, in save-line order
}

// NewSimAdapter returns an empty simulated filter table.
func NewSimAdapter() *SimAdapter {
	return &SimAdapter{rules: make(map[string][]string)}
}

func (s *SimAdapter) GetChains(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ParseSave(s.renderLocked()), nil
}

func (s *SimAdapter) RuleExists(ctx context.Context, ruleArgs []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.Join(ruleArgs, " ")
	for chain, lines := range s.rules {
		for _, line := range lines {
			if strings.Join(append([]string{chain}, strings.Fields(line)...), " ") == needle {
				return true, nil
			}
		}
	}
	return false, nil
}

// InsertJump records a builtin-chain jump as a synthetic rule body so
// RuleExists/GetChains observe it like any other installed rule.
func (s *SimAdapter) InsertJump(ctx context.Context, builtinChain, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	body := "-j " + target
	s.rules[builtinChain] = append([]string{body}, s.rules[builtinChain]...)
	return nil
}

// Apply merges script into the simulated table: chains/rules it does
// not mention are left untouched, matching "iptables-restore -n"
// (noflush) semantics. A ":chain" declaration creates the chain if
// absent, "-F chain" clears its rules, "-X chain" removes it, "-A
// chain ..." appends a rule body, and "-D chain ..." removes the
// first matching rule body from that chain.
func (s *SimAdapter) Apply(ctx context.Context, script string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rules == nil {
		s.rules = make(map[string][]string)
	}
	for _, line := range strings.Split(script, "\n") {
		switch {
		case strings.HasPrefix(line, ":"):
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			name := strings.TrimPrefix(fields[0], ":")
			if _, ok := s.rules[name]; !ok {
				s.rules[name] = nil
			}
		case strings.HasPrefix(line, "-F "):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			s.rules[fields[1]] = nil
		case strings.HasPrefix(line, "-X "):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			delete(s.rules, fields[1])
		case strings.HasPrefix(line, "-A "):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			chain := fields[1]
			s.rules[chain] = append(s.rules[chain], strings.Join(fields[2:], " "))
		case strings.HasPrefix(line, "-D "):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			chain := fields[1]
			body := strings.Join(fields[2:], " ")
			for i, existing := range s.rules[chain] {
				if existing == body {
					s.rules[chain] = append(s.rules[chain][:i], s.rules[chain][i+1:]...)
					break
				}
			}
		}
	}
	return nil
}

// renderLocked serializes the simulated table into the same textual
// form iptables-save would produce, for ParseSave to consume. Caller
// must hold s.mu.
func (s *SimAdapter) renderLocked() string {
	var b strings.Builder
	b.WriteString("*filter\n")
	for chain := range s.rules {
		b.WriteString(":" + chain + " - [0:0]\n")
	}
	for chain, lines := range s.rules {
		for _, line := range lines {
			b.WriteString("-A " + chain + " " + line + "\n")
		}
	}
	b.WriteString("COMMIT\n")
	return b.String()
}

// Seed installs chain contents directly, bypassing Apply's script
// parsing; useful for constructing a pre-existing kernel state in
// tests.
func (s *SimAdapter) Seed(chain string, bodies []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[chain] = append([]string(nil), bodies...)
}
