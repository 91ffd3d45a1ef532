// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMacroExpandIsCaseInsensitive(t *testing.T) {
	r := &Rule{}
	rules, ok := DefaultMacros.Expand("http", r, ActionAccept)
	require.True(t, ok)
	require.Len(t, rules, 1)
	assert.Equal(t, "tcp", rules[0].Proto)
	assert.Equal(t, "80", rules[0].DPort)
}

func TestMacroExpandUnknownNameFails(t *testing.T) {
	_, ok := DefaultMacros.Expand("NoSuchMacro", &Rule{}, ActionAccept)
	assert.False(t, ok)
}

func TestMacroCanonicalNamePreservesCapitalization(t *testing.T) {
	canon, ok := DefaultMacros.CanonicalName("https")
	require.True(t, ok)
	assert.Equal(t, "HTTPS", canon)
}

func TestMacroTemplateParamSentinelCopiesOwnField(t *testing.T) {
	registry := newRegistry(map[string][]RuleTemplate{
		"Echo": {{Proto: sentinelParam, DPort: sentinelParam}},
	})
	r := &Rule{Proto: "udp", DPort: "7"}
	rules, ok := registry.Expand("Echo", r, ActionAccept)
	require.True(t, ok)
	require.Len(t, rules, 1)
	assert.Equal(t, "udp", rules[0].Proto)
	assert.Equal(t, "7", rules[0].DPort)
}

func TestMacroTemplateSourceDestSentinelsSwap(t *testing.T) {
	registry := newRegistry(map[string][]RuleTemplate{
		"Swap": {{Source: sentinelDest, Dest: sentinelSource}},
	})
	r := &Rule{Source: "10.0.0.1", Dest: "10.0.0.2"}
	rules, ok := registry.Expand("Swap", r, ActionAccept)
	require.True(t, ok)
	require.Len(t, rules, 1)
	assert.Equal(t, "10.0.0.2", rules[0].Source)
	assert.Equal(t, "10.0.0.1", rules[0].Dest)
}

func TestMacroExpandGivesEachRuleTheInnerAction(t *testing.T) {
	rules, ok := DefaultMacros.Expand("DNS", &Rule{}, ActionDrop)
	require.True(t, ok)
	for _, r := range rules {
		assert.Equal(t, ActionDrop, r.Action)
	}
}
