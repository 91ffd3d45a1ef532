// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsManagedChainMatchesKnownShapes(t *testing.T) {
	cases := map[string]bool{
		"PVEFW-INPUT":     true,
		"PVEFW-FORWARD":   true,
		"tap100i0-IN":     true,
		"tap100i0-OUT":    true,
		"vmbr0-FW":        true,
		"GROUP-web-IN":    true,
		"GROUP-web-OUT":   true,
		"INPUT":           false,
		"DOCKER":          false,
		"tap100i0-SIDEWAYS": false,
	}
	for name, want := range cases {
		assert.Equal(t, want, IsManagedChain(name), "chain %q", name)
	}
}

func TestIsManagedChainHonorsLegacyPrefixes(t *testing.T) {
	assert.False(t, IsManagedChain("OLDFW-INPUT"))

	saved := legacyChainPrefixes
	legacyChainPrefixes = []string{"OLDFW-"}
	defer func() { legacyChainPrefixes = saved }()

	assert.True(t, IsManagedChain("OLDFW-INPUT"))
	assert.False(t, IsManagedChain("OLDFWSOMETHINGELSE"))
}

func TestParseSaveRegistersDeclarationOnlyChains(t *testing.T) {
	save := "*filter\n:PVEFW-INPUT - [0:0]\n:INPUT ACCEPT [0:0]\nCOMMIT\n"
	chains := ParseSave(save)
	assert.Equal(t, UnknownSig, chains["PVEFW-INPUT"])
	assert.NotContains(t, chains, "INPUT")
}

func TestParseSaveExtractsCanarySignature(t *testing.T) {
	save := "*filter\n:PVEFW-INPUT - [0:0]\n" +
		`-A PVEFW-INPUT -m comment --comment "PVESIG:abc123="` + "\n" +
		"COMMIT\n"
	chains := ParseSave(save)
	assert.Equal(t, "abc123=", chains["PVEFW-INPUT"])
}

func TestParseSaveUnmanagedRulesIgnored(t *testing.T) {
	save := "*filter\n:INPUT ACCEPT [0:0]\n-A INPUT -j DOCKER\nCOMMIT\n"
	chains := ParseSave(save)
	assert.Empty(t, chains)
}

func TestParseSaveRuleWithoutCanaryIsUnknownSig(t *testing.T) {
	save := "*filter\n:PVEFW-FORWARD - [0:0]\n-A PVEFW-FORWARD -j ACCEPT\nCOMMIT\n"
	chains := ParseSave(save)
	assert.Equal(t, UnknownSig, chains["PVEFW-FORWARD"])
}
