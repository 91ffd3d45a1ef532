// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupProtocolAcceptsRawUnknownNumber(t *testing.T) {
	d := NewServicesDirectory()
	e, ok := d.LookupProtocol("253")
	require.True(t, ok)
	assert.Equal(t, 253, e.Number)
}

func TestLookupServiceUnknownNameFails(t *testing.T) {
	d := NewServicesDirectory()
	_, ok := d.LookupService("definitely-not-a-registered-service-name")
	assert.False(t, ok)
}

func TestLookupProtocolUnknownNameFails(t *testing.T) {
	d := NewServicesDirectory()
	_, ok := d.LookupProtocol("definitely-not-a-protocol-name")
	assert.False(t, ok)
}
