// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNetExtractsBridgeTagAndMAC(t *testing.T) {
	iface, err := ParseNet("virtio=AA:BB:CC:DD:EE:FF,bridge=vmbr0,tag=10,firewall=1")
	require.NoError(t, err)
	assert.Equal(t, "vmbr0", iface.Bridge)
	assert.Equal(t, 10, iface.Tag)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", iface.MAC)
}

func TestParseNetRequiresBridge(t *testing.T) {
	_, err := ParseNet("virtio=AA:BB:CC:DD:EE:FF")
	require.Error(t, err)
}

func TestParseNetRejectsNonNumericTag(t *testing.T) {
	_, err := ParseNet("bridge=vmbr0,tag=not-a-number")
	require.Error(t, err)
}

func TestParseNetIgnoresUnknownKeys(t *testing.T) {
	iface, err := ParseNet("bridge=vmbr1,queues=4,mtu=1500")
	require.NoError(t, err)
	assert.Equal(t, "vmbr1", iface.Bridge)
	assert.Equal(t, 0, iface.Tag)
}

func TestParseNetUppercasesMAC(t *testing.T) {
	iface, err := ParseNet("e1000=aa:bb:cc:dd:ee:ff,bridge=vmbr0")
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", iface.MAC)
}

func TestParseNetRejectsMalformedMAC(t *testing.T) {
	_, err := ParseNet("virtio=not-a-mac,bridge=vmbr0")
	require.Error(t, err)
}
