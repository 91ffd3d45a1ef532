// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package inventory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConf(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestFSProviderListVMsParsesNetLines(t *testing.T) {
	dir := t.TempDir()
	writeConf(t, dir, "100.conf", "name: test\nnet0: bridge=vmbr0,tag=5\nnet1: bridge=vmbr1\n")

	p := NewFSProvider(dir)
	vms, err := p.ListVMs(context.Background())
	require.NoError(t, err)
	require.Contains(t, vms, 100)
	assert.Len(t, vms[100].Nets, 2)
	assert.Equal(t, "vmbr0", vms[100].Nets["net0"].Bridge)
}

func TestFSProviderSkipsNonConfFiles(t *testing.T) {
	dir := t.TempDir()
	writeConf(t, dir, "notes.txt", "ignore me\n")
	writeConf(t, dir, "100.conf", "name: test\n")

	p := NewFSProvider(dir)
	vms, err := p.ListVMs(context.Background())
	require.NoError(t, err)
	assert.Len(t, vms, 1)
}

func TestFSProviderSkipsUnparsableVMButContinues(t *testing.T) {
	dir := t.TempDir()
	writeConf(t, dir, "100.conf", "net0: no-bridge-here\n")
	writeConf(t, dir, "101.conf", "net0: bridge=vmbr0\n")

	p := NewFSProvider(dir)
	vms, err := p.ListVMs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, vms[100].Nets)
	assert.Len(t, vms[101].Nets, 1)
}

func TestFSProviderMissingDirectoryReturnsEmpty(t *testing.T) {
	p := NewFSProvider(filepath.Join(t.TempDir(), "does-not-exist"))
	vms, err := p.ListVMs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, vms)
}
