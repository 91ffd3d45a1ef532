// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package lockfile

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "go.pvefw.dev/pvefw/internal/errors"
)

func TestWithLockRunsFnAndReleases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pvefw.lck")
	ran := false
	err := WithLock(path, time.Second, func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	// A second acquisition must succeed now that the first released.
	err = WithLock(path, time.Second, func() error { return nil })
	require.NoError(t, err)
}

func TestAcquireTimesOutWhenAlreadyHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pvefw.lck")
	held, err := Acquire(path, time.Second)
	require.NoError(t, err)
	defer held.Unlock()

	_, err = Acquire(path, 200*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, ferrors.KindLockTimeout, ferrors.GetKind(err))
}

func TestWithLockPropagatesFnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pvefw.lck")
	sentinel := ferrors.New(ferrors.KindApply, "boom")
	err := WithLock(path, time.Second, func() error { return sentinel })
	assert.Equal(t, sentinel, err)
}
