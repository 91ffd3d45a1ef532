// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package lockfile provides the advisory write lock that serializes a
// compile+apply cycle against any concurrent invocation (spec.md §5:
// "a second invocation must not race to install a partially-built
// ruleset").
package lockfile

import (
	"os"
	"time"

	"golang.org/x/sys/unix"

	ferrors "go.pvefw.dev/pvefw/internal/errors"
)

const retryInterval = 100 * time.Millisecond

// Lock holds an open, flock'd file descriptor until Unlock releases
// it.
type Lock struct {
	f *os.File
}

// Acquire takes an exclusive advisory lock on path, retrying LOCK_NB
// until it succeeds or timeout elapses. Failure to acquire within
// timeout is a KindLockTimeout error, fatal for the current
// invocation (spec.md §7.4).
func Acquire(path string, timeout time.Duration) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindLockTimeout, "opening lock file")
	}

	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &Lock{f: f}, nil
		}
		if err != unix.EWOULDBLOCK && err != unix.EAGAIN {
			f.Close()
			return nil, ferrors.Wrap(err, ferrors.KindLockTimeout, "flock failed")
		}
		if time.Now().After(deadline) {
			f.Close()
			return nil, ferrors.Errorf(ferrors.KindLockTimeout, "could not acquire lock %s within %s", path, timeout)
		}
		time.Sleep(retryInterval)
	}
}

// WithLock acquires the lock, runs fn, and always releases the lock
// before returning, mirroring the "lock_file(path, timeout, fn)"
// external interface (spec.md §6).
func WithLock(path string, timeout time.Duration, fn func() error) error {
	lk, err := Acquire(path, timeout)
	if err != nil {
		return err
	}
	defer lk.Unlock()
	return fn()
}

// Unlock releases the lock and closes the underlying file.
func (l *Lock) Unlock() error {
	defer l.f.Close()
	return unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}
