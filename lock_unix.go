//go:build !windows

package tflexport

import "golang.org/x/sys/unix"

// tryLock takes a non-blocking flock() on the lock file.
func (l *fileLock) tryLock() error {
	return unix.Flock(int(l.file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

// release drops the flock() taken by tryLock.
func (l *fileLock) release() error {
	return unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
}
