package tflexport

import (
	"fmt"
	"os"
	"time"
)

// Locker provides mutual exclusion between processes writing the same
// output directory.
type Locker interface {
	// Lock acquires an exclusive lock, waiting up to the configured timeout.
	Lock() error

	// Unlock releases the lock. Safe to call multiple times.
	Unlock() error
}

// fileLock implements Locker with an OS advisory lock on a lock file.
// tryLock and release are provided per platform.
type fileLock struct {
	// file is the lock file handle.
	file *os.File

	// timeout is the maximum duration to wait for lock acquisition.
	timeout time.Duration

	// locked tracks whether the lock is currently held.
	locked bool
}

// Ensure fileLock implements Locker.
var _ Locker = (*fileLock)(nil)

// newFileLock opens (creating if needed) the lock file at path. The file is
// left in place after Unlock; only the lock held on it matters.
func newFileLock(path string, timeout time.Duration) (*fileLock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	return &fileLock{
		file:    file,
		timeout: timeout,
	}, nil
}

// Lock polls tryLock with backoff until it succeeds or the timeout expires.
func (l *fileLock) Lock() error {
	if l.locked {
		return nil
	}
	if l.file == nil {
		return fmt.Errorf("lock file already closed")
	}

	deadline := time.Now().Add(l.timeout)
	sleepDuration := 10 * time.Millisecond

	for {
		if err := l.tryLock(); err == nil {
			l.locked = true
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("lock timeout after %v", l.timeout)
		}

		time.Sleep(sleepDuration)
		if sleepDuration < 100*time.Millisecond {
			sleepDuration *= 2
		}
	}
}

// Unlock releases the lock if held and closes the file handle.
func (l *fileLock) Unlock() error {
	if l.file == nil {
		return nil
	}

	var err error
	if l.locked {
		err = l.release()
		l.locked = false
	}
	l.file.Close()
	l.file = nil

	return err
}
