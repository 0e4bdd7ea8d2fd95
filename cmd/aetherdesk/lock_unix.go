//go:build !windows

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/dixieflatline76/AetherDesk/config"
)

var lockFile *os.File

// lockPath is the single-instance lock file. It lives in the config directory
// so each user runs their own daemon.
func lockPath() string {
	if dir, err := config.Dir(); err == nil {
		return filepath.Join(dir, config.AppName+".lock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d.lock", config.AppName, os.Getuid()))
}

// acquireLock tries to acquire a single-instance lock (flock on Unix).
func acquireLock() (bool, error) {
	path := lockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return false, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			// Another instance holds the lock.
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	lockFile = file
	return true, nil
}

// releaseLock releases the single-instance lock.
func releaseLock() {
	if lockFile == nil {
		return
	}
	_ = unix.Flock(int(lockFile.Fd()), unix.LOCK_UN)
	lockFile.Close()
	os.Remove(lockFile.Name())
	lockFile = nil
}
