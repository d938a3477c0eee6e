package store

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// Lockfile timing for cross-process coordination of a FileStore document.
const (
	lockMaxRetries = 10
	lockRetryDelay = 100 * time.Millisecond
	staleLockAge   = 30 * time.Second
)

// acquireFileLock creates path+".lock" exclusively and returns a release
// function. A lock older than staleLockAge whose owning process is gone is
// removed and retried.
func acquireFileLock(path string) (func(), error) {
	lockPath := path + ".lock"

	if err := os.MkdirAll(filepath.Dir(lockPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	for range lockMaxRetries {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, _ = fmt.Fprintf(f, "%d", os.Getpid())
			_ = f.Close()
			return func() { _ = os.Remove(lockPath) }, nil
		}

		if removeStaleLock(lockPath) {
			continue
		}
		time.Sleep(lockRetryDelay)
	}

	return nil, fmt.Errorf("could not acquire lock on %s after %d attempts", lockPath, lockMaxRetries)
}

// removeStaleLock reports whether it removed an abandoned lock file.
func removeStaleLock(lockPath string) bool {
	info, err := os.Stat(lockPath)
	if err != nil || time.Since(info.ModTime()) <= staleLockAge {
		return false
	}
	if lockHolderAlive(lockPath) {
		return false
	}
	_ = os.Remove(lockPath)
	return true
}

func lockHolderAlive(lockPath string) bool {
	data, err := os.ReadFile(lockPath)
	if err != nil || len(data) == 0 {
		return false
	}
	var pid int
	if _, scanErr := fmt.Sscanf(string(data), "%d", &pid); scanErr != nil || pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes for existence without delivering anything.
	return proc.Signal(syscall.Signal(0)) == nil
}
