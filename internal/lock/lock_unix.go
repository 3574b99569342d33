//go:build unix

package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// LockDirectory takes an exclusive, non-blocking flock(2) on <dir>/LOCK.
// The lock lives as long as the returned Handle stays open.
func LockDirectory(dir string) (*Handle, error) {
	path := filepath.Join(dir, FileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s", ErrDirectoryInUse, dir)
	}

	return &Handle{f: f}, nil
}

// Release drops the flock and closes the lock file.
func (h *Handle) Release() error {
	if err := syscall.Flock(int(h.f.Fd()), syscall.LOCK_UN); err != nil {
		_ = h.f.Close()
		return fmt.Errorf("unlock: %w", err)
	}
	return h.f.Close()
}
