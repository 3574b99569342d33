//go:build windows

package lock

import (
	"fmt"
	"os"
	"path/filepath"
)

// LockDirectory creates <dir>/LOCK with O_EXCL. An existing file means the
// directory is in use (or a previous server crashed without cleaning up).
func LockDirectory(dir string) (*Handle, error) {
	path := filepath.Join(dir, FileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryInUse, dir)
	}

	return &Handle{f: f}, nil
}

// Release closes and removes the lock file.
func (h *Handle) Release() error {
	name := h.f.Name()
	if err := h.f.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
