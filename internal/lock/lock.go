// Package lock keeps two server processes from serving the same root
// directory. Bucket files are only serialized in-process, so a second
// process would race the first one's load/store cycles.
package lock

import (
	"errors"
	"os"
)

// FileName is the lock file created inside the root directory.
const FileName = "LOCK"

var ErrDirectoryInUse = errors.New("directory already in use by another rmp server")

// Handle is a held directory lock. Release it exactly once.
type Handle struct {
	f *os.File
}
