// Package store persists buckets as one JSON file per hash under a root
// directory:
//
//	<root>/<lowercase-hex-hash>   JSON array of records
//
// A missing file is an empty bucket. Writes go to a temporary file in the
// same directory which is then renamed over the bucket, so a concurrent or
// post-crash Load sees either the old or the new content, never a mix.
//
// Store does no locking of its own. Callers must serialize Load/Save for a
// given hash (see package guard).
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/0xRadioAc7iv/go-rmp/internal/hash"
)

const (
	tempPattern = ".bucket-*.tmp"
	tempPrefix  = ".bucket-"
	tempSuffix  = ".tmp"

	dirPerm  = 0755
	filePerm = 0644
)

// IOError reports a bucket file that could not be read, parsed or written.
// It is never swallowed into an empty bucket.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("bucket %s %s: %v", e.Op, filepath.Base(e.Path), e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

type Store struct {
	root string
}

// New opens the bucket directory at root, creating it when needed, and
// removes temporary files left behind by an interrupted Save.
func New(root string) (*Store, error) {
	s := &Store{root: filepath.Clean(root)}

	if err := s.openRootDirectory(); err != nil {
		return nil, err
	}
	if err := s.sweepTempFiles(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) Root() string {
	return s.root
}

// Path returns the file that holds the bucket for h.
func (s *Store) Path(h uint32) string {
	return filepath.Join(s.root, hash.Hex(h))
}

// Load reads the bucket for h. A missing file yields an empty bucket; an
// unreadable or unparsable one yields an *IOError.
func (s *Store) Load(h uint32) (Bucket, error) {
	path := s.Path(h)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Bucket{}, nil
		}
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}

	var b Bucket
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, &IOError{Op: "parse", Path: path, Err: err}
	}

	return b, nil
}

// Save replaces the bucket for h with b. An empty bucket removes the file.
func (s *Store) Save(h uint32, b Bucket) error {
	path := s.Path(h)

	if len(b) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &IOError{Op: "remove", Path: path, Err: err}
		}
		return nil
	}

	data, err := json.Marshal(b)
	if err != nil {
		return &IOError{Op: "encode", Path: path, Err: err}
	}

	if err := writeFileAtomic(path, data); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}

	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), tempPattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

func (s *Store) openRootDirectory() error {
	info, err := os.Stat(s.root)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat root directory: %w", err)
		}

		log.Info().Str("root", s.root).Msg("root directory does not exist, creating it")
		if err := os.MkdirAll(s.root, dirPerm); err != nil {
			return fmt.Errorf("create root directory: %w", err)
		}
		return nil
	}

	if !info.IsDir() {
		return fmt.Errorf("root %s is not a directory", s.root)
	}

	return nil
}

// sweepTempFiles removes '.bucket-*.tmp' files inside the root directory.
func (s *Store) sweepTempFiles() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("scan root directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, tempPrefix) || !strings.HasSuffix(name, tempSuffix) {
			continue
		}

		if err := os.Remove(filepath.Join(s.root, name)); err != nil {
			return fmt.Errorf("remove stale temp file: %w", err)
		}
		log.Warn().Str("file", name).Msg("removed stale bucket temp file")
	}

	return nil
}
