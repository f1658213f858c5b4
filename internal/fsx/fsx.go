// Package fsx holds small filesystem helpers for the files kasaio owns on
// disk: the compose document, the env file, and the installation state.
package fsx

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteAtomic writes data to a temp file in the target directory and renames
// it into place. Docker Compose and concurrent kasaio invocations read these
// files and must never observe a partial write.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %q: %w", dir, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file %q: %w", tmpName, err)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file %q: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace file %q: %w", path, err)
	}
	return nil
}

// ReadIfExists returns the file contents, or (nil, false) when the file does
// not exist yet. A first install starts with none of the managed files on
// disk, so absence is not an error.
func ReadIfExists(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read file %q: %w", path, err)
	}
	return data, true, nil
}
