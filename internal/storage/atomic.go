package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes a file by streaming into a temporary file in the
// target directory and renaming it into place once fully written and synced.
// Readers see either the previous file or the complete new one.
func WriteFileAtomic(path string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return NewWriteError(path, fmt.Errorf("failed to create directory: %w", err))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return NewWriteError(path, fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	buf := bufio.NewWriter(tmp)
	if err = write(buf); err != nil {
		return NewWriteError(path, err)
	}
	if err = buf.Flush(); err != nil {
		return NewWriteError(path, fmt.Errorf("failed to flush: %w", err))
	}
	if err = tmp.Sync(); err != nil {
		return NewWriteError(path, fmt.Errorf("failed to sync: %w", err))
	}
	if err = tmp.Close(); err != nil {
		return NewWriteError(path, fmt.Errorf("failed to close temp file: %w", err))
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return NewWriteError(path, fmt.Errorf("failed to set permissions: %w", err))
	}
	if err = os.Rename(tmpName, path); err != nil {
		return NewWriteError(path, fmt.Errorf("failed to rename into place: %w", err))
	}
	return nil
}
