// Package fsutil holds filesystem helpers shared by the config stores and the
// upload handler.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// rename is swapped out in tests to simulate a crash before the final step.
var rename = os.Rename

// WriteFileAtomic writes data to path through a temp file in the same
// directory, then renames it into place. Readers see either the old content
// or the new content, never a truncated file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	_, err := WriteAtomic(path, perm, func(w io.Writer) (int64, error) {
		n, err := w.Write(data)
		return int64(n), err
	})
	return err
}

// WriteAtomic streams content produced by fill into a temp file next to path
// and renames it into place once fill and fsync succeed. It returns the number
// of bytes written.
func WriteAtomic(path string, perm os.FileMode, fill func(io.Writer) (int64, error)) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	n, err := fill(tmp)
	if err != nil {
		_ = tmp.Close()
		return n, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return n, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return n, fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := rename(tmpName, path); err != nil {
		return n, fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	committed = true
	return n, nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
