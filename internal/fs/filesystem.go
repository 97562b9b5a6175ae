// Package fs holds the file helpers shared by the on-disk stores.
package fs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrNotExist is returned by CopyTo when the source file is missing.
var ErrNotExist = errors.New("file does not exist")

// WriteFileAtomic writes r to path through a temp file in the same
// directory and a rename, so readers never see a partial file. When
// expectedSize is >= 0 the byte count must match or nothing is written.
func WriteFileAtomic(path string, r io.Reader, expectedSize int64, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("writing data: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if expectedSize >= 0 && written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	committed = true
	return nil
}

// WriteBytesAtomic is WriteFileAtomic for an in-memory buffer.
func WriteBytesAtomic(path string, data []byte, perm os.FileMode) error {
	return WriteFileAtomic(path, bytes.NewReader(data), int64(len(data)), perm)
}

// CopyTo streams the file at path into w.
func CopyTo(path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	return nil
}

// ResolveOutput makes rawPath absolute and checks it is a new file in an
// existing directory.
func ResolveOutput(rawPath string) (string, error) {
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	if _, err := os.Lstat(abs); err == nil {
		return "", fmt.Errorf("output already exists: %s", abs)
	}
	info, err := os.Stat(filepath.Dir(abs))
	if err != nil {
		return "", fmt.Errorf("output directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", filepath.Dir(abs))
	}
	return abs, nil
}
