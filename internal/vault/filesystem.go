package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"wake-go/internal/fs"
	"wake-go/internal/wake"
)

// FileSystemVault stores snapshots under a root directory:
//
//	<root>/
//	  snapshots/
//	    <deviceID>.snap     (sealed database snapshot)
//	    <deviceID>.version  (decimal version of the snapshot)
type FileSystemVault struct {
	name         string
	root         string
	snapshotsDir string
}

// NewFileSystemVault creates the directory layout under root if needed.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	dir := filepath.Join(root, "snapshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}
	return &FileSystemVault{name: name, root: root, snapshotsDir: dir}, nil
}

func (v *FileSystemVault) Name() string { return v.name }

func (v *FileSystemVault) snapshotPath(deviceID string) string {
	return filepath.Join(v.snapshotsDir, deviceID+".snap")
}

func (v *FileSystemVault) versionPath(deviceID string) string {
	return filepath.Join(v.snapshotsDir, deviceID+".version")
}

// PutSnapshot writes the snapshot before its version file, so a reader
// never sees a version newer than the data it describes.
func (v *FileSystemVault) PutSnapshot(ctx context.Context, deviceID string, r io.Reader, size int64, version int64) error {
	if err := fs.WriteFileAtomic(v.snapshotPath(deviceID), r, size, 0o600); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := fs.WriteBytesAtomic(v.versionPath(deviceID), []byte(strconv.FormatInt(version, 10)), 0o644); err != nil {
		return fmt.Errorf("writing version: %w", err)
	}
	return nil
}

func (v *FileSystemVault) GetSnapshot(ctx context.Context, deviceID string, w io.Writer) error {
	err := fs.CopyTo(v.snapshotPath(deviceID), w)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w for device %s", wake.ErrSnapshotNotFound, deviceID)
	}
	return err
}

// SnapshotVersion returns 0 when no version file exists.
func (v *FileSystemVault) SnapshotVersion(ctx context.Context, deviceID string) (int64, error) {
	data, err := os.ReadFile(v.versionPath(deviceID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}
	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup checks the layout exists and is writable.
func (v *FileSystemVault) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(v.snapshotsDir)
	if err != nil {
		return fmt.Errorf("vault not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault path is not a directory: %s", v.snapshotsDir)
	}
	probe := filepath.Join(v.snapshotsDir, ".probe")
	if err := fs.WriteBytesAtomic(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("vault not writable: %w", err)
	}
	return os.Remove(probe)
}

var _ wake.Vault = (*FileSystemVault)(nil)
