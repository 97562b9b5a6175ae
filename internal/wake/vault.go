package wake

import (
	"context"
	"errors"
	"io"
)

// ErrSnapshotNotFound is returned by GetSnapshot for a device with no backup.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Vault stores encrypted snapshots of the alarm database, one slot per device.
type Vault interface {
	// Name is the configured name of the vault.
	Name() string

	// PutSnapshot stores a snapshot for deviceID, replacing any previous one.
	// size is the number of bytes that will be read from r.
	// version is stored alongside for ordering checks.
	PutSnapshot(ctx context.Context, deviceID string, r io.Reader, size int64, version int64) error

	// GetSnapshot writes the stored snapshot for deviceID to w, or returns an
	// error wrapping ErrSnapshotNotFound.
	GetSnapshot(ctx context.Context, deviceID string, w io.Writer) error

	// SnapshotVersion returns the stored version, or 0 if there is none.
	SnapshotVersion(ctx context.Context, deviceID string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}
