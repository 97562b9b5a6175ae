package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"wake-go/internal/wake"
)

type memorySnapshot struct {
	data    []byte
	version int64
}

// MemoryVault keeps snapshots in memory. Safe for concurrent use.
type MemoryVault struct {
	name      string
	mu        sync.RWMutex
	snapshots map[string]memorySnapshot
}

func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{name: name, snapshots: make(map[string]memorySnapshot)}
}

func (m *MemoryVault) PutSnapshot(ctx context.Context, deviceID string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[deviceID] = memorySnapshot{data: data, version: version}
	return nil
}

func (m *MemoryVault) GetSnapshot(ctx context.Context, deviceID string, w io.Writer) error {
	m.mu.RLock()
	snap, ok := m.snapshots[deviceID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w for device %s", wake.ErrSnapshotNotFound, deviceID)
	}
	if _, err := io.Copy(w, bytes.NewReader(snap.data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// SnapshotVersion returns 0 for a device without a snapshot.
func (m *MemoryVault) SnapshotVersion(ctx context.Context, deviceID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshots[deviceID].version, nil
}

func (m *MemoryVault) Name() string { return m.name }

func (m *MemoryVault) ValidateSetup(ctx context.Context) error { return nil }

var _ wake.Vault = (*MemoryVault)(nil)
