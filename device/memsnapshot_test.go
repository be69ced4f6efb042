package device

import (
	"context"
	"sync"
)

// memSnapshotStore is an in-memory SnapshotStore used by this package's
// tests; it mirrors the shape of the filesystem and postgres adapters
// without touching disk or a database.
type memSnapshotStore struct {
	mu   sync.Mutex
	data []byte
}

func (m *memSnapshotStore) Load(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, nil
}

func (m *memSnapshotStore) Save(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data = cp
	return nil
}
