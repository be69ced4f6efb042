package device

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sage-x-project/lockaudit/internal/metrics"
)

// LockStore is the paired-device registry used by the lock server. It is a
// process-wide singleton with interior mutability: readers see immutable
// clones of each entry, writers take the store's single lock, and every
// mutation is followed by a whole-file snapshot write.
type LockStore struct {
	mu       sync.RWMutex
	devices  map[string]PairedDevice
	snapshot SnapshotStore
}

// NewLockStore loads devices from snap, starting empty if the snapshot is
// missing or malformed.
func NewLockStore(ctx context.Context, snap SnapshotStore) (*LockStore, error) {
	s := &LockStore{devices: make(map[string]PairedDevice), snapshot: snap}
	data, err := snap.Load(ctx)
	if err != nil || len(data) == 0 {
		return s, nil
	}
	var devices map[string]PairedDevice
	if err := json.Unmarshal(data, &devices); err != nil {
		return s, nil
	}
	s.devices = devices
	return s, nil
}

// HasPairedDevices is true when any device has ever been stored, regardless
// of expiry — it gates whether a new pairing attempt may claim the initial
// (root) slot.
func (s *LockStore) HasPairedDevices() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices) > 0
}

// AddDevice inserts or overwrites d and persists the registry.
func (s *LockStore) AddDevice(ctx context.Context, d PairedDevice) error {
	start := time.Now()
	defer func() { metrics.DeviceOperationDuration.WithLabelValues("lock", "add").Observe(time.Since(start).Seconds()) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.ID] = d.clone()
	if err := s.persistLocked(ctx); err != nil {
		return err
	}
	metrics.DevicesRegistered.WithLabelValues("lock").Inc()
	metrics.DevicesActive.WithLabelValues("lock").Set(float64(len(s.devices)))
	return nil
}

// GetDevice returns the device by id if present and not expired.
func (s *LockStore) GetDevice(id string) (PairedDevice, bool) {
	start := time.Now()
	defer func() { metrics.DeviceOperationDuration.WithLabelValues("lock", "get").Observe(time.Since(start).Seconds()) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[id]
	if !ok {
		return PairedDevice{}, false
	}
	if !unexpired(d.ExpiresAt) {
		metrics.DevicesExpired.WithLabelValues("lock").Inc()
		return PairedDevice{}, false
	}
	return d.clone(), true
}

// GetDeviceForEntity returns the device by id if present, unexpired, and
// authorized for entityID.
func (s *LockStore) GetDeviceForEntity(id, entityID string) (PairedDevice, bool) {
	d, ok := s.GetDevice(id)
	if !ok || !d.AllowsEntity(entityID) {
		return PairedDevice{}, false
	}
	return d, true
}

// EffectiveEntities returns the device's own allowed-entities list, or nil
// if the device is unknown. Used by pairing to intersect a delegate's
// requested entities against its delegator's.
func (s *LockStore) EffectiveEntities(id string) ([]string, bool) {
	d, ok := s.GetDevice(id)
	if !ok {
		return nil, false
	}
	return d.AllowedEntities, true
}

func (s *LockStore) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(s.devices)
	if err != nil {
		return fmt.Errorf("device: marshal lock store: %w", err)
	}
	return s.snapshot.Save(ctx, data)
}

func unexpired(expiresAt int64) bool {
	return expiresAt > time.Now().UnixMilli()
}
