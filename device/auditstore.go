package device

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sage-x-project/lockaudit/internal/metrics"
)

// AuditStore is the registered-client registry used by the audit
// co-signer. Each entry owns its own append-only log; pushes to a single
// device's log are ordered by an exclusive lock held for the duration of
// the append, matching the "no ordering across devices, total order within
// one device's log" guarantee.
type AuditStore struct {
	mu       sync.RWMutex
	devices  map[string]AuditDevice
	snapshot SnapshotStore
}

// NewAuditStore loads devices from snap, starting empty if the snapshot is
// missing or malformed.
func NewAuditStore(ctx context.Context, snap SnapshotStore) (*AuditStore, error) {
	s := &AuditStore{devices: make(map[string]AuditDevice), snapshot: snap}
	data, err := snap.Load(ctx)
	if err != nil || len(data) == 0 {
		return s, nil
	}
	var devices map[string]AuditDevice
	if err := json.Unmarshal(data, &devices); err != nil {
		return s, nil
	}
	s.devices = devices
	return s, nil
}

// Upsert inserts or overwrites the device identified by d.ID. A client
// re-registering with the same MAC key recovers its identity, but its
// server-side signing keypair rotates — this is intentional.
func (s *AuditStore) Upsert(ctx context.Context, d AuditDevice) error {
	start := time.Now()
	defer func() { metrics.DeviceOperationDuration.WithLabelValues("audit", "add").Observe(time.Since(start).Seconds()) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.devices[d.ID]
	s.devices[d.ID] = d.clone()
	if err := s.persistLocked(ctx); err != nil {
		return err
	}
	if !existed {
		metrics.DevicesRegistered.WithLabelValues("audit").Inc()
	}
	metrics.DevicesActive.WithLabelValues("audit").Set(float64(len(s.devices)))
	return nil
}

// Get returns the device by id.
func (s *AuditStore) Get(id string) (AuditDevice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[id]
	if !ok {
		return AuditDevice{}, false
	}
	return d.clone(), true
}

// AppendLog appends ev to the device's log and persists the registry.
func (s *AuditStore) AppendLog(ctx context.Context, id string, ev LogEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return fmt.Errorf("device: unknown audit device %q", id)
	}
	d.Log = append(d.Log, ev)
	s.devices[id] = d
	return s.persistLocked(ctx)
}

// Logs returns the full log for id, or an empty slice if the device is
// unknown — the audit server's GET /logs endpoint never 404s on an unknown
// device per the original design, only a populated log can be non-empty.
func (s *AuditStore) Logs(id string) []LogEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[id]
	if !ok {
		return nil
	}
	cp := make([]LogEvent, len(d.Log))
	copy(cp, d.Log)
	return cp
}

func (s *AuditStore) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(s.devices)
	if err != nil {
		return fmt.Errorf("device: marshal audit store: %w", err)
	}
	return s.snapshot.Save(ctx, data)
}
