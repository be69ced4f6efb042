package device

import "context"

// SnapshotStore is the persistence boundary for a registry: a keyed
// snapshot sink and restore source. Both LockStore and AuditStore serialize
// their entire contents to one blob and hand it to Save after every
// mutation; Load is called once at startup.
type SnapshotStore interface {
	// Load returns the last saved snapshot, or (nil, nil) if none exists.
	Load(ctx context.Context) ([]byte, error)
	// Save overwrites the snapshot with data.
	Save(ctx context.Context, data []byte) error
}
