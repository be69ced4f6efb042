// Package fsstore is the default device.SnapshotStore backend: a single
// JSON file overwritten in full on every save, matching the original
// design's state_lock.json / state_audit.json persistence model.
package fsstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists a registry snapshot to a single file on disk.
type Store struct {
	path string
}

// New returns a Store writing snapshots to path.
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the snapshot file, returning (nil, nil) if it does not exist.
func (s *Store) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fsstore: read %s: %w", s.path, err)
	}
	return data, nil
}

// Save overwrites the snapshot file with data under a fresh file handle.
// The write goes to a temp file in the same directory and is renamed into
// place so a crash mid-write never leaves a truncated snapshot.
func (s *Store) Save(ctx context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("fsstore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fsstore: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("fsstore: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("fsstore: rename into place: %w", err)
	}
	return nil
}
