// Package pgstore is an optional device.SnapshotStore backend storing the
// registry as a single JSONB blob in PostgreSQL, for deployments that want
// the registry durable across ephemeral containers rather than tied to a
// local disk.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists a single named snapshot row in a PostgreSQL table.
type Store struct {
	pool  *pgxpool.Pool
	table string
	key   string
}

// New returns a Store that reads and writes the row identified by key in
// table (created with EnsureSchema if it doesn't already exist).
func New(pool *pgxpool.Pool, table, key string) *Store {
	return &Store{pool: pool, table: table, key: key}
}

// EnsureSchema creates the snapshot table if it does not already exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		snapshot_key TEXT PRIMARY KEY,
		data JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("pgstore: ensure schema: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, or (nil, nil) if no row exists yet.
func (s *Store) Load(ctx context.Context) ([]byte, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE snapshot_key = $1`, s.table)
	var data []byte
	err := s.pool.QueryRow(ctx, query, s.key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("pgstore: load snapshot %q: %w", s.key, err)
	}
	return data, nil
}

// Save upserts the snapshot row.
func (s *Store) Save(ctx context.Context, data []byte) error {
	query := fmt.Sprintf(`INSERT INTO %s (snapshot_key, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (snapshot_key) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`, s.table)
	if _, err := s.pool.Exec(ctx, query, s.key, data); err != nil {
		return fmt.Errorf("pgstore: save snapshot %q: %w", s.key, err)
	}
	return nil
}
