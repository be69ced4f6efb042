package device

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditStoreUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	store, err := NewAuditStore(ctx, &memSnapshotStore{})
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, AuditDevice{ID: "client1", ClientMACKey: "key"}))
	got, ok := store.Get("client1")
	require.True(t, ok)
	assert.Equal(t, "key", got.ClientMACKey)
}

func TestAuditStoreAppendLogOrdering(t *testing.T) {
	ctx := context.Background()
	store, err := NewAuditStore(ctx, &memSnapshotStore{})
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, AuditDevice{ID: "client1"}))

	require.NoError(t, store.AppendLog(ctx, "client1", LogEvent{ID: "01", Envelope: json.RawMessage(`{}`)}))
	require.NoError(t, store.AppendLog(ctx, "client1", LogEvent{ID: "02", Envelope: json.RawMessage(`{}`)}))

	logs := store.Logs("client1")
	require.Len(t, logs, 2)
	assert.Equal(t, "01", logs[0].ID)
	assert.Equal(t, "02", logs[1].ID)
}

func TestAuditStoreLogsUnknownDeviceIsEmpty(t *testing.T) {
	ctx := context.Background()
	store, err := NewAuditStore(ctx, &memSnapshotStore{})
	require.NoError(t, err)
	assert.Empty(t, store.Logs("ghost"))
}
