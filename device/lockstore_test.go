package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockStoreAddAndGet(t *testing.T) {
	ctx := context.Background()
	store, err := NewLockStore(ctx, &memSnapshotStore{})
	require.NoError(t, err)

	assert.False(t, store.HasPairedDevices())

	d := PairedDevice{ID: "dev1", ExpiresAt: NoExpiry}
	require.NoError(t, store.AddDevice(ctx, d))

	assert.True(t, store.HasPairedDevices())
	got, ok := store.GetDevice("dev1")
	require.True(t, ok)
	assert.Equal(t, "dev1", got.ID)
}

func TestLockStoreExpiryIsStrict(t *testing.T) {
	ctx := context.Background()
	store, err := NewLockStore(ctx, &memSnapshotStore{})
	require.NoError(t, err)

	now := time.Now().UnixMilli()
	require.NoError(t, store.AddDevice(ctx, PairedDevice{ID: "exact-now", ExpiresAt: now}))
	_, ok := store.GetDevice("exact-now")
	assert.False(t, ok, "expires_at == now() must be invisible (strict >)")

	require.NoError(t, store.AddDevice(ctx, PairedDevice{ID: "future", ExpiresAt: now + 10_000}))
	_, ok = store.GetDevice("future")
	assert.True(t, ok)
}

func TestLockStoreAllowedEntities(t *testing.T) {
	ctx := context.Background()
	store, err := NewLockStore(ctx, &memSnapshotStore{})
	require.NoError(t, err)

	require.NoError(t, store.AddDevice(ctx, PairedDevice{ID: "universal", ExpiresAt: NoExpiry, AllowedEntities: nil}))
	_, ok := store.GetDeviceForEntity("universal", "anything")
	assert.True(t, ok)

	require.NoError(t, store.AddDevice(ctx, PairedDevice{ID: "scoped", ExpiresAt: NoExpiry, AllowedEntities: []string{"front"}}))
	_, ok = store.GetDeviceForEntity("scoped", "front")
	assert.True(t, ok)
	_, ok = store.GetDeviceForEntity("scoped", "back")
	assert.False(t, ok)

	require.NoError(t, store.AddDevice(ctx, PairedDevice{ID: "none", ExpiresAt: NoExpiry, AllowedEntities: []string{}}))
	_, ok = store.GetDeviceForEntity("none", "front")
	assert.False(t, ok, "empty allowed_entities list means no access")
}

func TestLockStorePersistsAcrossReload(t *testing.T) {
	ctx := context.Background()
	snap := &memSnapshotStore{}
	store, err := NewLockStore(ctx, snap)
	require.NoError(t, err)
	require.NoError(t, store.AddDevice(ctx, PairedDevice{ID: "dev1", ExpiresAt: NoExpiry}))

	reloaded, err := NewLockStore(ctx, snap)
	require.NoError(t, err)
	_, ok := reloaded.GetDevice("dev1")
	assert.True(t, ok)
}
