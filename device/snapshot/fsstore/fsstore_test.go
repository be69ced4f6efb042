package fsstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsNil(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state_lock.json"))
	data, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state_lock.json"))
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, []byte(`{"a":1}`)))
	data, err := s.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))

	require.NoError(t, s.Save(ctx, []byte(`{"a":2}`)))
	data, err = s.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(data))
}
