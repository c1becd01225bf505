package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QQCPM/ChatChat/internal/storage"
)

func TestKVRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	kv, err := Open(path)
	require.NoError(t, err)

	_, err = kv.Get(ctx, "chatMessages_r1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, kv.Set(ctx, "chatMessages_r1", []byte(`[1]`)))
	require.NoError(t, kv.Set(ctx, "chatMessages_r1", []byte(`[1,2]`)))
	got, err := kv.Get(ctx, "chatMessages_r1")
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(got))
	require.NoError(t, kv.Close())

	// Survives reopening.
	kv, err = Open(path)
	require.NoError(t, err)
	defer kv.Close()
	got, err = kv.Get(ctx, "chatMessages_r1")
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(got))

	require.NoError(t, kv.Remove(ctx, "chatMessages_r1"))
	require.NoError(t, kv.Remove(ctx, "chatMessages_r1"))
	_, err = kv.Get(ctx, "chatMessages_r1")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
