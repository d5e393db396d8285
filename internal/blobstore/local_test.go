package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "nested", "store")
	store := NewLocalStore(root)
	assert.Equal(t, root, store.Location())

	_, err := store.Get(ctx, "index.snap")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "index.snap", []byte("v1")))
	require.NoError(t, store.Put(ctx, "index.snap", []byte("version two")))

	data, err := store.Get(ctx, "index.snap")
	require.NoError(t, err)
	assert.Equal(t, "version two", string(data))

	// no temp files left behind
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "index.snap", entries[0].Name())
}

func TestLocalStore_PutFailsWhenRootIsAFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	err := NewLocalStore(file).Put(context.Background(), "index.snap", []byte("data"))
	assert.Error(t, err)
}

func TestLocalStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewLocalStore(t.TempDir())
	assert.ErrorIs(t, store.Put(ctx, "a", nil), context.Canceled)
	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}
