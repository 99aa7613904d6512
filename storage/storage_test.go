package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonk-labs/tonk-sub000/bundle"
)

func TestSplayUnsplayRoundtrip(t *testing.T) {
	key := []string{"abcdef0123", "snapshot"}
	splayed := Splay(key)
	assert.Equal(t, []string{"ab", "cdef0123", "snapshot"}, splayed)
	assert.Equal(t, key, Unsplay(splayed))
}

func TestSplayShortID(t *testing.T) {
	key := []string{"a", "snapshot"}
	assert.Equal(t, key, Splay(key))
}

func TestMemoryAdapter(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := []string{"doc1", "blob"}

	_, ok := m.Load(ctx, key)
	assert.False(t, ok)

	require.NoError(t, m.Put(ctx, key, []byte("data")))
	data, ok := m.Load(ctx, key)
	require.True(t, ok)
	assert.Equal(t, []byte("data"), data)

	require.NoError(t, m.Delete(ctx, key))
	_, ok = m.Load(ctx, key)
	assert.False(t, ok)
}

func TestMemoryLoadRange(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Put(ctx, []string{"dir", "a"}, []byte("1")))
	require.NoError(t, m.Put(ctx, []string{"dir", "b"}, []byte("2")))
	require.NoError(t, m.Put(ctx, []string{"other"}, []byte("3")))

	out := m.LoadRange(ctx, []string{"dir"})
	assert.Len(t, out, 2)
}

func TestFilesystemAdapter(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fsAdapter, err := NewFilesystem(filepath.Join(dir, "store"))
	require.NoError(t, err)

	key := []string{"ab", "cdef", "snapshot"}
	require.NoError(t, fsAdapter.Put(ctx, key, []byte("payload")))

	data, ok := fsAdapter.Load(ctx, key)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), data)

	out := fsAdapter.LoadRange(ctx, []string{"ab"})
	assert.Len(t, out, 1)

	require.NoError(t, fsAdapter.Delete(ctx, key))
	_, ok = fsAdapter.Load(ctx, key)
	assert.False(t, ok)
}

func TestBundleAdapterOverlay(t *testing.T) {
	ctx := context.Background()
	b, err := bundle.NewEmpty([]byte("root-doc"))
	require.NoError(t, err)
	adapter := NewBundleAdapter(b)

	key := []string{"abcdef", "snapshot"}
	_, ok := adapter.Load(ctx, key)
	assert.False(t, ok)

	require.NoError(t, adapter.Put(ctx, key, []byte("v1")))
	data, ok := adapter.Load(ctx, key)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), data)

	require.NoError(t, adapter.Delete(ctx, key))
	_, ok = adapter.Load(ctx, key)
	assert.False(t, ok)
}

func TestDirectBundleAdapterDeleteIsNoOp(t *testing.T) {
	ctx := context.Background()
	b, err := bundle.NewEmpty([]byte("root-doc"))
	require.NoError(t, err)
	adapter := NewDirectBundleAdapter(b)

	key := []string{"abcdef", "snapshot"}
	require.NoError(t, adapter.Put(ctx, key, []byte("v1")))

	require.NoError(t, adapter.Delete(ctx, key))
	data, ok := adapter.Load(ctx, key)
	require.True(t, ok, "direct adapter delete is a documented no-op")
	assert.Equal(t, []byte("v1"), data)
}
