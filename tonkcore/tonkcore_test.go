package tonkcore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonk-labs/tonk-sub000/bundle"
	"github.com/tonk-labs/tonk-sub000/bundlepath"
	"github.com/tonk-labs/tonk-sub000/vfs"
)

func contentString(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

// Scenario 1: create, populate, roundtrip.
func TestCreatePopulateRoundtrip(t *testing.T) {
	ctx := context.Background()
	core, err := NewBuilder().Build(ctx)
	require.NoError(t, err)

	_, err = core.VFS().CreateDocument(ctx, bundlepath.From("/README.md"), "# App")
	require.NoError(t, err)
	_, err = core.VFS().CreateDirectory(ctx, bundlepath.From("/src"))
	require.NoError(t, err)
	_, err = core.VFS().CreateDocument(ctx, bundlepath.From("/src/index.js"), "console.log('hello')")
	require.NoError(t, err)

	data, err := core.ToBytes(ctx, bundle.ExportConfig{})
	require.NoError(t, err)

	reloaded, err := NewBuilder().FromBytes(ctx, data)
	require.NoError(t, err)

	children, err := reloaded.VFS().ListDirectory(ctx, bundlepath.From("/src"))
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "index.js", children[0].Name)

	h, ok, err := reloaded.VFS().FindDocument(ctx, bundlepath.From("/src/index.js"))
	require.NoError(t, err)
	require.True(t, ok)
	doc, err := vfs.ReadDocument(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "console.log('hello')", contentString(t, doc.Content))

	assert.NotEqual(t, core.PeerID, reloaded.PeerID)
}

func TestDuplicatePrevention(t *testing.T) {
	ctx := context.Background()
	core, err := NewBuilder().Build(ctx)
	require.NoError(t, err)

	_, err = core.VFS().CreateDocument(ctx, bundlepath.From("/a.txt"), "x")
	require.NoError(t, err)
	_, err = core.VFS().CreateDocument(ctx, bundlepath.From("/a.txt"), "y")
	assert.ErrorIs(t, err, vfs.ErrDocumentExists)
}

func TestForkScope(t *testing.T) {
	ctx := context.Background()
	core, err := NewBuilder().Build(ctx)
	require.NoError(t, err)

	_, err = core.VFS().CreateDocument(ctx, bundlepath.From("/app/x"), "x")
	require.NoError(t, err)
	_, err = core.VFS().CreateDocument(ctx, bundlepath.From("/app/sub/y"), "y")
	require.NoError(t, err)
	_, err = core.VFS().CreateDocument(ctx, bundlepath.From("/outside"), "o")
	require.NoError(t, err)

	forkedBytes, err := core.ForkToBytes(ctx, "", bundle.ExportConfig{})
	require.NoError(t, err)

	forked, err := NewBuilder().FromBytes(ctx, forkedBytes)
	require.NoError(t, err)

	assert.True(t, forked.VFS().Exists(ctx, bundlepath.From("/app/sub/y")))
	assert.False(t, forked.VFS().Exists(ctx, bundlepath.From("/outside")))
}

func TestBuilderWithPeerID(t *testing.T) {
	ctx := context.Background()
	core, err := NewBuilder().WithPeerID("fixed-peer").Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fixed-peer", core.PeerID)
}

func TestFilesystemStorageRoundtripsThroughFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	core, err := NewBuilder().WithStorage(StorageConfig{Kind: StorageFilesystem, Path: filepath.Join(dir, "store")}).Build(ctx)
	require.NoError(t, err)
	_, err = core.VFS().CreateDocument(ctx, bundlepath.From("/note.txt"), "hi")
	require.NoError(t, err)

	bundlePath := filepath.Join(dir, "out.tonk")
	require.NoError(t, core.ToFile(ctx, bundlePath, bundle.ExportConfig{}))

	_, err = os.Stat(bundlePath)
	require.NoError(t, err)

	reloaded, err := NewBuilder().FromFile(ctx, bundlePath)
	require.NoError(t, err)
	assert.True(t, reloaded.VFS().Exists(ctx, bundlepath.From("/note.txt")))
}

func TestIndexedDBUnsupportedOutsideWasm(t *testing.T) {
	ctx := context.Background()
	_, err := NewBuilder().WithStorage(StorageConfig{Kind: StorageIndexedDB, Namespace: "ns"}).Build(ctx)
	assert.ErrorIs(t, err, ErrUnsupportedStorageKind)
}
