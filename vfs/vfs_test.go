package vfs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonk-labs/tonk-sub000/bundle"
	"github.com/tonk-labs/tonk-sub000/bundlepath"
	"github.com/tonk-labs/tonk-sub000/crdt"
	"github.com/tonk-labs/tonk-sub000/storage"
)

func newTestVFS(t *testing.T) *VirtualFileSystem {
	t.Helper()
	adapter := storage.NewMemory()
	repo := crdt.NewRepo(adapter, "")
	v, err := New(context.Background(), repo)
	require.NoError(t, err)
	return v
}

func contentString(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

// Scenario 1: create, populate, roundtrip.
func TestCreatePopulateRoundtrip(t *testing.T) {
	ctx := context.Background()
	v := newTestVFS(t)

	_, err := v.CreateDocument(ctx, bundlepath.From("/README.md"), "# App")
	require.NoError(t, err)
	_, err = v.CreateDirectory(ctx, bundlepath.From("/src"))
	require.NoError(t, err)
	_, err = v.CreateDocument(ctx, bundlepath.From("/src/index.js"), "console.log('hello')")
	require.NoError(t, err)

	data, err := v.ToBytes(ctx, bundle.ExportConfig{})
	require.NoError(t, err)

	b, err := bundle.OpenBytes(data)
	require.NoError(t, err)

	adapter2 := storage.NewMemory()
	repo2 := crdt.NewRepo(adapter2, "")
	v2, err := FromBundle(ctx, repo2, adapter2, b)
	require.NoError(t, err)

	children, err := v2.ListDirectory(ctx, bundlepath.From("/src"))
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "index.js", children[0].Name)
	assert.Equal(t, NodeTypeDocument, children[0].Type)

	h, ok, err := v2.FindDocument(ctx, bundlepath.From("/src/index.js"))
	require.NoError(t, err)
	require.True(t, ok)
	doc, err := ReadDocument(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "console.log('hello')", contentString(t, doc.Content))
}

// Scenario 2: duplicate prevention.
func TestDuplicatePrevention(t *testing.T) {
	ctx := context.Background()
	v := newTestVFS(t)

	_, err := v.CreateDocument(ctx, bundlepath.From("/a.txt"), "x")
	require.NoError(t, err)

	_, err = v.CreateDocument(ctx, bundlepath.From("/a.txt"), "y")
	assert.ErrorIs(t, err, ErrDocumentExists)

	h, ok, err := v.FindDocument(ctx, bundlepath.From("/a.txt"))
	require.NoError(t, err)
	require.True(t, ok)
	doc, err := ReadDocument(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "x", contentString(t, doc.Content))
}

// Scenario 3: cascade delete.
func TestCascadeDelete(t *testing.T) {
	ctx := context.Background()
	v := newTestVFS(t)

	_, err := v.CreateDocument(ctx, bundlepath.From("/dir/a"), "a")
	require.NoError(t, err)
	_, err = v.CreateDocument(ctx, bundlepath.From("/dir/b/c"), "c")
	require.NoError(t, err)

	removed, err := v.RemoveDocument(ctx, bundlepath.From("/dir"))
	require.NoError(t, err)
	assert.True(t, removed)

	assert.False(t, v.Exists(ctx, bundlepath.From("/dir")))
	assert.False(t, v.Exists(ctx, bundlepath.From("/dir/a")))
	assert.False(t, v.Exists(ctx, bundlepath.From("/dir/b/c")))
}

// VFS invariant: create("/a/b/c", _) auto-creates /a and /a/b as directories.
func TestAutoCreateAncestors(t *testing.T) {
	ctx := context.Background()
	v := newTestVFS(t)

	_, err := v.CreateDocument(ctx, bundlepath.From("/a/b/c"), "leaf")
	require.NoError(t, err)

	children, err := v.ListDirectory(ctx, bundlepath.From("/"))
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "a", children[0].Name)
	assert.Equal(t, NodeTypeDirectory, children[0].Type)

	children, err = v.ListDirectory(ctx, bundlepath.From("/a"))
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "b", children[0].Name)
}

// Scenario 4: bundle preserves timestamps.
func TestBundlePreservesTimestamps(t *testing.T) {
	ctx := context.Background()
	v := newTestVFS(t)

	_, err := v.CreateDocument(ctx, bundlepath.From("/t.txt"), "hi")
	require.NoError(t, err)
	_, ts, ok := v.Metadata(ctx, bundlepath.From("/t.txt"))
	require.True(t, ok)

	data, err := v.ToBytes(ctx, bundle.ExportConfig{})
	require.NoError(t, err)
	b, err := bundle.OpenBytes(data)
	require.NoError(t, err)

	adapter2 := storage.NewMemory()
	repo2 := crdt.NewRepo(adapter2, "")
	v2, err := FromBundle(ctx, repo2, adapter2, b)
	require.NoError(t, err)

	_, ts2, ok := v2.Metadata(ctx, bundlepath.From("/t.txt"))
	require.True(t, ok)
	assert.Equal(t, ts, ts2)
}

// Scenario 5: fork scope.
func TestForkScope(t *testing.T) {
	ctx := context.Background()
	v := newTestVFS(t)

	_, err := v.CreateDocument(ctx, bundlepath.From("/app/x"), "x")
	require.NoError(t, err)
	_, err = v.CreateDocument(ctx, bundlepath.From("/app/sub/y"), "y")
	require.NoError(t, err)
	_, err = v.CreateDocument(ctx, bundlepath.From("/outside"), "o")
	require.NoError(t, err)

	adapter2 := storage.NewMemory()
	repo2 := crdt.NewRepo(adapter2, "")
	data, err := v.ForkToBytes(ctx, repo2, bundle.ExportConfig{})
	require.NoError(t, err)

	b, err := bundle.OpenBytes(data)
	require.NoError(t, err)

	adapter3 := storage.NewMemory()
	repo3 := crdt.NewRepo(adapter3, "")
	forked, err := FromBundle(ctx, repo3, adapter3, b)
	require.NoError(t, err)

	assert.True(t, forked.Exists(ctx, bundlepath.From("/app/sub/y")))
	assert.False(t, forked.Exists(ctx, bundlepath.From("/outside")))
	assert.NotEqual(t, v.RootID(), forked.RootID())
}

func TestMutationEmitsEvent(t *testing.T) {
	ctx := context.Background()
	v := newTestVFS(t)
	events, unsubscribe := v.SubscribeEvents()
	defer unsubscribe()

	_, err := v.CreateDocument(ctx, bundlepath.From("/a.txt"), "x")
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, EventDocumentCreated, ev.Kind)
		assert.Equal(t, "/a.txt", ev.Path)
	default:
		t.Fatal("expected an event on creation")
	}
}

func TestAutoCreatedAncestorsEmitDirectoryCreatedEvents(t *testing.T) {
	ctx := context.Background()
	v := newTestVFS(t)
	events, unsubscribe := v.SubscribeEvents()
	defer unsubscribe()

	_, err := v.CreateDocument(ctx, bundlepath.From("/a/b/c"), "leaf")
	require.NoError(t, err)

	var kinds []EventKind
	for i := 0; i < 3; i++ {
		select {
		case ev := <-events:
			kinds = append(kinds, ev.Kind)
		default:
			t.Fatalf("expected 3 events, got %d", i)
		}
	}
	assert.Equal(t, []EventKind{EventDirectoryCreated, EventDirectoryCreated, EventDocumentCreated}, kinds)
}
