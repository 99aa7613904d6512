package tonkcore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tonk-labs/tonk-sub000/storage"
)

// StorageKind selects which StorageAdapter backend a Builder wires up.
type StorageKind int

const (
	// StorageMemory keeps everything in an in-process map; nothing survives
	// process exit.
	StorageMemory StorageKind = iota
	// StorageFilesystem roots storage at a directory path on disk.
	StorageFilesystem
	// StorageIndexedDB persists to a browser IndexedDB object store keyed by
	// namespace. Only available in js/wasm builds.
	StorageIndexedDB
)

// StorageConfig picks a backend and its one piece of placement data: a
// filesystem path or an IndexedDB namespace, depending on Kind.
type StorageConfig struct {
	Kind      StorageKind
	Path      string // StorageFilesystem
	Namespace string // StorageIndexedDB
}

// newIndexedDBAdapter is overridden by an init() in the js/wasm build; left
// nil otherwise so non-browser builds fail fast with ErrUnsupportedStorageKind
// instead of a link error.
var newIndexedDBAdapter func(ctx context.Context, namespace string) (storage.Adapter, error)

func (c StorageConfig) build(ctx context.Context) (storage.Adapter, error) {
	switch c.Kind {
	case StorageMemory:
		return storage.NewMemory(), nil
	case StorageFilesystem:
		return storage.NewFilesystem(c.Path)
	case StorageIndexedDB:
		if newIndexedDBAdapter == nil {
			return nil, fmt.Errorf("%w: indexeddb requires a js/wasm build", ErrUnsupportedStorageKind)
		}
		return newIndexedDBAdapter(ctx, c.Namespace)
	default:
		return nil, ErrUnsupportedStorageKind
	}
}

// Builder configures and constructs a TonkCore. The zero value is usable: an
// empty PeerID generates a random one, and an empty StorageConfig defaults to
// StorageMemory.
type Builder struct {
	peerID  string
	storage StorageConfig
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithPeerID fixes the repo's peer identifier instead of generating one.
func (b *Builder) WithPeerID(peerID string) *Builder {
	b.peerID = peerID
	return b
}

// WithStorage selects the storage backend.
func (b *Builder) WithStorage(cfg StorageConfig) *Builder {
	b.storage = cfg
	return b
}

func (b *Builder) resolvePeerID() string {
	if b.peerID != "" {
		return b.peerID
	}
	return uuid.NewString()
}
