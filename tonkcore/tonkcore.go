// Package tonkcore is the orchestrator: it owns a CRDT repo and the
// VirtualFileSystem layered over it, wires up a storage backend chosen by a
// Builder, imports/exports bundles, forks, and opens outgoing websocket sync
// connections to a relay.
package tonkcore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/tonk-labs/tonk-sub000/bundle"
	"github.com/tonk-labs/tonk-sub000/crdt"
	"github.com/tonk-labs/tonk-sub000/storage"
	"github.com/tonk-labs/tonk-sub000/vfs"
)

var log = logrus.WithField("component", "tonkcore")

// wellKnownManifestKey is the single-component storage key an IndexedDB
// backend persists its stashed manifest under, enabling the offline-reload
// path on a subsequent Build() against the same namespace.
const wellKnownManifestKey = "__tonk_manifest__"

type manifestStash struct {
	RootID string `json:"rootId"`
}

// TonkCore is the public orchestrator handle: a repo, the VFS over it, and
// the storage adapter backing the repo.
type TonkCore struct {
	PeerID string

	repo    *crdt.Repo
	vfs     *vfs.VirtualFileSystem
	storage storage.Adapter
}

// VFS returns the VirtualFileSystem for direct use.
func (c *TonkCore) VFS() *vfs.VirtualFileSystem {
	return c.vfs
}

// Build constructs an empty TonkCore: a fresh VFS over a fresh storage
// backend, except for StorageIndexedDB where an existing stashed manifest in
// the namespace is detected and used to reconstruct the VFS instead (the
// offline-reload path), leaving the namespace's prior content intact.
func (b *Builder) Build(ctx context.Context) (*TonkCore, error) {
	adapter, err := b.storage.build(ctx)
	if err != nil {
		return nil, err
	}
	peerID := b.resolvePeerID()
	repo := crdt.NewRepo(adapter, peerID)

	if b.storage.Kind == StorageIndexedDB {
		if stashed, ok := adapter.Load(ctx, []string{wellKnownManifestKey}); ok {
			var m manifestStash
			if err := json.Unmarshal(stashed, &m); err == nil && m.RootID != "" {
				v, err := vfs.FromRoot(ctx, repo, m.RootID)
				if err == nil {
					log.WithField("namespace", b.storage.Namespace).Info("reconstructed VFS from stashed manifest")
					return &TonkCore{PeerID: peerID, repo: repo, vfs: v, storage: adapter}, nil
				}
				log.WithError(err).Warn("stashed manifest present but unusable, building fresh VFS")
			}
		}
	}

	v, err := vfs.New(ctx, repo)
	if err != nil {
		return nil, err
	}
	if b.storage.Kind == StorageIndexedDB {
		if err := stashManifest(ctx, adapter, v.RootID()); err != nil {
			log.WithError(err).Warn("failed to stash manifest")
		}
	}
	return &TonkCore{PeerID: peerID, repo: repo, vfs: v, storage: adapter}, nil
}

func stashManifest(ctx context.Context, adapter storage.Adapter, rootID string) error {
	data, err := json.Marshal(manifestStash{RootID: rootID})
	if err != nil {
		return fmt.Errorf("tonkcore: marshal manifest stash: %w", err)
	}
	return adapter.Put(ctx, []string{wellKnownManifestKey}, data)
}

// FromBundle populates storage from b's entries and builds a VFS over its
// root document.
func (b *Builder) FromBundle(ctx context.Context, bdl *bundle.Bundle) (*TonkCore, error) {
	adapter, err := b.storage.build(ctx)
	if err != nil {
		return nil, err
	}
	peerID := b.resolvePeerID()
	repo := crdt.NewRepo(adapter, peerID)

	v, err := vfs.FromBundle(ctx, repo, adapter, bdl)
	if err != nil {
		return nil, err
	}
	if b.storage.Kind == StorageIndexedDB {
		if err := stashManifest(ctx, adapter, v.RootID()); err != nil {
			log.WithError(err).Warn("failed to stash manifest")
		}
	}
	return &TonkCore{PeerID: peerID, repo: repo, vfs: v, storage: adapter}, nil
}

// FromBytes opens data as a bundle in memory and delegates to FromBundle.
func (b *Builder) FromBytes(ctx context.Context, data []byte) (*TonkCore, error) {
	bdl, err := bundle.OpenBytes(data)
	if err != nil {
		return nil, err
	}
	return b.FromBundle(ctx, bdl)
}

// FromFile opens the bundle at path on disk and delegates to FromBundle.
func (b *Builder) FromFile(ctx context.Context, path string) (*TonkCore, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("tonkcore: open bundle file: %w", err)
	}
	bdl, err := bundle.Open(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	core, err := b.FromBundle(ctx, bdl)
	if err != nil {
		f.Close()
		return nil, err
	}
	return core, nil
}

// ToBytes exports the current VFS state as bundle bytes.
func (c *TonkCore) ToBytes(ctx context.Context, cfg bundle.ExportConfig) ([]byte, error) {
	return c.vfs.ToBytes(ctx, cfg)
}

// ToFile exports the current VFS state and writes it to path.
func (c *TonkCore) ToFile(ctx context.Context, path string, cfg bundle.ExportConfig) error {
	data, err := c.vfs.ToBytes(ctx, cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ForkToBytes builds a fresh in-memory TonkCore scoped to /app (and /src),
// and exports it. newPeerID, if non-empty, fixes the forked core's peer id;
// otherwise one is generated.
func (c *TonkCore) ForkToBytes(ctx context.Context, newPeerID string, cfg bundle.ExportConfig) ([]byte, error) {
	forkPeerID := newPeerID
	if forkPeerID == "" {
		forkPeerID = (&Builder{}).resolvePeerID()
	}
	newRepo := crdt.NewRepo(storage.NewMemory(), forkPeerID)
	return c.vfs.ForkToBytes(ctx, newRepo, cfg)
}
