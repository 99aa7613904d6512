package storage

import (
	"context"
	"sync"

	"github.com/tonk-labs/tonk-sub000/bundle"
	"github.com/tonk-labs/tonk-sub000/bundlepath"
)

// BundleAdapter overlays a writable in-memory map on top of a read-only
// Bundle. Load checks the overlay first, falling back to the bundle; Put and
// Delete affect only the overlay, so the underlying bundle is never mutated
// in place. Unlike the reference implementation's direct BundleStorage
// (DirectBundleAdapter below), Delete here fully removes visibility of a key
// by tombstoning it in the overlay.
type BundleAdapter struct {
	mu       sync.RWMutex
	bundle   *bundle.Bundle
	overlay  map[string][]byte
	tombsone map[string]bool
}

// NewBundleAdapter wraps b with a mutable overlay.
func NewBundleAdapter(b *bundle.Bundle) *BundleAdapter {
	return &BundleAdapter{
		bundle:   b,
		overlay:  make(map[string][]byte),
		tombsone: make(map[string]bool),
	}
}

func keyToBundlePath(key []string) bundlepath.Path {
	return bundlepath.FromComponents(append([]string{"storage"}, Splay(key)...))
}

func (a *BundleAdapter) Load(_ context.Context, key []string) ([]byte, bool) {
	joined := JoinKey(key)
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.tombsone[joined] {
		return nil, false
	}
	if data, ok := a.overlay[joined]; ok {
		out := make([]byte, len(data))
		copy(out, data)
		return out, true
	}
	return a.bundle.Get(keyToBundlePath(key))
}

func (a *BundleAdapter) LoadRange(_ context.Context, prefix []string) map[string][]byte {
	out := make(map[string][]byte)
	prefixPath := bundlepath.FromComponents(append([]string{"storage"}, Splay(prefix)...))

	for _, entry := range a.bundle.Prefix(prefixPath) {
		comps := entry.Path.Components()
		if len(comps) == 0 || comps[0] != "storage" {
			continue
		}
		key := Unsplay(comps[1:])
		out[JoinKey(key)] = entry.Data
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	for joined, data := range a.overlay {
		key := SplitKey(joined)
		if HasPrefix(key, prefix) {
			cp := make([]byte, len(data))
			copy(cp, data)
			out[joined] = cp
		}
	}
	for joined := range a.tombsone {
		delete(out, joined)
	}
	return out
}

func (a *BundleAdapter) Put(_ context.Context, key []string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	joined := JoinKey(key)
	cp := make([]byte, len(data))
	copy(cp, data)
	a.overlay[joined] = cp
	delete(a.tombsone, joined)
	return nil
}

// Delete tombstones key in the overlay so Load stops seeing it, even though
// the underlying bundle (if it originally contained the key) is untouched.
func (a *BundleAdapter) Delete(_ context.Context, key []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	joined := JoinKey(key)
	delete(a.overlay, joined)
	a.tombsone[joined] = true
	return nil
}

// ExportSlim emits a new bundle containing the manifest plus every storage
// entry whose key's first component matches rootIDPrefix, taking overlay
// values over bundle values, per the export-slim-bundle contract.
func (a *BundleAdapter) ExportSlim(rootIDPrefix string) (*bundle.Bundle, error) {
	root, err := a.bundle.RootDocument()
	if err != nil {
		return nil, err
	}
	out, err := bundle.NewEmpty(root)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, entry := range a.bundle.Prefix(bundlepath.From("/storage")) {
		comps := entry.Path.Components()
		if len(comps) < 2 {
			continue
		}
		key := Unsplay(comps[1:])
		if len(key) == 0 || key[0] != rootIDPrefix {
			continue
		}
		joined := JoinKey(key)
		seen[joined] = true
		if a.tombsone[joined] {
			continue
		}
		data := entry.Data
		if ov, ok := a.overlay[joined]; ok {
			data = ov
		}
		if err := out.Put(entry.Path, data); err != nil {
			return nil, err
		}
	}
	for joined, data := range a.overlay {
		if seen[joined] || a.tombsone[joined] {
			continue
		}
		key := SplitKey(joined)
		if len(key) == 0 || key[0] != rootIDPrefix {
			continue
		}
		path := keyToBundlePath(key)
		if err := out.Put(path, data); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DirectBundleAdapter writes straight through to the bundle's own Put/Delete
// with no overlay. Its Delete is an intentional no-op, preserving the
// reference implementation's known limitation for this specific variant
// (see original_source/packages/core/src/storage.rs) rather than the
// overlay-based delete semantics BundleAdapter provides.
type DirectBundleAdapter struct {
	bundle *bundle.Bundle
}

// NewDirectBundleAdapter wraps b with no overlay.
func NewDirectBundleAdapter(b *bundle.Bundle) *DirectBundleAdapter {
	return &DirectBundleAdapter{bundle: b}
}

func (a *DirectBundleAdapter) Load(_ context.Context, key []string) ([]byte, bool) {
	return a.bundle.Get(keyToBundlePath(key))
}

func (a *DirectBundleAdapter) LoadRange(_ context.Context, prefix []string) map[string][]byte {
	out := make(map[string][]byte)
	prefixPath := bundlepath.FromComponents(append([]string{"storage"}, Splay(prefix)...))
	for _, entry := range a.bundle.Prefix(prefixPath) {
		comps := entry.Path.Components()
		if len(comps) == 0 || comps[0] != "storage" {
			continue
		}
		key := Unsplay(comps[1:])
		out[JoinKey(key)] = entry.Data
	}
	return out
}

func (a *DirectBundleAdapter) Put(_ context.Context, key []string, data []byte) error {
	return a.bundle.Put(keyToBundlePath(key), data)
}

// Delete is a no-op: it does not call Bundle.Delete, so a key written through
// this direct, non-overlay adapter stays visible to Load and LoadRange.
func (a *DirectBundleAdapter) Delete(_ context.Context, _ []string) error {
	return nil
}
