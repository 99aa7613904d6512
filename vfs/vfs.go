package vfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tonk-labs/tonk-sub000/bundle"
	"github.com/tonk-labs/tonk-sub000/bundlepath"
	"github.com/tonk-labs/tonk-sub000/crdt"
	"github.com/tonk-labs/tonk-sub000/storage"
)

var log = logrus.WithField("component", "vfs")

// importWorkers bounds the worker pool FromBundle uses to write a bundle's
// document blobs into the destination storage adapter concurrently.
const importWorkers = 8

type metaEntry struct {
	id  string
	typ NodeType
	ts  Timestamps
}

// VirtualFileSystem is the public VFS API over a CRDT repo: create, find,
// remove, list, watch, plus bundle import/export and fork.
type VirtualFileSystem struct {
	repo   *crdt.Repo
	rootID string
	events *broadcaster

	cacheMu sync.Mutex
	cache   map[string]metaEntry // invalidated wholesale on every mutation
}

// New creates a fresh root directory document on repo and returns a VFS over it.
func New(ctx context.Context, repo *crdt.Repo) (*VirtualFileSystem, error) {
	root, err := repo.Create(ctx, nil)
	if err != nil {
		return nil, err
	}
	if err := InitAsDirectory(ctx, root, "/"); err != nil {
		return nil, err
	}
	return &VirtualFileSystem{
		repo:   repo,
		rootID: root.DocumentID(),
		events: newBroadcaster(),
		cache:  make(map[string]metaEntry),
	}, nil
}

// FromRoot verifies rootID names a directory document and builds a VFS over it.
func FromRoot(ctx context.Context, repo *crdt.Repo, rootID string) (*VirtualFileSystem, error) {
	h, ok := repo.Find(ctx, rootID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, rootID)
	}
	if _, err := ReadDirectory(ctx, h); err != nil {
		return nil, err
	}
	return &VirtualFileSystem{
		repo:   repo,
		rootID: rootID,
		events: newBroadcaster(),
		cache:  make(map[string]metaEntry),
	}, nil
}

// RootID returns the document id of the VFS root.
func (v *VirtualFileSystem) RootID() string {
	return v.rootID
}

// SubscribeEvents returns a receive channel for VFS events and an
// unsubscribe function.
func (v *VirtualFileSystem) SubscribeEvents() (<-chan Event, func()) {
	return v.events.Subscribe()
}

func (v *VirtualFileSystem) invalidateCache() {
	v.cacheMu.Lock()
	v.cache = make(map[string]metaEntry)
	v.cacheMu.Unlock()
}

func splitParentLeaf(path bundlepath.Path) (bundlepath.Path, string) {
	return path.Parent()
}

// CreateDocument creates a new document at path with JSON-serializable
// content, auto-creating missing ancestor directories.
func (v *VirtualFileSystem) CreateDocument(ctx context.Context, path bundlepath.Path, content any) (*crdt.Handle, error) {
	return v.createLeaf(ctx, path, NodeTypeDocument, content, nil)
}

// CreateDocumentWithBytes is CreateDocument plus an opaque binary blob.
func (v *VirtualFileSystem) CreateDocumentWithBytes(ctx context.Context, path bundlepath.Path, content any, blob []byte) (*crdt.Handle, error) {
	return v.createLeaf(ctx, path, NodeTypeDocument, content, blob)
}

// CreateDirectory creates a new, empty directory at path.
func (v *VirtualFileSystem) CreateDirectory(ctx context.Context, path bundlepath.Path) (*crdt.Handle, error) {
	return v.createLeaf(ctx, path, NodeTypeDirectory, nil, nil)
}

func (v *VirtualFileSystem) createLeaf(ctx context.Context, path bundlepath.Path, kind NodeType, content any, blob []byte) (*crdt.Handle, error) {
	if path.IsRoot() {
		return nil, ErrRootPath
	}
	_, leaf := splitParentLeaf(path)

	var createdDirs []Event
	result, err := Traverse(ctx, v.repo, v.rootID, path, true, func(p bundlepath.Path, id string) {
		createdDirs = append(createdDirs, Event{Kind: EventDirectoryCreated, Path: p.String(), ID: id})
	})
	if err != nil {
		return nil, err
	}
	for _, c := range result.Dir.Children {
		if c.Name == leaf {
			return nil, fmt.Errorf("%w: %s", ErrDocumentExists, path.String())
		}
	}

	handle, err := v.repo.Create(ctx, nil)
	if err != nil {
		return nil, err
	}
	switch kind {
	case NodeTypeDirectory:
		if err := InitAsDirectory(ctx, handle, leaf); err != nil {
			return nil, err
		}
	default:
		if err := InitAsDocumentWithBytes(ctx, handle, leaf, content, blob); err != nil {
			return nil, err
		}
	}

	ref := RefNode{
		Name:       leaf,
		Type:       kind,
		Pointer:    handle.DocumentID(),
		Timestamps: Timestamps{Created: nowMillis(), Modified: nowMillis()},
	}
	if err := AddChildToDirectory(ctx, result.DirHandle, ref); err != nil {
		return nil, err
	}

	v.invalidateCache()
	for _, ev := range createdDirs {
		v.events.Emit(ev)
	}
	kindEvent := EventDocumentCreated
	if kind == NodeTypeDirectory {
		kindEvent = EventDirectoryCreated
	}
	v.events.Emit(Event{Kind: kindEvent, Path: path.String(), ID: handle.DocumentID()})

	return handle, nil
}

// FindDocument resolves path to a document handle. Returns (nil, false) if
// absent; errors with NodeTypeMismatchError if the target is a directory.
func (v *VirtualFileSystem) FindDocument(ctx context.Context, path bundlepath.Path) (*crdt.Handle, bool, error) {
	result, err := Traverse(ctx, v.repo, v.rootID, path, false, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if result.Target == nil {
		return nil, false, nil
	}
	if result.Target.Type != NodeTypeDocument {
		return nil, false, &NodeTypeMismatchError{Expected: NodeTypeDocument, Actual: result.Target.Type}
	}
	h, ok := v.repo.Find(ctx, result.Target.Pointer)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrInvalidDocumentStructure, result.Target.Pointer)
	}
	return h, true, nil
}

// RemoveDocument removes the RefNode at path, cascading recursively if the
// target is a directory. Returns true iff a RefNode was removed.
func (v *VirtualFileSystem) RemoveDocument(ctx context.Context, path bundlepath.Path) (bool, error) {
	if path.IsRoot() {
		return false, ErrRootPath
	}
	_, leaf := splitParentLeaf(path)
	result, err := Traverse(ctx, v.repo, v.rootID, path, false, nil)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}

	removed, found, err := RemoveChildFromDirectory(ctx, result.DirHandle, leaf)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	if removed.Type == NodeTypeDirectory {
		if err := v.removeSubtree(ctx, removed.Pointer, path); err != nil {
			return false, err
		}
	}

	v.invalidateCache()
	v.events.Emit(Event{Kind: EventDocumentDeleted, Path: path.String()})
	return true, nil
}

func (v *VirtualFileSystem) removeSubtree(ctx context.Context, dirID string, dirPath bundlepath.Path) error {
	h, ok := v.repo.Find(ctx, dirID)
	if !ok {
		return nil
	}
	dir, err := ReadDirectory(ctx, h)
	if err != nil {
		return err
	}
	for _, c := range dir.Children {
		childPath := dirPath.Join(c.Name)
		if c.Type == NodeTypeDirectory {
			if err := v.removeSubtree(ctx, c.Pointer, childPath); err != nil {
				return err
			}
		}
		v.events.Emit(Event{Kind: EventDocumentDeleted, Path: childPath.String()})
	}
	return nil
}

// ListDirectory resolves path and returns the children of the resolved
// directory document (read fresh, not from the traverser's possibly-stale node).
func (v *VirtualFileSystem) ListDirectory(ctx context.Context, path bundlepath.Path) ([]RefNode, error) {
	result, err := Traverse(ctx, v.repo, v.rootID, path, false, nil)
	if err != nil {
		return nil, err
	}
	var dirHandle *crdt.Handle
	if result.Target == nil {
		if !path.IsRoot() {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path.String())
		}
		dirHandle = result.DirHandle
	} else {
		if result.Target.Type != NodeTypeDirectory {
			return nil, &NodeTypeMismatchError{Expected: NodeTypeDirectory, Actual: result.Target.Type}
		}
		h, ok := v.repo.Find(ctx, result.Target.Pointer)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidDocumentStructure, result.Target.Pointer)
		}
		dirHandle = h
	}
	dir, err := ReadDirectory(ctx, dirHandle)
	if err != nil {
		return nil, err
	}
	return dir.Children, nil
}

// Exists reports whether path resolves to any node. It has no error return:
// ErrPathNotFound and every other lookup error alike yield false.
func (v *VirtualFileSystem) Exists(ctx context.Context, path bundlepath.Path) bool {
	_, _, ok := v.Metadata(ctx, path)
	return ok
}

// Metadata returns the node type and timestamps at path, consulting an
// internal cache keyed by path string before walking the tree; the cache is
// wholesale-invalidated by every mutation so it never serves stale data.
func (v *VirtualFileSystem) Metadata(ctx context.Context, path bundlepath.Path) (NodeType, Timestamps, bool) {
	key := path.String()
	v.cacheMu.Lock()
	if entry, ok := v.cache[key]; ok {
		v.cacheMu.Unlock()
		return entry.typ, entry.ts, true
	}
	v.cacheMu.Unlock()

	if path.IsRoot() {
		result, err := Traverse(ctx, v.repo, v.rootID, path, false, nil)
		if err != nil {
			return "", Timestamps{}, false
		}
		v.storeCache(key, metaEntry{id: v.rootID, typ: NodeTypeDirectory, ts: result.Dir.Timestamps})
		return NodeTypeDirectory, result.Dir.Timestamps, true
	}
	result, err := Traverse(ctx, v.repo, v.rootID, path, false, nil)
	if err != nil || result.Target == nil {
		return "", Timestamps{}, false
	}
	v.storeCache(key, metaEntry{id: result.Target.Pointer, typ: result.Target.Type, ts: result.Target.Timestamps})
	return result.Target.Type, result.Target.Timestamps, true
}

func (v *VirtualFileSystem) storeCache(key string, entry metaEntry) {
	v.cacheMu.Lock()
	v.cache[key] = entry
	v.cacheMu.Unlock()
}

// WatchDocument returns the handle backing the document at path, if present.
// It sets up no subscription: crdt.Repo has no change-notification mechanism,
// and any lookup error, including a type mismatch, yields (nil, false).
func (v *VirtualFileSystem) WatchDocument(ctx context.Context, path bundlepath.Path) (*crdt.Handle, bool) {
	h, ok, err := v.FindDocument(ctx, path)
	if err != nil || !ok {
		return nil, false
	}
	return h, true
}

// WatchDirectory returns the handle backing the directory at path, if present.
func (v *VirtualFileSystem) WatchDirectory(ctx context.Context, path bundlepath.Path) (*crdt.Handle, bool) {
	result, err := Traverse(ctx, v.repo, v.rootID, path, false, nil)
	if err != nil {
		return nil, false
	}
	if result.Target == nil {
		if !path.IsRoot() {
			return nil, false
		}
		return result.DirHandle, true
	}
	if result.Target.Type != NodeTypeDirectory {
		return nil, false
	}
	h, ok := v.repo.Find(ctx, result.Target.Pointer)
	return h, ok
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrPathNotFound)
}

// ---- Bundle export/import ----

func splayPathFor(id, suffix string) bundlepath.Path {
	splayed := storage.Splay([]string{id, suffix})
	return bundlepath.FromComponents(append([]string{"storage"}, splayed...))
}

// ToBytes walks the VFS and exports it as bundle bytes: manifest, root
// document, and every other referenced document blob under
// storage/<splayed-id>/snapshot.
func (v *VirtualFileSystem) ToBytes(ctx context.Context, cfg bundle.ExportConfig) ([]byte, error) {
	rootHandle, ok := v.repo.Find(ctx, v.rootID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, v.rootID)
	}
	rootBytes, err := v.readRawBytes(ctx, rootHandle)
	if err != nil {
		return nil, err
	}

	b, err := bundle.NewEmpty(rootBytes)
	if err != nil {
		return nil, err
	}
	m := b.Manifest()
	m.Entrypoints = cfg.Entrypoints
	m.NetworkURIs = cfg.NetworkURIs
	m.XNotes = cfg.XNotes
	m.XVendor = cfg.XVendor
	if err := v.rewriteManifest(b, m); err != nil {
		return nil, err
	}

	visited := map[string]bool{v.rootID: true}
	if err := v.exportSubtree(ctx, b, v.rootID, visited); err != nil {
		return nil, err
	}
	return b.Bytes()
}

func (v *VirtualFileSystem) rewriteManifest(b *bundle.Bundle, m bundle.Manifest) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("vfs: marshal manifest: %w", err)
	}
	if err := b.Delete(bundlepath.From("/manifest.json")); err != nil {
		return err
	}
	return b.Put(bundlepath.From("/manifest.json"), raw)
}

func (v *VirtualFileSystem) readRawBytes(ctx context.Context, h *crdt.Handle) ([]byte, error) {
	var out []byte
	err := h.WithDocument(ctx, func(current []byte) ([]byte, error) {
		out = append([]byte(nil), current...)
		return nil, nil
	})
	return out, err
}

func (v *VirtualFileSystem) exportSubtree(ctx context.Context, b *bundle.Bundle, id string, visited map[string]bool) error {
	h, ok := v.repo.Find(ctx, id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	dir, err := ReadDirectory(ctx, h)
	if err != nil {
		// Not a directory: nothing further to descend into; the document's
		// own bytes were already written by the caller's loop over children.
		return nil
	}
	for _, c := range dir.Children {
		if visited[c.Pointer] {
			continue
		}
		visited[c.Pointer] = true
		childHandle, ok := v.repo.Find(ctx, c.Pointer)
		if !ok {
			return fmt.Errorf("%w: %s", ErrInvalidDocumentStructure, c.Pointer)
		}
		raw, err := v.readRawBytes(ctx, childHandle)
		if err != nil {
			return err
		}
		if err := b.Put(splayPathFor(c.Pointer, "snapshot"), raw); err != nil {
			return err
		}
		if c.Type == NodeTypeDirectory {
			if err := v.exportSubtree(ctx, b, c.Pointer, visited); err != nil {
				return err
			}
		}
	}
	return nil
}

// FromBundle resolves the root id from b's manifest, populates the repo's
// storage adapter from storage/* entries (un-splaying ids), and verifies the
// root document is a directory.
func FromBundle(ctx context.Context, repo *crdt.Repo, adapter storage.Adapter, b *bundle.Bundle) (*VirtualFileSystem, error) {
	m := b.Manifest()
	rootID := m.RootName()
	if rootID == "" {
		return nil, bundle.ErrMissingRootDocument
	}

	rootBytes, err := b.RootDocument()
	if err != nil {
		return nil, err
	}
	if err := adapter.Put(ctx, []string{rootID}, rootBytes); err != nil {
		return nil, err
	}

	var puts []crdt.PutEntry
	for _, entry := range b.Prefix(bundlepath.From("/storage")) {
		comps := entry.Path.Components()
		if len(comps) < 2 {
			continue
		}
		key := storage.Unsplay(comps[1:])
		if len(key) == 0 {
			continue
		}
		puts = append(puts, crdt.PutEntry{Key: []string{key[0]}, Data: entry.Data})
	}
	for _, r := range crdt.ParallelPut(ctx, adapter, puts, importWorkers) {
		if r.Err != nil {
			log.WithError(r.Err).WithField("doc", storage.JoinKey(r.Key)).Warn("failed to import document blob")
		}
	}

	return FromRoot(ctx, repo, rootID)
}

// ForkToBytes creates a fresh repo with a fresh root, recursively copies
// /app (and /src if present) from this VFS into the new one, and exports the
// new VFS. The result has a different root id and no unreferenced documents
// outside the copied subtree.
func (v *VirtualFileSystem) ForkToBytes(ctx context.Context, newRepo *crdt.Repo, cfg bundle.ExportConfig) ([]byte, error) {
	forked, err := New(ctx, newRepo)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{"app", "src"} {
		if err := v.copySubtreeInto(ctx, bundlepath.From("/"+name), forked, bundlepath.From("/"+name)); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
	}
	return forked.ToBytes(ctx, cfg)
}

func (v *VirtualFileSystem) copySubtreeInto(ctx context.Context, srcPath bundlepath.Path, dst *VirtualFileSystem, dstPath bundlepath.Path) error {
	result, err := Traverse(ctx, v.repo, v.rootID, srcPath, false, nil)
	if err != nil {
		return err
	}
	if result.Target == nil {
		return ErrPathNotFound
	}
	if result.Target.Type == NodeTypeDirectory {
		if _, err := dst.CreateDirectory(ctx, dstPath); err != nil && !errors.Is(err, ErrDocumentExists) {
			return err
		}
		h, ok := v.repo.Find(ctx, result.Target.Pointer)
		if !ok {
			return fmt.Errorf("%w: %s", ErrInvalidDocumentStructure, result.Target.Pointer)
		}
		dir, err := ReadDirectory(ctx, h)
		if err != nil {
			return err
		}
		for _, c := range dir.Children {
			if err := v.copySubtreeInto(ctx, srcPath.Join(c.Name), dst, dstPath.Join(c.Name)); err != nil {
				return err
			}
		}
		return nil
	}

	h, ok := v.repo.Find(ctx, result.Target.Pointer)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidDocumentStructure, result.Target.Pointer)
	}
	doc, err := ReadDocument(ctx, h)
	if err != nil {
		return err
	}
	var content any
	if len(doc.Content) > 0 {
		if err := json.Unmarshal(doc.Content, &content); err != nil {
			return fmt.Errorf("vfs: unmarshal document content during fork: %w", err)
		}
	}
	_, err = dst.CreateDocumentWithBytes(ctx, dstPath, content, doc.Bytes)
	return err
}
