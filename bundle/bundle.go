// Package bundle implements the zip-backed, random-access container format
// described by the manifest/storage-prefix layout: a seekable archive with an
// in-memory path index, get/prefix/list lookups, and put/delete mutation with
// explicit flush/compact rebuild semantics.
package bundle

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tonk-labs/tonk-sub000/bundlepath"
)

var log = logrus.WithField("component", "bundle")

// Entry is a single path/bytes pair returned by Prefix.
type Entry struct {
	Path bundlepath.Path
	Data []byte
}

// Bundle is a seekable zip archive with manifest.json, a root document, and
// an optional storage/ prefix of additional blobs.
type Bundle struct {
	mu sync.Mutex

	rw io.ReadWriteSeeker // nil for purely in-memory bundles never opened from a source

	manifest Manifest
	data     map[string][]byte
	present  map[string]bool
	order    []string

	needsRebuild bool
	lastRebuild  []byte
}

// Open reads an existing bundle from a seekable source, building the path
// index and parsing the manifest. It fails if the archive is unreadable, if
// manifest.json is missing or malformed, if manifestVersion != 1, or if the
// manifest's root document is not present in the archive.
func Open(rw io.ReadWriteSeeker) (*Bundle, error) {
	size, err := rw.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("bundle: seek to end: %w", err)
	}
	ra, ok := rw.(io.ReaderAt)
	if !ok {
		return nil, fmt.Errorf("bundle: source does not support ReadAt")
	}
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	b := &Bundle{
		rw:      rw,
		data:    make(map[string][]byte),
		present: make(map[string]bool),
	}

	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: opening %s: %v", ErrCorruptArchive, f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrCorruptArchive, f.Name, err)
		}
		b.storeLocked(f.Name, content)
	}

	manifestBytes, ok := b.data["manifest.json"]
	if !ok || !b.present["manifest.json"] {
		return nil, ErrMissingManifest
	}
	var m Manifest
	if err := json.Unmarshal(manifestBytes, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if m.ManifestVersion != ManifestVersion {
		return nil, fmt.Errorf("%w: got %d", ErrUnsupportedManifestVersion, m.ManifestVersion)
	}
	rootName := m.RootName()
	if rootName == "" || !b.present[rootName] {
		return nil, ErrMissingRootDocument
	}
	b.manifest = m
	return b, nil
}

// NewEmpty builds a fresh, purely in-memory bundle containing only
// manifest.json and a root document named "root".
func NewEmpty(rootDoc []byte) (*Bundle, error) {
	b := &Bundle{
		data:    make(map[string][]byte),
		present: make(map[string]bool),
		manifest: Manifest{
			ManifestVersion: ManifestVersion,
			Version:         Version{Major: 1, Minor: 0},
			Root:            "root",
			Entrypoints:     []string{},
			NetworkURIs:     []string{},
		},
	}
	b.storeLocked("root", rootDoc)
	manifestBytes, err := json.Marshal(b.manifest)
	if err != nil {
		return nil, fmt.Errorf("bundle: marshal manifest: %w", err)
	}
	b.storeLocked("manifest.json", manifestBytes)
	return b, nil
}

func (b *Bundle) storeLocked(name string, content []byte) {
	if _, seen := b.data[name]; !seen {
		b.order = append(b.order, name)
	}
	b.data[name] = content
	b.present[name] = true
}

// Manifest returns a copy of the parsed manifest.
func (b *Bundle) Manifest() Manifest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.manifest.Clone()
}

// Get performs an exact lookup.
func (b *Bundle) Get(path bundlepath.Path) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	name := path.String()[1:] // drop leading slash to match zip entry names
	if !b.present[name] {
		return nil, false
	}
	data := b.data[name]
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}

// Prefix returns every present entry whose components start with path's.
func (b *Bundle) Prefix(path bundlepath.Path) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Entry
	for _, name := range b.order {
		if !b.present[name] {
			continue
		}
		p := bundlepath.From(name)
		if path.IsPrefixOf(p) {
			data := b.data[name]
			cp := make([]byte, len(data))
			copy(cp, data)
			out = append(out, Entry{Path: p, Data: cp})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path.String() < out[j].Path.String() })
	return out
}

// ListKeys returns every present entry's path.
func (b *Bundle) ListKeys() []bundlepath.Path {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []bundlepath.Path
	for _, name := range b.order {
		if b.present[name] {
			out = append(out, bundlepath.From(name))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// RootDocument reads the file named by the manifest's root/rootId.
func (b *Bundle) RootDocument() ([]byte, error) {
	b.mu.Lock()
	name := b.manifest.RootName()
	b.mu.Unlock()
	data, ok := b.Get(bundlepath.From(name))
	if !ok {
		return nil, ErrMissingRootDocument
	}
	return data, nil
}

// Put appends a new entry and immediately performs a full rebuild. It fails
// if path already exists.
func (b *Bundle) Put(path bundlepath.Path, data []byte) error {
	b.mu.Lock()
	name := path.String()[1:]
	if b.present[name] {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, path.String())
	}
	b.storeLocked(name, append([]byte(nil), data...))
	b.needsRebuild = false
	err := b.rebuildLocked(true)
	b.mu.Unlock()
	return err
}

// Delete removes path from the in-memory index only; the physical archive is
// not modified until Flush/Compact. A subsequent Get returns not-found.
func (b *Bundle) Delete(path bundlepath.Path) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	name := path.String()[1:]
	if !b.present[name] {
		return nil
	}
	b.present[name] = false
	b.needsRebuild = true
	return nil
}

// Flush rebuilds the archive containing exactly the entries currently
// present in the index, skipping unreadable data (logged, not fatal), and
// clears the pending-rebuild flag. It is a no-op if nothing is pending.
func (b *Bundle) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.needsRebuild {
		return nil
	}
	return b.rebuildLocked(true)
}

// Compact always rebuilds the archive, physically dropping deleted entries,
// and clears the pending-rebuild flag.
func (b *Bundle) Compact() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rebuildLocked(true)
}

// rebuildLocked must be called with b.mu held. It writes a fresh zip
// containing every present entry to b.rw (if set) and drops tombstoned
// entries from the in-memory maps.
func (b *Bundle) rebuildLocked(writeBacking bool) error {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	newOrder := make([]string, 0, len(b.order))
	for _, name := range b.order {
		if !b.present[name] {
			continue
		}
		data, ok := b.data[name]
		if !ok {
			log.WithField("entry", name).Warn("skipping unreadable entry during rebuild")
			continue
		}
		w, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("bundle: create zip entry %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("bundle: write zip entry %s: %w", name, err)
		}
		newOrder = append(newOrder, name)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("bundle: close zip writer: %w", err)
	}

	// Drop tombstoned entries now that the rebuild has happened.
	newData := make(map[string][]byte, len(newOrder))
	newPresent := make(map[string]bool, len(newOrder))
	for _, name := range newOrder {
		newData[name] = b.data[name]
		newPresent[name] = true
	}
	b.data = newData
	b.present = newPresent
	b.order = newOrder
	b.needsRebuild = false

	if writeBacking && b.rw != nil {
		if _, err := b.rw.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("bundle: seek backing store: %w", err)
		}
		if trunc, ok := b.rw.(interface{ Truncate(int64) error }); ok {
			_ = trunc.Truncate(0)
		}
		if _, err := io.Copy(b.rw, bytes.NewReader(buf.Bytes())); err != nil {
			return fmt.Errorf("bundle: write backing store: %w", err)
		}
	}
	b.lastRebuild = buf.Bytes()
	return nil
}

// Bytes flushes pending changes and returns the archive bytes. Intended for
// memory-backed bundles but works for any bundle.
func (b *Bundle) Bytes() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.rebuildLocked(b.rw != nil); err != nil {
		return nil, err
	}
	out := make([]byte, len(b.lastRebuild))
	copy(out, b.lastRebuild)
	return out, nil
}

// Close flushes any pending lazy deletes. Errors are logged rather than
// panicking, mirroring flush-on-drop behavior in the reference
// implementation, since Go has no destructors to propagate them through.
func (b *Bundle) Close() error {
	if err := b.Flush(); err != nil {
		log.WithError(err).Warn("flush on close failed")
		return err
	}
	return nil
}
