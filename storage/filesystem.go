package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var fsLog = logrus.WithField("component", "storage.filesystem")

// Filesystem is a directory-tree-backed Adapter: each key component is a
// path segment, with the full key rooted under baseDir. Modeled directly on
// the teacher's FSOS/FSSession pair, including its per-path session
// coordination via a guarded map — here a single mutex per adapter, since
// every operation touches the same directory tree.
type Filesystem struct {
	mu      sync.Mutex
	baseDir string
}

// NewFilesystem roots a Filesystem adapter at baseDir, creating it if absent.
func NewFilesystem(baseDir string) (*Filesystem, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	return &Filesystem{baseDir: baseDir}, nil
}

func (f *Filesystem) pathFor(key []string) string {
	parts := append([]string{f.baseDir}, key...)
	return filepath.Join(parts...)
}

func (f *Filesystem) Load(ctx context.Context, key []string) ([]byte, bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.pathFor(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (f *Filesystem) LoadRange(ctx context.Context, prefix []string) map[string][]byte {
	out := make(map[string][]byte)
	f.mu.Lock()
	defer f.mu.Unlock()

	root := f.pathFor(prefix)
	info, err := os.Stat(root)
	if err != nil {
		return out
	}
	if !info.IsDir() {
		if data, err := os.ReadFile(root); err == nil {
			out[JoinKey(prefix)] = data
		}
		return out
	}

	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(f.baseDir, path)
		if relErr != nil {
			return nil
		}
		key := splitFilesystemPath(rel)
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			fsLog.WithError(readErr).WithField("path", path).Warn("skipping unreadable entry")
			return nil
		}
		out[JoinKey(key)] = data
		return nil
	})
	return out
}

func (f *Filesystem) Put(ctx context.Context, key []string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	target := f.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.WriteFile(target, data, 0o644)
}

func (f *Filesystem) Delete(_ context.Context, key []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.pathFor(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func splitFilesystemPath(rel string) []string {
	slashed := filepath.ToSlash(rel)
	parts := strings.Split(slashed, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
