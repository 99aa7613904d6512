// Package storage implements the StorageAdapter capability contract — a
// four-operation (load/load_range/put/delete) interface satisfied by
// in-memory, filesystem, bundle-backed, and (under js/wasm) IndexedDB
// implementations, matching the shape of the teacher's OSDriver/OSSession
// abstraction generalized from file sessions to CRDT storage keys.
package storage

import (
	"context"
	"strings"
)

// Adapter is the capability consumed by the CRDT repo: exact load, prefix
// load, put, and delete over a key made of ordered components.
type Adapter interface {
	// Load performs an exact lookup. The bool is false if absent or unreadable.
	Load(ctx context.Context, key []string) ([]byte, bool)
	// LoadRange returns every entry whose key is prefixed by prefix, keyed by
	// the joined key string (see JoinKey).
	LoadRange(ctx context.Context, prefix []string) map[string][]byte
	// Put overwrites key with data. Must be durable by the time it returns.
	Put(ctx context.Context, key []string, data []byte) error
	// Delete removes key if present; no-op otherwise.
	Delete(ctx context.Context, key []string) error
}

// JoinKey renders a storage key as a single string for use as a map key,
// joining components with a separator that cannot appear inside a single
// component (components come from document ids and fixed suffixes, never
// containing "\x00").
func JoinKey(key []string) string {
	return strings.Join(key, "\x00")
}

// SplitKey reverses JoinKey.
func SplitKey(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, "\x00")
}

// HasPrefix reports whether key starts with every component of prefix, in order.
func HasPrefix(key, prefix []string) bool {
	if len(prefix) > len(key) {
		return false
	}
	for i, p := range prefix {
		if key[i] != p {
			return false
		}
	}
	return true
}

// Splay encodes a storage key's first component for bounded directory
// fan-out: a document id of at least two characters is split into its first
// two characters and the remainder, so ["abcdef", "snapshot"] becomes
// ["ab", "cdef", "snapshot"]. Shorter ids are left untouched.
func Splay(key []string) []string {
	if len(key) == 0 {
		return key
	}
	id := key[0]
	if len(id) < 2 {
		return key
	}
	out := make([]string, 0, len(key)+1)
	out = append(out, id[:2], id[2:])
	out = append(out, key[1:]...)
	return out
}

// Unsplay reverses Splay: given the splayed path components found under a
// bundle's storage/ prefix, reconstructs the original storage key.
func Unsplay(components []string) []string {
	if len(components) < 2 {
		return components
	}
	first, rest := components[0], components[1]
	if len(first) != 2 {
		return components
	}
	out := make([]string, 0, len(components)-1)
	out = append(out, first+rest)
	out = append(out, components[2:]...)
	return out
}
