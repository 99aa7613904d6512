//go:build js && wasm

package storage

import (
	"context"
	"errors"
	"syscall/js"
)

var (
	errIndexedDBUnavailable   = errors.New("storage: indexedDB unavailable in this environment")
	errIndexedDBRequestFailed = errors.New("storage: indexedDB request failed")
)

// wellKnownManifestKey is the single-component key browser adapters use to
// persist the bundle manifest for offline reload.
const wellKnownManifestKey = "__tonk_manifest__"

// IndexedDB is a browser-only Adapter backed by the object store "entries" of
// an IndexedDB database named "samod_storage_<namespace>", isolating
// concurrent tonks in the same origin by namespace.
type IndexedDB struct {
	namespace string
	db        js.Value
}

// NewIndexedDB opens (creating if absent) the object store for namespace.
func NewIndexedDB(ctx context.Context, namespace string) (*IndexedDB, error) {
	db, err := openIndexedDBStore(ctx, dbNameFor(namespace))
	if err != nil {
		return nil, err
	}
	return &IndexedDB{namespace: namespace, db: db}, nil
}

func dbNameFor(namespace string) string {
	return "samod_storage_" + namespace
}

func (i *IndexedDB) Load(ctx context.Context, key []string) ([]byte, bool) {
	return indexedDBGet(ctx, i.db, JoinKey(key))
}

func (i *IndexedDB) LoadRange(ctx context.Context, prefix []string) map[string][]byte {
	out := indexedDBGetRange(ctx, i.db, JoinKey(prefix))
	for joined := range out {
		if !HasPrefix(SplitKey(joined), prefix) {
			delete(out, joined)
		}
	}
	return out
}

func (i *IndexedDB) Put(ctx context.Context, key []string, data []byte) error {
	return indexedDBPut(ctx, i.db, JoinKey(key), data)
}

func (i *IndexedDB) Delete(ctx context.Context, key []string) error {
	return indexedDBDelete(ctx, i.db, JoinKey(key))
}

// StashManifest persists manifest bytes at the well-known key so a
// subsequent Build() with no bundle can reconstruct the VFS offline.
func (i *IndexedDB) StashManifest(ctx context.Context, manifestBytes []byte) error {
	return i.Put(ctx, []string{wellKnownManifestKey}, manifestBytes)
}

// StashedManifest reads back the manifest stashed by StashManifest, if any.
func (i *IndexedDB) StashedManifest(ctx context.Context) ([]byte, bool) {
	return i.Load(ctx, []string{wellKnownManifestKey})
}

const objectStoreName = "entries"

// openIndexedDBStore opens (creating on upgrade) a single object store named
// objectStoreName inside the database dbName, blocking the calling goroutine
// until the open request settles.
func openIndexedDBStore(ctx context.Context, dbName string) (js.Value, error) {
	idb := js.Global().Get("indexedDB")
	if idb.IsUndefined() {
		return js.Value{}, errIndexedDBUnavailable
	}

	result := make(chan jsResult, 1)
	req := idb.Call("open", dbName, 1)
	req.Set("onupgradeneeded", js.FuncOf(func(this js.Value, args []js.Value) any {
		db := req.Get("result")
		if !db.Call("objectStoreNames").Call("contains", objectStoreName).Bool() {
			db.Call("createObjectStore", objectStoreName)
		}
		return nil
	}))
	waitForRequest(req, result)

	select {
	case <-ctx.Done():
		return js.Value{}, ctx.Err()
	case r := <-result:
		if r.err != nil {
			return js.Value{}, r.err
		}
		return req.Get("result"), nil
	}
}

type jsResult struct {
	value js.Value
	err   error
}

func waitForRequest(req js.Value, out chan jsResult) {
	var success, failure js.Func
	success = js.FuncOf(func(this js.Value, args []js.Value) any {
		out <- jsResult{value: req.Get("result")}
		success.Release()
		failure.Release()
		return nil
	})
	failure = js.FuncOf(func(this js.Value, args []js.Value) any {
		out <- jsResult{err: errIndexedDBRequestFailed}
		success.Release()
		failure.Release()
		return nil
	})
	req.Set("onsuccess", success)
	req.Set("onerror", failure)
}

func withStore(ctx context.Context, db js.Value, mode string, fn func(store js.Value) js.Value) (js.Value, error) {
	tx := db.Call("transaction", js.ValueOf([]any{objectStoreName}), mode)
	store := tx.Call("objectStore", objectStoreName)
	req := fn(store)
	out := make(chan jsResult, 1)
	waitForRequest(req, out)
	select {
	case <-ctx.Done():
		return js.Value{}, ctx.Err()
	case r := <-out:
		if r.err != nil {
			return js.Value{}, r.err
		}
		return r.value, nil
	}
}

func indexedDBGet(ctx context.Context, db js.Value, key string) ([]byte, bool) {
	val, err := withStore(ctx, db, "readonly", func(store js.Value) js.Value {
		return store.Call("get", key)
	})
	if err != nil || val.IsUndefined() || val.IsNull() {
		return nil, false
	}
	return jsValueToBytes(val), true
}

func indexedDBGetRange(ctx context.Context, db js.Value, prefix string) map[string][]byte {
	out := make(map[string][]byte)
	val, err := withStore(ctx, db, "readonly", func(store js.Value) js.Value {
		return store.Call("getAllKeys")
	})
	if err != nil {
		return out
	}
	length := val.Get("length").Int()
	for idx := 0; idx < length; idx++ {
		key := val.Index(idx).String()
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		if data, ok := indexedDBGet(ctx, db, key); ok {
			out[key] = data
		}
	}
	return out
}

func indexedDBPut(ctx context.Context, db js.Value, key string, data []byte) error {
	_, err := withStore(ctx, db, "readwrite", func(store js.Value) js.Value {
		return store.Call("put", bytesToJSValue(data), key)
	})
	return err
}

func indexedDBDelete(ctx context.Context, db js.Value, key string) error {
	_, err := withStore(ctx, db, "readwrite", func(store js.Value) js.Value {
		return store.Call("delete", key)
	})
	return err
}

func jsValueToBytes(v js.Value) []byte {
	length := v.Get("length").Int()
	out := make([]byte, length)
	js.CopyBytesToGo(out, v)
	return out
}

func bytesToJSValue(data []byte) js.Value {
	arr := js.Global().Get("Uint8Array").New(len(data))
	js.CopyBytesToJS(arr, data)
	return arr
}
