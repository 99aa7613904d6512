// Package crdt provides the minimal handle-factory contract the VFS expects
// from a CRDT document-graph library (create/find/connect, with_document
// transactions) together with a reference in-memory implementation backed by
// a storage.Adapter. It deliberately does not implement a general CRDT merge
// algorithm: that is out of scope (see SPEC_FULL.md §1 Non-goals). Each
// document here is last-writer-wins, which is sufficient to drive and test
// every VFS operation above this boundary.
package crdt

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tonk-labs/tonk-sub000/storage"
)

var log = logrus.WithField("component", "crdt")

// Direction describes which side initiated a Connect call.
type Direction int

const (
	// DirectionOutgoing is used when this repo dialed the remote peer.
	DirectionOutgoing Direction = iota
	// DirectionIncoming is used when the remote peer dialed this repo.
	DirectionIncoming
)

// FinishReason describes why a Connect call returned.
type FinishReason string

const (
	FinishReasonClosed    FinishReason = "closed"
	FinishReasonCancelled FinishReason = "cancelled"
	FinishReasonError     FinishReason = "error"
)

type document struct {
	mu   sync.Mutex
	data []byte
}

// Repo is the reference CRDT document store: a handle factory over a
// storage.Adapter, with an in-memory cache of live documents.
type Repo struct {
	peerID  string
	adapter storage.Adapter

	mu   sync.RWMutex
	docs map[string]*document
}

// NewRepo constructs a Repo over adapter. If peerID is empty, a random UUID
// is generated.
func NewRepo(adapter storage.Adapter, peerID string) *Repo {
	if peerID == "" {
		peerID = uuid.NewString()
	}
	return &Repo{
		peerID:  peerID,
		adapter: adapter,
		docs:    make(map[string]*document),
	}
}

// PeerID returns this repo's peer identifier.
func (r *Repo) PeerID() string {
	return r.peerID
}

// Handle is a reference to a single document within a Repo.
type Handle struct {
	repo *Repo
	id   string
}

// DocumentID returns the handle's document id.
func (h *Handle) DocumentID() string {
	return h.id
}

// Create allocates a fresh document id, seeds it with initial bytes, and
// persists it through the repo's storage adapter.
func (r *Repo) Create(ctx context.Context, initial []byte) (*Handle, error) {
	id := uuid.NewString()
	doc := &document{data: append([]byte(nil), initial...)}

	r.mu.Lock()
	r.docs[id] = doc
	r.mu.Unlock()

	if err := r.adapter.Put(ctx, []string{id}, initial); err != nil {
		return nil, fmt.Errorf("crdt: persist new document %s: %w", id, err)
	}
	return &Handle{repo: r, id: id}, nil
}

// Find looks up an existing document by id, checking the in-memory cache
// before falling back to the storage adapter.
func (r *Repo) Find(ctx context.Context, id string) (*Handle, bool) {
	r.mu.RLock()
	_, cached := r.docs[id]
	r.mu.RUnlock()
	if cached {
		return &Handle{repo: r, id: id}, true
	}

	data, ok := r.adapter.Load(ctx, []string{id})
	if !ok {
		return nil, false
	}
	r.mu.Lock()
	if _, already := r.docs[id]; !already {
		r.docs[id] = &document{data: data}
	}
	r.mu.Unlock()
	return &Handle{repo: r, id: id}, true
}

func (r *Repo) documentFor(h *Handle) *document {
	r.mu.RLock()
	doc, ok := r.docs[h.id]
	r.mu.RUnlock()
	if ok {
		return doc
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[h.id]; ok {
		return doc
	}
	doc = &document{}
	r.docs[h.id] = doc
	return doc
}

// WithDocument runs fn against the handle's current bytes under the
// document's own lock; fn's return value becomes the new stored bytes if non-nil.
// Callers SHOULD keep fn fast: the lock is held for its duration.
func (h *Handle) WithDocument(ctx context.Context, fn func(current []byte) ([]byte, error)) error {
	doc := h.repo.documentFor(h)
	doc.mu.Lock()
	defer doc.mu.Unlock()

	next, err := fn(doc.data)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	doc.data = next
	if err := h.repo.adapter.Put(ctx, []string{h.id}, next); err != nil {
		return fmt.Errorf("crdt: persist document %s: %w", h.id, err)
	}
	return nil
}

// Connect opens an outgoing or incoming sync channel over conn. The wire
// protocol is a minimal length-prefixed document-id/bytes push, sufficient
// to exercise the VFS's storage-adapter boundary over a transport; it is not
// a general CRDT merge protocol (that detail belongs to the external library
// this package stands in for).
func (r *Repo) Connect(ctx context.Context, conn io.ReadWriteCloser, dir Direction) (FinishReason, error) {
	defer conn.Close()
	log.WithField("direction", dir).Debug("crdt connect")

	done := make(chan FinishReason, 1)
	go func() {
		for {
			msg, err := readFrame(conn)
			if err != nil {
				if err == io.EOF {
					done <- FinishReasonClosed
				} else {
					log.WithError(err).Warn("connection read failed")
					done <- FinishReasonError
				}
				return
			}
			r.applyRemoteFrame(ctx, msg)
		}
	}()

	select {
	case <-ctx.Done():
		return FinishReasonCancelled, ctx.Err()
	case reason := <-done:
		return reason, nil
	}
}

// PushUpdate writes the handle's current bytes to conn as a sync frame, for
// callers driving an outgoing Connect manually (e.g. an initial full sync).
func (h *Handle) PushUpdate(conn io.Writer) error {
	doc := h.repo.documentFor(h)
	doc.mu.Lock()
	data := append([]byte(nil), doc.data...)
	doc.mu.Unlock()
	return writeFrame(conn, frame{id: h.id, data: data})
}

func (r *Repo) applyRemoteFrame(ctx context.Context, msg frame) {
	r.mu.Lock()
	doc, ok := r.docs[msg.id]
	if !ok {
		doc = &document{}
		r.docs[msg.id] = doc
	}
	r.mu.Unlock()

	doc.mu.Lock()
	doc.data = msg.data
	doc.mu.Unlock()

	if err := r.adapter.Put(ctx, []string{msg.id}, msg.data); err != nil {
		log.WithError(err).WithField("doc", msg.id).Warn("failed to persist incoming sync frame")
	}
}
