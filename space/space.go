// Package space implements a named, owned branch of a fact store: created
// with a seed set of delegations turned into Ownership claims, edited and
// committed via factstore transactions, and optionally synchronized with a
// single upstream RemoteState via Push/Pull/Sync. Modeled directly on the
// create/open/edit/commit/add_remote/push/pull lifecycle of the reference
// implementation's Space type, generalized from a dialog-db branch to this
// module's in-memory factstore.Store plus a pluggable storage.Adapter for
// local persistence.
package space

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tonk-labs/tonk-sub000/delegation"
	"github.com/tonk-labs/tonk-sub000/factstore"
	"github.com/tonk-labs/tonk-sub000/storage"
)

var log = logrus.WithField("component", "space")

// mainBranch is the only branch this implementation manages; the reference
// implementation supports others, but nothing in this module's scope needs
// more than one.
const mainBranch = "main"

// Space is a named branch of a fact store, identified by a space DID and
// operated by an operator (the DID whose key signs/issues on its behalf).
type Space struct {
	mu               sync.RWMutex
	did              string
	operator         string
	store            *factstore.Store
	adapter          storage.Adapter
	revision         Revision
	upstream         RemoteState
	upstreamRevision *Revision
}

func storageKey(spaceDID string) []string {
	return []string{"space", spaceDID, mainBranch}
}

// Create opens adapter for spaceDID, asserts one Ownership claim per
// delegation (skipping the commit entirely if that yields no facts, since
// an empty commit fails on a fresh branch), and persists the result.
func Create(ctx context.Context, spaceDID, operatorDID string, adapter storage.Adapter, delegations []*delegation.Delegation) (*Space, error) {
	s := &Space{
		did:      spaceDID,
		operator: operatorDID,
		store:    factstore.NewStore(),
		adapter:  adapter,
	}

	tx := s.Edit()
	for _, d := range delegations {
		if err := NewOwnership(spaceDID, d).Assert(tx); err != nil {
			return nil, fmt.Errorf("space: assert ownership: %w", err)
		}
	}
	if !tx.IsEmpty() {
		if err := s.Commit(ctx, tx); err != nil {
			return nil, err
		}
	} else if err := s.persist(ctx); err != nil {
		return nil, err
	}

	log.WithField("space", spaceDID).WithField("delegations", len(delegations)).Info("created space")
	return s, nil
}

// Open loads the persisted snapshot for spaceDID from adapter.
func Open(ctx context.Context, spaceDID, operatorDID string, adapter storage.Adapter) (*Space, error) {
	data, ok := adapter.Load(ctx, storageKey(spaceDID))
	if !ok {
		return nil, ErrSpaceNotFound
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("space: decode persisted snapshot: %w", err)
	}
	s := &Space{
		did:      spaceDID,
		operator: operatorDID,
		store:    factstore.NewStore(),
		adapter:  adapter,
		revision: snap.Revision,
	}
	s.store.Import(snap.Facts)
	return s, nil
}

// DID returns the space's DID.
func (s *Space) DID() string { return s.did }

// Operator returns the DID of the operator this space was created/opened with.
func (s *Space) Operator() string { return s.operator }

// Store exposes the underlying fact store for read queries (Get/Entity/ByAttribute).
func (s *Space) Store() *factstore.Store { return s.store }

// Edit returns a fresh transaction for queuing asserts/retracts; pass it to Commit.
func (s *Space) Edit() *factstore.Transaction {
	return factstore.NewTransaction()
}

// Commit applies tx to the space's fact store and persists the result. A
// transaction with nothing queued is a silent no-op, matching the reference
// implementation's "only commit if we have changes" guard.
func (s *Space) Commit(ctx context.Context, tx *factstore.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.IsEmpty() {
		return nil
	}
	if err := s.store.Commit(tx); err != nil {
		return fmt.Errorf("space: commit: %w", err)
	}
	s.revision = s.revision.next()
	return s.persist(ctx)
}

// Revision returns the space's current local revision.
func (s *Space) Revision() Revision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// HasUpstream reports whether a remote has been added.
func (s *Space) HasUpstream() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upstream != nil
}

// AddRemote sets remote as this space's upstream. Exactly one upstream is
// permitted per branch; calling this twice returns ErrUpstreamAlreadySet.
func (s *Space) AddRemote(remote RemoteState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upstream != nil {
		return ErrUpstreamAlreadySet
	}
	s.upstream = remote
	return nil
}

// Push uploads the local state to upstream if it differs from what upstream
// currently holds. Returns the upstream's previous revision (nil if nothing
// needed pushing), ErrNoUpstream if no remote was added.
func (s *Space) Push(ctx context.Context) (*Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upstream == nil {
		return nil, ErrNoUpstream
	}

	remoteSnap, ok, err := s.upstream.Fetch(ctx, s.did, mainBranch)
	if err != nil {
		return nil, fmt.Errorf("space: push: fetch upstream: %w", err)
	}
	oldRevision := Revision{}
	if ok {
		if remoteSnap.Revision.Equal(s.revision) {
			return nil, nil
		}
		oldRevision = remoteSnap.Revision
	}

	snap := Snapshot{Revision: s.revision, Facts: s.store.Export()}
	if err := s.upstream.Store(ctx, s.did, mainBranch, snap); err != nil {
		return nil, fmt.Errorf("space: push: store upstream: %w", err)
	}
	pushedRevision := s.revision
	s.upstreamRevision = &pushedRevision
	log.WithField("space", s.did).WithField("revision", s.revision.String()).Info("pushed space")
	return &oldRevision, nil
}

// Pull downloads upstream's state into the local store if it differs from
// the local revision. Returns the local revision prior to the pull (nil if
// already in sync), ErrNoUpstream if no remote was added.
func (s *Space) Pull(ctx context.Context) (*Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upstream == nil {
		return nil, ErrNoUpstream
	}

	remoteSnap, ok, err := s.upstream.Fetch(ctx, s.did, mainBranch)
	if err != nil {
		return nil, fmt.Errorf("space: pull: fetch upstream: %w", err)
	}
	if !ok || remoteSnap.Revision.Equal(s.revision) {
		return nil, nil
	}

	old := s.revision
	s.store.Import(remoteSnap.Facts)
	s.revision = remoteSnap.Revision
	s.upstreamRevision = &remoteSnap.Revision
	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	log.WithField("space", s.did).WithField("revision", s.revision.String()).Info("pulled space")
	return &old, nil
}

// SyncResult reports what Sync did on each side.
type SyncResult struct {
	Pulled *Revision
	Pushed *Revision
}

// Sync pulls, then pushes.
func (s *Space) Sync(ctx context.Context) (SyncResult, error) {
	pulled, err := s.Pull(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	pushed, err := s.Push(ctx)
	if err != nil {
		return SyncResult{Pulled: pulled}, err
	}
	return SyncResult{Pulled: pulled, Pushed: pushed}, nil
}

func (s *Space) persist(ctx context.Context) error {
	if s.adapter == nil {
		return nil
	}
	snap := Snapshot{Revision: s.revision, Facts: s.store.Export()}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("space: encode snapshot: %w", err)
	}
	if err := s.adapter.Put(ctx, storageKey(s.did), data); err != nil {
		return fmt.Errorf("space: persist snapshot: %w", err)
	}
	return nil
}
