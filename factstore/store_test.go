package factstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClaim struct {
	entity string
}

func (c stubClaim) Assert(tx *Transaction) error {
	tx.Assert(c.entity, "db/blob", []byte("blob"))
	tx.Assert(c.entity, "ucan/issuer", "did:key:issuer")
	return nil
}

func (c stubClaim) Retract(tx *Transaction) error {
	tx.Retract(c.entity, "db/blob", []byte("blob"))
	tx.Retract(c.entity, "ucan/issuer", "did:key:issuer")
	return nil
}

func TestCommitEmptyTransactionFails(t *testing.T) {
	store := NewStore()
	err := store.Commit(NewTransaction())
	assert.ErrorIs(t, err, ErrEmptyTransaction)
}

func TestClaimAssertThenRetractAcrossSeparateTransactions(t *testing.T) {
	store := NewStore()
	claim := stubClaim{entity: "ucan:abc"}

	tx := NewTransaction()
	require.NoError(t, claim.Assert(tx))
	require.NoError(t, store.Commit(tx))

	v, ok := store.Get("ucan:abc", "ucan/issuer")
	require.True(t, ok)
	assert.Equal(t, "did:key:issuer", v)

	tx = NewTransaction()
	require.NoError(t, claim.Retract(tx))
	require.NoError(t, store.Commit(tx))

	_, ok = store.Get("ucan:abc", "ucan/issuer")
	assert.False(t, ok)
	assert.Nil(t, store.Entity("ucan:abc"))
}

// Asserting then retracting the same claim within a single transaction must
// net to nothing: Commit replays queued ops in call order, so the retract
// (queued after the assert) wins, regardless of Transaction's internal
// storage for asserts vs. retracts.
func TestClaimAssertThenRetractWithinSingleTransactionIsNoop(t *testing.T) {
	store := NewStore()
	claim := stubClaim{entity: "ucan:abc"}

	tx := NewTransaction()
	require.NoError(t, claim.Assert(tx))
	require.NoError(t, claim.Retract(tx))
	require.NoError(t, store.Commit(tx))

	_, ok := store.Get("ucan:abc", "ucan/issuer")
	assert.False(t, ok)
	assert.Nil(t, store.Entity("ucan:abc"))
}

func TestByAttribute(t *testing.T) {
	store := NewStore()
	tx := NewTransaction()
	tx.Assert("space:one", "space/owner", "cid:one")
	tx.Assert("space:two", "space/owner", "cid:two")
	tx.Assert("space:one", "ucan/cmd", "/read/write")
	require.NoError(t, store.Commit(tx))

	owners := store.ByAttribute("space/owner")
	assert.Equal(t, map[string]any{"space:one": "cid:one", "space:two": "cid:two"}, owners)
}

func TestLastAssertWins(t *testing.T) {
	store := NewStore()
	tx := NewTransaction()
	tx.Assert("e1", "k", "first")
	tx.Assert("e1", "k", "second")
	require.NoError(t, store.Commit(tx))

	v, ok := store.Get("e1", "k")
	require.True(t, ok)
	assert.Equal(t, "second", v)
}
