package delegation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonk-labs/tonk-sub000/factstore"
)

func makeTestDelegation() *Delegation {
	return New("did:key:issuer", "did:key:audience", "did:key:subject", []string{"read", "write"})
}

func TestExposesDelegationFields(t *testing.T) {
	d := makeTestDelegation()
	assert.Equal(t, "did:key:issuer", d.IssuerDID())
	assert.Equal(t, "did:key:audience", d.AudienceDID())
	assert.Equal(t, "did:key:subject", d.SubjectDID())
	assert.Equal(t, "/read/write", d.CommandPath())
	assert.False(t, d.IsPowerline())
}

func TestRoundtripsThroughCBOR(t *testing.T) {
	d := makeTestDelegation().WithExpiration(1000)

	data, err := d.ToBytes()
	require.NoError(t, err)

	decoded, err := FromBytes(data)
	require.NoError(t, err)

	assert.Equal(t, d.Issuer, decoded.Issuer)
	assert.Equal(t, d.Audience, decoded.Audience)
	assert.Equal(t, d.Command, decoded.Command)
	require.NotNil(t, decoded.Expiration)
	assert.Equal(t, *d.Expiration, *decoded.Expiration)
}

func TestProducesDeterministicCID(t *testing.T) {
	d := makeTestDelegation()
	cid1, err := d.CID()
	require.NoError(t, err)
	cid2, err := d.CID()
	require.NoError(t, err)
	assert.True(t, cid1.Equals(cid2))
}

func TestEqualDelegationsProduceEqualCIDs(t *testing.T) {
	d1 := makeTestDelegation()
	d2 := makeTestDelegation()
	cid1, err := d1.CID()
	require.NoError(t, err)
	cid2, err := d2.CID()
	require.NoError(t, err)
	assert.True(t, cid1.Equals(cid2))
}

func TestThisReturnsUcanPrefixedEntity(t *testing.T) {
	d := makeTestDelegation()
	this, err := d.This()
	require.NoError(t, err)
	assert.Contains(t, this, "ucan:")
}

func TestCreatesPowerlineDelegation(t *testing.T) {
	d := New("did:key:issuer", "did:key:audience", PowerlineSubject, []string{"read"})
	assert.True(t, d.IsPowerline())
}

func TestValidateWithoutExpiration(t *testing.T) {
	d := makeTestDelegation()
	assert.NoError(t, d.Validate(100))
}

func TestValidateExpired(t *testing.T) {
	d := makeTestDelegation().WithExpiration(100)
	assert.ErrorIs(t, d.Validate(100), ErrExpired)
	assert.ErrorIs(t, d.Validate(200), ErrExpired)
	assert.NoError(t, d.Validate(50))
}

func TestValidateNotYetValid(t *testing.T) {
	d := makeTestDelegation().WithNotBefore(100)
	assert.ErrorIs(t, d.Validate(50), ErrNotYetValid)
	assert.NoError(t, d.Validate(100))
	assert.NoError(t, d.Validate(150))
}

func TestAssertWritesFiveRelationsThenSeparateRetractClearsThem(t *testing.T) {
	d := makeTestDelegation()
	store := factstore.NewStore()
	this, err := d.This()
	require.NoError(t, err)

	tx := factstore.NewTransaction()
	require.NoError(t, d.Assert(tx))
	require.NoError(t, store.Commit(tx))

	entity := store.Entity(this)
	require.NotNil(t, entity)
	assert.Equal(t, "did:key:issuer", entity["ucan/issuer"])
	assert.Equal(t, "did:key:audience", entity["ucan/audience"])
	assert.Equal(t, "did:key:subject", entity["ucan/subject"])
	assert.Equal(t, "/read/write", entity["ucan/cmd"])
	assert.NotNil(t, entity["db/blob"])

	tx = factstore.NewTransaction()
	require.NoError(t, d.Retract(tx))
	require.NoError(t, store.Commit(tx))
	assert.Nil(t, store.Entity(this))
}

// Asserting then retracting the same delegation within a single transaction
// must be a no-op in the fact store: Commit replays ops in call order, so
// the retract queued after the assert wins.
func TestAssertThenRetractWithinSingleTransactionIsNoop(t *testing.T) {
	d := makeTestDelegation()
	store := factstore.NewStore()
	this, err := d.This()
	require.NoError(t, err)

	tx := factstore.NewTransaction()
	require.NoError(t, d.Assert(tx))
	require.NoError(t, d.Retract(tx))
	require.NoError(t, store.Commit(tx))

	assert.Nil(t, store.Entity(this))
}

func TestPowerlineAssertsWildcardSubject(t *testing.T) {
	d := New("did:key:issuer", "did:key:audience", PowerlineSubject, []string{"read"})
	store := factstore.NewStore()
	this, err := d.This()
	require.NoError(t, err)

	tx := factstore.NewTransaction()
	require.NoError(t, d.Assert(tx))
	require.NoError(t, store.Commit(tx))

	v, ok := store.Get(this, "ucan/subject")
	require.True(t, ok)
	assert.Equal(t, "*", v)
}

func TestDeriveSigningKeySameInputSameKey(t *testing.T) {
	key1, err := DeriveSigningKey("test passphrase", "")
	require.NoError(t, err)
	key2, err := DeriveSigningKey("test passphrase", "")
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
}

func TestDeriveSigningKeyDifferentPassphrasesDiffer(t *testing.T) {
	key1, err := DeriveSigningKey("passphrase one", "")
	require.NoError(t, err)
	key2, err := DeriveSigningKey("passphrase two", "")
	require.NoError(t, err)
	assert.NotEqual(t, key1, key2)
}

func TestDeriveSigningKeyDifferentInfoDiffers(t *testing.T) {
	key1, err := DeriveSigningKey("test passphrase", "")
	require.NoError(t, err)
	key2, err := DeriveSigningKey("test passphrase", "custom info")
	require.NoError(t, err)
	assert.NotEqual(t, key1, key2)
}

// Published test vector: native and browser HKDF-SHA256 implementations
// must agree on this exact seed for this exact (passphrase, info) pair.
func TestDeriveSigningKeyMatchesPublishedVector(t *testing.T) {
	expected := []byte{
		0xCB, 0xE3, 0x8F, 0x7A, 0x2C, 0x98, 0x0E, 0xE8, 0x4F, 0x18, 0x78, 0xC1, 0x69, 0x61, 0xE2, 0xFC,
		0x01, 0xD7, 0x0C, 0xE0, 0x25, 0xE2, 0x5C, 0x47, 0x37, 0x34, 0xC6, 0x54, 0xFB, 0x48, 0x58, 0xEF,
	}
	key, err := DeriveSigningKey("test passphrase", DefaultPassphraseInfo)
	require.NoError(t, err)
	assert.Equal(t, expected, key.Seed())
}
