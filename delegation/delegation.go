// Package delegation wraps a UCAN delegation as a newtype implementing the
// fact-store Claim capability, the way the original Rust wraps
// ucan::Delegation<Ed25519Did> to work around the orphan-impl rule — Go has
// no such rule, but keeping the same wrapper shape keeps the CBOR shape,
// CID derivation, and Claim/assert-retract semantics identical.
package delegation

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"github.com/tonk-labs/tonk-sub000/factstore"
)

// dagCBORCodec is the multicodec code for DAG-CBOR, matching the encoding
// serde_ipld_dagcbor produces in the reference implementation.
const dagCBORCodec = 0x71

// PowerlineSubject is the wildcard subject value a powerline delegation uses.
const PowerlineSubject = "*"

var encMode = mustCanonicalEncMode()

func mustCanonicalEncMode() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("delegation: building canonical CBOR encoder: %v", err))
	}
	return em
}

// Delegation is a UCAN delegation: issuer and audience DIDs, a subject
// (specific DID, or PowerlineSubject for "any"), a command path, optional
// validity window, and a signature over the rest.
type Delegation struct {
	Issuer     string   `cbor:"iss"`
	Audience   string   `cbor:"aud"`
	Subject    string   `cbor:"sub"`
	Command    []string `cbor:"cmd"`
	Expiration *int64   `cbor:"exp,omitempty"`
	NotBefore  *int64   `cbor:"nbf,omitempty"`
	Signature  []byte   `cbor:"sig,omitempty"`
}

// New builds a Delegation. subject should be PowerlineSubject for a
// powerline grant.
func New(issuer, audience, subject string, command []string) *Delegation {
	return &Delegation{Issuer: issuer, Audience: audience, Subject: subject, Command: command}
}

// WithExpiration sets the expiration timestamp (Unix seconds) and returns d.
func (d *Delegation) WithExpiration(exp int64) *Delegation {
	d.Expiration = &exp
	return d
}

// WithNotBefore sets the notBefore timestamp (Unix seconds) and returns d.
func (d *Delegation) WithNotBefore(nbf int64) *Delegation {
	d.NotBefore = &nbf
	return d
}

// WithSignature attaches the signature bytes and returns d.
func (d *Delegation) WithSignature(sig []byte) *Delegation {
	d.Signature = append([]byte(nil), sig...)
	return d
}

func (d *Delegation) IssuerDID() string   { return d.Issuer }
func (d *Delegation) AudienceDID() string { return d.Audience }
func (d *Delegation) SubjectDID() string  { return d.Subject }

// CommandPath renders Command as a slash-joined path, e.g. "/read/write".
func (d *Delegation) CommandPath() string {
	return "/" + strings.Join(d.Command, "/")
}

// IsPowerline reports whether the subject is the wildcard.
func (d *Delegation) IsPowerline() bool {
	return d.Subject == PowerlineSubject
}

// Validate checks the delegation's validity window against now (Unix
// seconds): expired iff expiration <= now, not yet valid iff notBefore > now.
func (d *Delegation) Validate(now int64) error {
	if d.Expiration != nil && *d.Expiration <= now {
		return ErrExpired
	}
	if d.NotBefore != nil && *d.NotBefore > now {
		return ErrNotYetValid
	}
	return nil
}

// ToBytes serializes d as canonical (deterministic) DAG-CBOR.
func (d *Delegation) ToBytes() ([]byte, error) {
	data, err := encMode.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("delegation: marshal to cbor: %w", err)
	}
	return data, nil
}

// FromBytes parses canonical DAG-CBOR bytes produced by ToBytes.
func FromBytes(data []byte) (*Delegation, error) {
	var d Delegation
	if err := cbor.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("delegation: unmarshal cbor: %w", err)
	}
	return &d, nil
}

// CID returns the deterministic content identifier of d's DAG-CBOR
// encoding: equal delegations produce equal CIDs.
func (d *Delegation) CID() (cid.Cid, error) {
	data, err := d.ToBytes()
	if err != nil {
		return cid.Undef, err
	}
	hash, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("delegation: hash cbor bytes: %w", err)
	}
	return cid.NewCidV1(dagCBORCodec, hash), nil
}

// This returns d as a fact-store entity URI: "ucan:<cid>".
func (d *Delegation) This() (string, error) {
	c, err := d.CID()
	if err != nil {
		return "", err
	}
	return "ucan:" + c.String(), nil
}
