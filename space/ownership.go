package space

import (
	"github.com/tonk-labs/tonk-sub000/delegation"
	"github.com/tonk-labs/tonk-sub000/factstore"
)

// Ownership wraps a seed delegation as the fact-store Claim a space asserts
// when it is created: the delegation's own five relations (db/blob,
// ucan/issuer|audience|subject|cmd, keyed by the delegation's "ucan:<cid>"
// entity), plus one additional relation linking the space entity to the
// delegation: space/owner -> delegation CID.
type Ownership struct {
	SpaceDID   string
	Delegation *delegation.Delegation
}

// NewOwnership builds an Ownership claim binding d to spaceDID.
func NewOwnership(spaceDID string, d *delegation.Delegation) *Ownership {
	return &Ownership{SpaceDID: spaceDID, Delegation: d}
}

func (o *Ownership) Assert(tx *factstore.Transaction) error {
	if err := o.Delegation.Assert(tx); err != nil {
		return err
	}
	c, err := o.Delegation.CID()
	if err != nil {
		return err
	}
	tx.Assert(o.SpaceDID, "space/owner", c.String())
	return nil
}

func (o *Ownership) Retract(tx *factstore.Transaction) error {
	if err := o.Delegation.Retract(tx); err != nil {
		return err
	}
	c, err := o.Delegation.CID()
	if err != nil {
		return err
	}
	tx.Retract(o.SpaceDID, "space/owner", c.String())
	return nil
}

var _ factstore.Claim = (*Ownership)(nil)
