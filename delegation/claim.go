package delegation

import "github.com/tonk-labs/tonk-sub000/factstore"

// Assert emits the five EAV relations for d into tx, keyed by d's entity URI:
// db/blob (raw CBOR), ucan/issuer, ucan/audience, ucan/subject (or "*" for a
// powerline delegation), ucan/cmd.
func (d *Delegation) Assert(tx *factstore.Transaction) error {
	this, blob, err := d.entityAndBlob()
	if err != nil {
		return err
	}
	tx.Assert(this, "db/blob", blob)
	tx.Assert(this, "ucan/issuer", d.Issuer)
	tx.Assert(this, "ucan/audience", d.Audience)
	tx.Assert(this, "ucan/subject", d.Subject)
	tx.Assert(this, "ucan/cmd", d.CommandPath())
	return nil
}

// Retract queues removal of the same five relations Assert writes.
func (d *Delegation) Retract(tx *factstore.Transaction) error {
	this, blob, err := d.entityAndBlob()
	if err != nil {
		return err
	}
	tx.Retract(this, "db/blob", blob)
	tx.Retract(this, "ucan/issuer", d.Issuer)
	tx.Retract(this, "ucan/audience", d.Audience)
	tx.Retract(this, "ucan/subject", d.Subject)
	tx.Retract(this, "ucan/cmd", d.CommandPath())
	return nil
}

func (d *Delegation) entityAndBlob() (string, []byte, error) {
	this, err := d.This()
	if err != nil {
		return "", nil, err
	}
	blob, err := d.ToBytes()
	if err != nil {
		return "", nil, err
	}
	return this, blob, nil
}

var _ factstore.Claim = (*Delegation)(nil)
