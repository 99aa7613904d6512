// Package factstore implements an in-memory EAV (entity/attribute/value)
// triple store and the Claim/Transaction contract delegations and space
// ownership records are written through, standing in for the fact-query
// language this module treats as an external collaborator (see
// SPEC_FULL.md's "Out of scope" list).
package factstore

// opKind distinguishes an assert from a retract in a Transaction's op log.
type opKind int

const (
	opAssert opKind = iota
	opRetract
)

// Fact is a single entity/attribute/value triple.
type Fact struct {
	Entity    string
	Attribute string
	Value     any
}

// op is one queued operation against a single (entity, attribute).
type op struct {
	kind      opKind
	entity    string
	attribute string
	value     any
}

// Transaction accumulates asserts and retracts from one or more Claims, in
// the exact order they were queued, before being committed to a Store as a
// unit. Call order matters: asserting then retracting the same
// (entity, attribute) within one Transaction nets to nothing, since Commit
// replays the op log in sequence rather than applying all retracts before
// all asserts.
type Transaction struct {
	ops []op
}

// NewTransaction returns an empty Transaction.
func NewTransaction() *Transaction {
	return &Transaction{}
}

// Assert queues (entity, attribute, value) to be written on Commit.
func (t *Transaction) Assert(entity, attribute string, value any) {
	t.ops = append(t.ops, op{kind: opAssert, entity: entity, attribute: attribute, value: value})
}

// Retract queues (entity, attribute) to be cleared on Commit, regardless of
// its current value.
func (t *Transaction) Retract(entity, attribute string, value any) {
	t.ops = append(t.ops, op{kind: opRetract, entity: entity, attribute: attribute, value: value})
}

// IsEmpty reports whether the transaction has nothing queued.
func (t *Transaction) IsEmpty() bool {
	return len(t.ops) == 0
}

// Claim is a capability that knows how to emit itself as EAV facts into a
// Transaction, in both directions.
type Claim interface {
	Assert(tx *Transaction) error
	Retract(tx *Transaction) error
}
