package factstore

import "errors"

// ErrEmptyTransaction is returned by Commit when a transaction carries no
// asserts or retracts; callers treat this as "nothing to persist", not a
// hard error, mirroring Space.Create's "commit skipped if empty" policy.
var ErrEmptyTransaction = errors.New("factstore: empty transaction")
