package ledger

import (
	"errors"
	"fmt"
)

// ErrConflict is returned by Append when another writer claimed the chain
// head between this writer's read and insert. The caller must re-read the
// head and retry the whole append; see AppendRetry.
var ErrConflict = errors.New("ledger: concurrent append conflict")

// ErrNotFound is returned when a requested event does not exist.
var ErrNotFound = errors.New("ledger: event not found")

// StorageError wraps a persistence failure. A dropped ledger write is a
// correctness defect, not a cosmetic one: callers must surface this to an
// operator rather than swallow it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ledger storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IntegrityError reports that a stored event disagrees with its recomputed
// hash or link. It indicates tampering or corruption and must never be
// caught and ignored.
type IntegrityError struct {
	Sequence int64
	Reason   BreakReason
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity violation at sequence %d: %s", e.Sequence, e.Reason)
}
