package anchor

import (
	"context"
	"fmt"
)

// Backend durably publishes a hash outside the primary system. A publish
// is all-or-nothing: either a complete Record comes back or an error does.
// Backends fail independently; one backend's outage never blocks another.
type Backend interface {
	// Method identifies the external medium this backend writes to.
	Method() Method

	// Publish pushes the hash of the event at the given sequence to the
	// external medium and returns the resulting Record (not yet
	// persisted — the scheduler owns persistence).
	Publish(ctx context.Context, hash string, sequence int64) (*Record, error)
}

// BackendError wraps a single backend's publish failure (network, auth,
// quota). It aborts that backend's attempt only; the scheduler retries the
// backend on the next cycle.
type BackendError struct {
	Method Method
	Err    error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("anchor backend %s: %v", e.Method, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
