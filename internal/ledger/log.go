package ledger

import "context"

// Log is the append-only store abstraction for a single audit chain.
type Log interface {
	// Append assigns the next sequence, chains the event to the current
	// head, and persists it. Returns ErrConflict if a concurrent append
	// won the race for the same head, a *canonical.SerializationError if
	// the payload cannot be canonicalized, or a *StorageError on
	// persistence failure.
	Append(ctx context.Context, p Proposal) (*Event, error)

	// Get returns the event at the given sequence, or ErrNotFound.
	Get(ctx context.Context, seq int64) (*Event, error)

	// ReadRange returns events with from <= sequence <= to, in order.
	// The read is a point-in-time snapshot and does not block writers.
	ReadRange(ctx context.Context, from, to int64) ([]*Event, error)

	// Head returns the chain tip of the most recently committed append,
	// never a partially written one.
	Head(ctx context.Context) (Head, error)

	// Len returns the number of events in the chain.
	Len(ctx context.Context) (int64, error)
}
