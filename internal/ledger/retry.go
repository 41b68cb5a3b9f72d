package ledger

import (
	"context"
	"errors"
	"fmt"
)

// AppendRetry appends p, retrying up to attempts times when the append
// loses a head race. Each retry re-reads the head and recomputes the hash
// inside Append itself, so the proposal is never resubmitted against stale
// chain state. Non-conflict errors are returned immediately.
func AppendRetry(ctx context.Context, log Log, p Proposal, attempts int) (*Event, error) {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		var e *Event
		e, err = log.Append(ctx, p)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("append abandoned after %d attempts: %w", attempts, err)
}
