package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryLog is an in-memory, thread-safe Log implementation. Appends are
// serialised by a mutex, so the single-writer guarantee holds trivially.
// Useful for tests and single-process development deployments.
type MemoryLog struct {
	mu     sync.RWMutex
	events []*Event
	now    func() time.Time
}

// NewMemoryLog creates an empty MemoryLog.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{now: func() time.Time { return time.Now().UTC() }}
}

// Append implements Log.
func (l *MemoryLog) Append(_ context.Context, p Proposal) (*Event, error) {
	payload, ts, err := p.normalize(l.now)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	head := emptyHead()
	if n := len(l.events); n > 0 {
		last := l.events[n-1]
		head = Head{Sequence: last.Sequence, Hash: last.Hash}
	}

	e := &Event{
		Sequence:     head.Sequence + 1,
		Timestamp:    ts,
		ActorType:    p.ActorType,
		ActorID:      p.ActorID,
		EntityType:   p.EntityType,
		EntityID:     p.EntityID,
		Action:       p.Action,
		Payload:      payload,
		ModelVersion: p.ModelVersion,
		ReasonCodes:  p.ReasonCodes,
		PrevHash:     head.Hash,
	}
	if e.Hash, err = e.computeHash(); err != nil {
		return nil, err
	}

	l.events = append(l.events, e)
	return e, nil
}

// Get implements Log.
func (l *MemoryLog) Get(_ context.Context, seq int64) (*Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if seq < 0 || seq >= int64(len(l.events)) {
		return nil, ErrNotFound
	}
	return l.events[seq], nil
}

// ReadRange implements Log.
func (l *MemoryLog) ReadRange(_ context.Context, from, to int64) ([]*Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*Event
	for _, e := range l.events {
		if e.Sequence >= from && e.Sequence <= to {
			out = append(out, e)
		}
	}
	return out, nil
}

// Head implements Log.
func (l *MemoryLog) Head(_ context.Context) (Head, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.events) == 0 {
		return emptyHead(), nil
	}
	last := l.events[len(l.events)-1]
	return Head{Sequence: last.Sequence, Hash: last.Hash}, nil
}

// Len implements Log.
func (l *MemoryLog) Len(_ context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.events)), nil
}
