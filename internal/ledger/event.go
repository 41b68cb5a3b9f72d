package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/veridianhq/veridian-ledger/internal/canonical"
	"github.com/veridianhq/veridian-ledger/internal/hashchain"
)

// ActorType identifies who or what performed a recorded action.
type ActorType string

const (
	ActorHuman  ActorType = "human"
	ActorSystem ActorType = "system"
	ActorModel  ActorType = "ai-model"
)

// Valid reports whether a is one of the known actor types.
func (a ActorType) Valid() bool {
	switch a {
	case ActorHuman, ActorSystem, ActorModel:
		return true
	}
	return false
}

// Event is one immutable record of a business fact. Sequence and Hash are
// assigned by the log at append time; callers never choose them.
type Event struct {
	Sequence     int64           `json:"sequence"`
	Timestamp    time.Time       `json:"timestamp"`
	ActorType    ActorType       `json:"actor_type"`
	ActorID      string          `json:"actor_id"`
	EntityType   string          `json:"entity_type"`
	EntityID     string          `json:"entity_id"`
	Action       string          `json:"action"`
	Payload      json.RawMessage `json:"payload"`
	ModelVersion *string         `json:"model_version"`
	ReasonCodes  []string        `json:"reason_codes"`
	PrevHash     string          `json:"prev_hash"`
	Hash         string          `json:"hash"`
}

// Proposal carries the caller-supplied fields of an event to be appended.
// Timestamp is optional; the zero value means "now".
type Proposal struct {
	Timestamp    time.Time
	ActorType    ActorType
	ActorID      string
	EntityType   string
	EntityID     string
	Action       string
	Payload      any
	ModelVersion *string
	ReasonCodes  []string
}

// Validate checks the proposal's non-payload fields.
func (p *Proposal) Validate() error {
	if !p.ActorType.Valid() {
		return fmt.Errorf("invalid actor type %q", p.ActorType)
	}
	if p.ActorID == "" {
		return fmt.Errorf("actor id is required")
	}
	if p.Action == "" {
		return fmt.Errorf("action is required")
	}
	return nil
}

// normalize validates the proposal, canonicalizes its payload, and pins the
// timestamp. Canonicalization failures surface here, before any lock is
// taken or hash computed.
func (p *Proposal) normalize(now func() time.Time) (json.RawMessage, time.Time, error) {
	if err := p.Validate(); err != nil {
		return nil, time.Time{}, err
	}
	payload, err := canonical.Marshal(p.Payload)
	if err != nil {
		return nil, time.Time{}, err
	}
	ts := p.Timestamp
	if ts.IsZero() {
		ts = now()
	}
	// Microsecond precision: timestamptz stores no finer, and the stored
	// value must round-trip exactly for hash recomputation.
	return payload, ts.UTC().Truncate(time.Microsecond), nil
}

// Head is the chain tip: the most recently committed event's sequence and
// hash. An empty chain has Sequence -1 and Hash hashchain.GenesisHash.
type Head struct {
	Sequence int64  `json:"sequence"`
	Hash     string `json:"hash"`
}

func emptyHead() Head {
	return Head{Sequence: -1, Hash: hashchain.GenesisHash}
}

// computeHash canonicalizes the event's fields and chains them to PrevHash.
// The timestamp enters the canonical form as RFC 3339 with nanoseconds, in
// UTC, so the hash does not depend on the runtime's zone database.
func (e *Event) computeHash() (string, error) {
	fields := map[string]any{
		"sequence":      e.Sequence,
		"timestamp":     e.Timestamp.UTC().Format(time.RFC3339Nano),
		"actor_type":    string(e.ActorType),
		"actor_id":      e.ActorID,
		"entity_type":   e.EntityType,
		"entity_id":     e.EntityID,
		"action":        e.Action,
		"payload":       e.Payload,
		"model_version": e.ModelVersion,
		"reason_codes":  e.ReasonCodes,
	}
	canon, err := canonical.Marshal(fields)
	if err != nil {
		return "", err
	}
	return hashchain.Compute(canon, e.PrevHash), nil
}
