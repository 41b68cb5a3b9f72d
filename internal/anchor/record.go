// Package anchor publishes chain-head hashes to independent external
// systems, so that retroactive tampering with the primary store can be
// detected by cross-checking against externally dated copies of the hash.
//
// Each external medium is one Backend implementation; the Scheduler fans a
// head hash out to all enabled backends on a fixed cadence and persists a
// Record per successful publication.
package anchor

import (
	"time"

	"github.com/google/uuid"
)

// Method identifies the external medium a hash was anchored to.
type Method string

const (
	// MethodGist updates a versioned public gist; the gist's revision
	// history is the timestamp trail.
	MethodGist Method = "gist"

	// MethodEmail mails the hash to an escrow mailbox; SMTP Received
	// headers provide external corroboration.
	MethodEmail Method = "email"

	// MethodTimestamp submits the hash to a public timestamping
	// calendar, which commits it to a widely replicated ledger.
	MethodTimestamp Method = "opentimestamps"
)

// Valid reports whether m is a known anchoring method.
func (m Method) Valid() bool {
	switch m {
	case MethodGist, MethodEmail, MethodTimestamp:
		return true
	}
	return false
}

// Record is the durable proof that a specific chain-head hash was published
// to an external medium at a specific time. Records are immutable once
// written and always reference a hash that exists in the event log.
type Record struct {
	AnchorID          uuid.UUID `json:"anchor_id"`
	Timestamp         time.Time `json:"timestamp"`
	Method            Method    `json:"method"`
	ExternalReference string    `json:"external_reference"`
	AnchoredHash      string    `json:"anchored_hash"`
	AnchoredSequence  int64     `json:"anchored_sequence"`
}
