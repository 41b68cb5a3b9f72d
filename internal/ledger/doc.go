// Package ledger implements the append-only, hash-chained audit event log.
//
// Every consequential business action in the marketplace (submissions,
// status transitions, registrations) is recorded as an immutable Event.
// Each event carries the hash of its predecessor, so retroactive tampering
// with any stored event breaks the chain and is detectable via the
// Verifier. The first event in a chain links to hashchain.GenesisHash.
//
// The log owns sequence assignment and hash computation; callers only
// supply the pre-hash fields via a Proposal. Two implementations of the
// Log interface are provided:
//   - MemoryLog: in-process, for testing and development.
//   - PostgresLog: durable, with appends serialised by an advisory lock
//     and backed by uniqueness constraints on sequence and prev_hash.
package ledger
