// Package hashchain defines the hash linking rule for the audit ledger.
//
// Every event's hash is the SHA-256 of its predecessor's hash followed by
// the event's own canonical encoding. The first event in a chain links to
// GenesisHash, a sentinel that is deliberately not a valid hex digest so it
// can never collide with, or be mistaken for, a real hash.
//
// All functions here are pure: no I/O, no clock, no state. The chain
// verifier relies on this to recompute hashes without replaying any
// business logic.
package hashchain

import (
	"crypto/sha256"
	"encoding/hex"
)

// GenesisHash is the sentinel prev-hash of the first event in a chain.
// Its length and alphabet are out-of-band for a SHA-256 hex digest.
const GenesisHash = "genesis"

// Compute returns the hex-encoded SHA-256 hash of an event, given its
// canonical field encoding and the hash of the preceding event (or
// GenesisHash for the first event). The prev hash is mixed in ahead of the
// canonical bytes with a newline separator, so the pair (prevHash,
// canonical) maps to exactly one digest input.
func Compute(canonical []byte, prevHash string) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write([]byte{'\n'})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// IsDigest reports whether s has the shape of a hex-encoded SHA-256 digest.
// GenesisHash intentionally fails this check.
func IsDigest(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
