package ledger

import (
	"context"
	"encoding/json"
	"testing"
)

// These tests tamper with stored events directly, bypassing the API, to
// prove the verifier detects after-the-fact modification of storage.

var ctx = context.Background()

func seedLog(t *testing.T, n int) *MemoryLog {
	t.Helper()
	l := NewMemoryLog()
	for i := 0; i < n; i++ {
		_, err := l.Append(ctx, Proposal{
			ActorType:  ActorHuman,
			ActorID:    "sponsor@example.com",
			EntityType: "application",
			EntityID:   "app-17",
			Action:     "application_submitted",
			Payload:    map[string]any{"round": i},
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return l
}

func TestVerify_validChain(t *testing.T) {
	l := seedLog(t, 5)
	res, err := NewVerifier(l).Verify(ctx, 0, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid {
		t.Errorf("expected valid chain, got broken at %d (%s)", res.FirstBrokenSequence, res.Reason)
	}
	if res.Checked != 5 {
		t.Errorf("checked %d events, want 5", res.Checked)
	}
}

func TestVerify_alteredPayload(t *testing.T) {
	l := seedLog(t, 3)
	l.events[1].Payload = json.RawMessage(`{"round":999}`)

	res, err := NewVerifier(l).Verify(ctx, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid {
		t.Fatal("tampered chain reported valid")
	}
	if res.FirstBrokenSequence != 1 {
		t.Errorf("first broken sequence = %d, want 1", res.FirstBrokenSequence)
	}
	if res.Reason != ReasonHashMismatch {
		t.Errorf("reason = %s, want %s", res.Reason, ReasonHashMismatch)
	}
}

func TestVerify_alteredActorField(t *testing.T) {
	l := seedLog(t, 4)
	l.events[2].ActorID = "attacker@example.com"

	res, err := NewVerifier(l).Verify(ctx, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid || res.FirstBrokenSequence != 2 || res.Reason != ReasonHashMismatch {
		t.Errorf("got (valid=%v, seq=%d, reason=%s), want (false, 2, %s)",
			res.Valid, res.FirstBrokenSequence, res.Reason, ReasonHashMismatch)
	}
}

func TestVerify_deletedEvent(t *testing.T) {
	l := seedLog(t, 4)
	l.events = append(l.events[:1], l.events[2:]...) // drop sequence 1

	res, err := NewVerifier(l).Verify(ctx, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid {
		t.Fatal("chain with deleted event reported valid")
	}
	if res.FirstBrokenSequence != 1 {
		t.Errorf("first broken sequence = %d, want 1", res.FirstBrokenSequence)
	}
	if res.Reason != ReasonLinkMismatch {
		t.Errorf("reason = %s, want %s", res.Reason, ReasonLinkMismatch)
	}
}

func TestVerify_deletedTailEvent(t *testing.T) {
	l := seedLog(t, 3)
	l.events = l.events[:2] // drop sequence 2, the chain tail

	res, err := NewVerifier(l).Verify(ctx, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid {
		t.Fatal("range with deleted tail reported valid")
	}
	if res.FirstBrokenSequence != 2 {
		t.Errorf("first broken sequence = %d, want 2", res.FirstBrokenSequence)
	}
	if res.Reason != ReasonLinkMismatch {
		t.Errorf("reason = %s, want %s", res.Reason, ReasonLinkMismatch)
	}
}

func TestVerify_reorderedEvents(t *testing.T) {
	l := seedLog(t, 4)
	l.events[1], l.events[2] = l.events[2], l.events[1]

	res, err := NewVerifier(l).Verify(ctx, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid {
		t.Fatal("reordered chain reported valid")
	}
	if res.Reason != ReasonLinkMismatch {
		t.Errorf("reason = %s, want %s", res.Reason, ReasonLinkMismatch)
	}
	if res.FirstBrokenSequence != 1 && res.FirstBrokenSequence != 2 {
		t.Errorf("first broken sequence = %d, want 1 or 2", res.FirstBrokenSequence)
	}
}

func TestVerify_subrangeChecksLinkAnchor(t *testing.T) {
	l := seedLog(t, 5)

	// A clean subrange verifies against the stored hash of the event
	// just before the range.
	res, err := NewVerifier(l).Verify(ctx, 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid {
		t.Errorf("clean subrange reported broken at %d", res.FirstBrokenSequence)
	}

	// Rewriting the link of the range's first event is caught.
	l.events[2].PrevHash = l.events[0].Hash
	res, err = NewVerifier(l).Verify(ctx, 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid || res.FirstBrokenSequence != 2 || res.Reason != ReasonLinkMismatch {
		t.Errorf("got (valid=%v, seq=%d, reason=%s), want (false, 2, %s)",
			res.Valid, res.FirstBrokenSequence, res.Reason, ReasonLinkMismatch)
	}
}

func TestVerify_invalidRange(t *testing.T) {
	l := seedLog(t, 2)
	if _, err := NewVerifier(l).Verify(ctx, -1, 1); err == nil {
		t.Error("expected error for negative from")
	}
	if _, err := NewVerifier(l).Verify(ctx, 3, 1); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestVerificationResult_Err(t *testing.T) {
	valid := &VerificationResult{Valid: true}
	if valid.Err() != nil {
		t.Error("valid result should have nil Err")
	}

	bad := &VerificationResult{Valid: false, FirstBrokenSequence: 3, Reason: ReasonHashMismatch}
	err := bad.Err()
	ie, ok := err.(*IntegrityError)
	if !ok {
		t.Fatalf("expected *IntegrityError, got %T", err)
	}
	if ie.Sequence != 3 || ie.Reason != ReasonHashMismatch {
		t.Errorf("unexpected integrity error: %v", ie)
	}
}
