package anchor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/veridianhq/veridian-ledger/internal/email"
)

// EmailBackend anchors hashes by mailing them to a fixed escrow mailbox
// controlled outside the primary system. The receiving server's own
// Received and Date headers independently date the hash.
type EmailBackend struct {
	sender email.Sender
	to     string
}

// NewEmailBackend creates an EmailBackend delivering to the given escrow
// address.
func NewEmailBackend(sender email.Sender, to string) *EmailBackend {
	return &EmailBackend{sender: sender, to: to}
}

// Method implements Backend.
func (b *EmailBackend) Method() Method { return MethodEmail }

// Publish implements Backend. The anchor id is embedded in the subject so
// a specific anchor can be located in the escrow mailbox later.
func (b *EmailBackend) Publish(ctx context.Context, hash string, sequence int64) (*Record, error) {
	id := uuid.New()
	now := time.Now().UTC()

	subject := fmt.Sprintf("ledger anchor %s (sequence %d)", id, sequence)
	body := fmt.Sprintf(
		"Audit ledger chain head anchor.\n\nanchor_id: %s\nsequence: %d\nhash: %s\nanchored_at: %s\n\n"+
			"Retain this message. Its transport headers date the hash above.\n",
		id, sequence, hash, now.Format(time.RFC3339),
	)

	if err := b.sender.Send(ctx, b.to, subject, body); err != nil {
		return nil, &BackendError{Method: MethodEmail, Err: err}
	}

	return &Record{
		AnchorID:          id,
		Timestamp:         now,
		Method:            MethodEmail,
		ExternalReference: fmt.Sprintf("mailto:%s?anchor=%s", b.to, id),
		AnchoredHash:      hash,
		AnchoredSequence:  sequence,
	}, nil
}
