// Package email delivers outbound mail. The escrow anchor backend uses it
// to place chain-head hashes in an independently-controlled mailbox, where
// the transport's own Received headers date the message.
package email

import "context"

// Sender delivers a plain-text email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}
