// Package delivery abstracts the outbound email channel used for magic links
// and confirmations. The token service only sees the Channel contract; when
// no channel is configured it returns links directly instead of sending.
package delivery

import "context"

// Channel sends one message to one recipient.
type Channel interface {
	Send(ctx context.Context, to, subject, body string) error
}
