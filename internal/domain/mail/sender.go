package mail

import (
	"context"
	"errors"

	"notification_mailer/internal/domain/notification"
)

var ErrNoRecipient = errors.New("message has no recipient")

// Message is a fully rendered email ready for delivery.
type Message struct {
	To       string
	Cc       []string
	Subject  string
	HTMLBody string
}

// Sender defines an interface for delivering email.
// Implementations must report any ambiguous transport result as an error.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	// Verify dials and authenticates against the transport without sending.
	Verify(ctx context.Context) error
}

// Content is the subject and HTML body built for one record.
type Content struct {
	Subject  string
	HTMLBody string
}

// Renderer builds message content from a record. Implementations must be pure.
type Renderer interface {
	Render(rec *notification.Record) (Content, error)
}
