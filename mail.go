package tidings

import "context"

// MailService is the interface that wraps methods related to SMTP
type MailService interface {
	// Send hands one envelope to the transport.
	Send(ctx context.Context, e *Envelope) error
	// SendWelcomeEmail confirms a subscription and carries personal
	// unsubscribe links for each topic.
	SendWelcomeEmail(ctx context.Context, s *Subscriber, topics []string) error
}
