package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gracechurch/tidings"
)

type MailService struct {
	mock.Mock
}

func (m *MailService) Send(ctx context.Context, e *tidings.Envelope) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MailService) SendWelcomeEmail(ctx context.Context, s *tidings.Subscriber, topics []string) error {
	args := m.Called(ctx, s, topics)
	return args.Error(0)
}
