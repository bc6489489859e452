package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gracechurch/tidings"
)

type SubscriptionService struct {
	mock.Mock
}

func (m *SubscriptionService) UpsertSubscriber(ctx context.Context, name, email, phone string) (int, error) {
	args := m.Called(ctx, name, email, phone)
	return args.Int(0), args.Error(1)
}

func (m *SubscriptionService) SetTopics(ctx context.Context, subscriberID int, topics []string) error {
	args := m.Called(ctx, subscriberID, topics)
	return args.Error(0)
}

func (m *SubscriptionService) MembersOf(ctx context.Context, topic string) ([]tidings.Member, error) {
	args := m.Called(ctx, topic)
	members, _ := args.Get(0).([]tidings.Member)
	return members, args.Error(1)
}

func (m *SubscriptionService) RemoveMembership(ctx context.Context, email, topic string) (bool, error) {
	args := m.Called(ctx, email, topic)
	return args.Bool(0), args.Error(1)
}

func (m *SubscriptionService) RemoveMembershipByID(ctx context.Context, subscriberID int, topic string) (bool, error) {
	args := m.Called(ctx, subscriberID, topic)
	return args.Bool(0), args.Error(1)
}

func (m *SubscriptionService) FindByEmail(ctx context.Context, email string) (*tidings.Subscriber, error) {
	args := m.Called(ctx, email)
	s, _ := args.Get(0).(*tidings.Subscriber)
	return s, args.Error(1)
}

func (m *SubscriptionService) TopicsOf(ctx context.Context, subscriberID int) ([]string, error) {
	args := m.Called(ctx, subscriberID)
	topics, _ := args.Get(0).([]string)
	return topics, args.Error(1)
}

func (m *SubscriptionService) List(ctx context.Context) ([]tidings.SubscriptionRow, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]tidings.SubscriptionRow)
	return rows, args.Error(1)
}
