// Package broadcast fans messages out to the members of a topic.
package broadcast

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	uuid "github.com/satori/go.uuid"

	"github.com/gracechurch/tidings"
)

// Service resolves the members of a topic and hands one envelope to the mail transport.
type Service struct {
	SubscriptionService tidings.SubscriptionService
	MailService         tidings.MailService

	// From is the sender address. BaseURL prefixes the unsubscribe link.
	From    string
	BaseURL string

	Logger zerolog.Logger

	// Delivered is called after each successful send. Optional.
	Delivered func(topic string, recipients int)
}

// NewService returns a broadcast service
func NewService(ss tidings.SubscriptionService, ms tidings.MailService, from, baseURL string) *Service {
	return &Service{
		SubscriptionService: ss,
		MailService:         ms,
		From:                from,
		BaseURL:             baseURL,
		Logger:              log.Logger.With().Str("component", "broadcast").Logger(),
	}
}

// Broadcast sends req on behalf of an authenticated admin.
func (s *Service) Broadcast(ctx context.Context, admin *tidings.Admin, req *tidings.BroadcastRequest) (*tidings.BroadcastResult, error) {
	if err := tidings.RequireAdmin(admin); err != nil {
		return nil, err
	}
	return s.Deliver(ctx, req)
}

// Deliver sends req to every current member of its topic in a single envelope.
// An empty topic is not an error: nothing is sent and Recipients is 0.
func (s *Service) Deliver(ctx context.Context, req *tidings.BroadcastRequest) (*tidings.BroadcastResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	members, err := s.SubscriptionService.MembersOf(ctx, req.Topic)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		s.Logger.Info().Str("topic", req.Topic).Msg("no subscribers, nothing sent")
		return &tidings.BroadcastResult{}, nil
	}

	e := tidings.NewEnvelope(uuid.NewV4().String(), s.From, members, req)
	e.UnsubscribeURL = tidings.UnsubscribeFormURL(s.BaseURL, req.Topic)

	logger := s.Logger.With().Str("broadcast_id", e.ID).Str("topic", req.Topic).Logger()
	logger.Info().Int("recipients", len(members)).Msg("sending broadcast")

	if err := s.MailService.Send(ctx, e); err != nil {
		logger.Error().Err(err).Msg("failed to send broadcast")
		return nil, &tidings.Error{
			Code:    tidings.ErrDispatch,
			Message: "Failed to send broadcast.",
			Op:      "broadcast.Deliver",
			Err:     err,
		}
	}

	if s.Delivered != nil {
		s.Delivered(req.Topic, len(members))
	}

	return &tidings.BroadcastResult{
		ID:         e.ID,
		Recipients: len(members),
	}, nil
}

// Listen consumes JSON encoded broadcast requests from a queue until ctx is
// done or the queue closes. Messages that cannot be decoded or delivered are
// logged and skipped.
func (s *Service) Listen(ctx context.Context, qs tidings.QueueService, queue string) error {
	messages, err := qs.Consume(ctx, queue)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			var req tidings.BroadcastRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				s.Logger.Error().Err(err).Str("queue", queue).Msg("failed to decode broadcast request")
				continue
			}

			res, err := s.Deliver(ctx, &req)
			if err != nil {
				s.Logger.Error().Err(err).Str("queue", queue).Str("topic", req.Topic).Msg("failed to deliver broadcast")
				continue
			}
			s.Logger.Info().Str("queue", queue).Str("topic", req.Topic).Int("recipients", res.Recipients).Msg("broadcast from queue delivered")
		}
	}
}
