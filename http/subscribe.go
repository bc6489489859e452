package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/hlog"

	"github.com/gracechurch/tidings"
)

const (
	subscribedMessage = "Subscribed successfully"
)

func (s *Server) subscribeHandler(w http.ResponseWriter, r *http.Request) error {
	var req tidings.SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &tidings.Error{Code: tidings.ErrInvalid, Message: "Invalid request body.", Op: "http.subscribe", Err: err}
	}
	if strings.TrimSpace(req.Email) == "" {
		return tidings.Errorf(tidings.ErrInvalid, "Email is required.")
	}

	ctx := r.Context()
	logger := hlog.FromRequest(r)
	topics := req.AllTopics()

	id, err := s.SubscriptionService.UpsertSubscriber(ctx, req.Name, req.Email, req.Phone)
	if err != nil {
		return err
	}

	logger.Info().Int("subscriber_id", id).Strs("topics", topics).Msg("Replacing topics")
	if err := s.SubscriptionService.SetTopics(ctx, id, topics); err != nil {
		return err
	}

	if s.Config.Newsletter.Welcome && s.MailService != nil && len(topics) > 0 {
		subscriber := &tidings.Subscriber{ID: id, Name: req.Name, Email: req.Email, Phone: req.Phone}
		if err := s.MailService.SendWelcomeEmail(ctx, subscriber, topics); err != nil {
			logger.Error().Err(err).Msg("failed to send welcome email")
			if hub := sentry.GetHubFromContext(ctx); hub != nil {
				hub.CaptureException(err)
			}
		}
	}

	writeJSONResponse(w, http.StatusOK, &tidings.SubscriptionResponse{
		Message: subscribedMessage,
	})

	return nil
}
