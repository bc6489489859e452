package http

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/gracechurch/tidings"
)

const (
	membershipRemovedMessage = "Removed"
	membershipAbsentMessage  = "Already removed"
)

func (s *Server) listAllHandler(w http.ResponseWriter, r *http.Request) error {
	rows, err := s.SubscriptionService.List(r.Context())
	if err != nil {
		return err
	}

	writeJSONResponse(w, http.StatusOK, rows)
	return nil
}

func (s *Server) removeMembershipHandler(w http.ResponseWriter, r *http.Request) error {
	var req tidings.RemoveMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &tidings.Error{Code: tidings.ErrInvalid, Message: "Invalid request body.", Op: "http.removeMembership", Err: err}
	}
	req.Category = tidings.NormalizeTopic(req.Category)
	if req.SubscriptionID <= 0 || req.Category == "" {
		return tidings.Errorf(tidings.ErrInvalid, "subscriptionId and category are required.")
	}

	ctx := r.Context()
	if err := tidings.RequireAdmin(tidings.AdminFromContext(ctx)); err != nil {
		return err
	}

	removed, err := s.SubscriptionService.RemoveMembershipByID(ctx, req.SubscriptionID, req.Category)
	if err != nil {
		return err
	}

	hlog.FromRequest(r).Info().
		Int("subscriber_id", req.SubscriptionID).
		Str("category", req.Category).
		Bool("removed", removed).
		Msg("admin removed membership")

	message := membershipRemovedMessage
	if !removed {
		message = membershipAbsentMessage
	}
	writeJSONResponse(w, http.StatusOK, &tidings.SubscriptionResponse{Message: message})
	return nil
}
