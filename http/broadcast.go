package http

import (
	"encoding/json"
	"net/http"

	"github.com/gracechurch/tidings"
)

const (
	broadcastSentMessage = "Broadcast sent successfully"
	noSubscribersMessage = "no subscribers"
)

func (s *Server) sendBroadcastHandler(w http.ResponseWriter, r *http.Request) error {
	var req tidings.BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.broadcasts.WithLabelValues("invalid").Inc()
		return &tidings.Error{Code: tidings.ErrInvalid, Message: "Invalid request body.", Op: "http.sendBroadcast", Err: err}
	}

	ctx := r.Context()
	res, err := s.BroadcastService.Broadcast(ctx, tidings.AdminFromContext(ctx), &req)
	if err != nil {
		s.metrics.broadcasts.WithLabelValues(tidings.ErrorCode(err)).Inc()
		return err
	}

	if res.Recipients == 0 {
		s.metrics.broadcasts.WithLabelValues("empty").Inc()
		writeJSONResponse(w, http.StatusOK, &tidings.BroadcastResponse{Message: noSubscribersMessage})
		return nil
	}

	s.metrics.broadcasts.WithLabelValues("sent").Inc()
	writeJSONResponse(w, http.StatusOK, &tidings.BroadcastResponse{
		Message:    broadcastSentMessage,
		ID:         res.ID,
		Recipients: res.Recipients,
	})

	return nil
}
