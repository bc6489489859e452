package tidings

import (
	"context"
	"strings"
)

// BroadcastService fans a message out to every member of a topic.
type BroadcastService interface {
	Broadcast(ctx context.Context, admin *Admin, req *BroadcastRequest) (*BroadcastResult, error)
}

// BroadcastRequest is a message authored for all members of a topic
type BroadcastRequest struct {
	Topic   string `json:"topic"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Validate normalizes the topic and checks that every field of the request is present.
func (r *BroadcastRequest) Validate() error {
	if r == nil {
		return Errorf(ErrInvalid, "Broadcast request is required.")
	}
	r.Topic = NormalizeTopic(r.Topic)

	switch {
	case r.Topic == "":
		return Errorf(ErrInvalid, "Topic is required.")
	case strings.TrimSpace(r.Subject) == "":
		return Errorf(ErrInvalid, "Subject is required.")
	case strings.TrimSpace(r.Message) == "":
		return Errorf(ErrInvalid, "Message is required.")
	}
	return nil
}

// BroadcastResult reports how many recipients a broadcast was handed to.
// ID is empty when nothing was sent.
type BroadcastResult struct {
	ID         string `json:"id,omitempty"`
	Recipients int    `json:"recipients"`
}

type BroadcastResponse struct {
	Message    string `json:"message"`
	ID         string `json:"id,omitempty"`
	Recipients int    `json:"recipients"`
}

// Envelope is a fully formed message handed to the mail transport.
// Bcc recipients are never disclosed to To or to each other.
type Envelope struct {
	ID             string
	From           string
	To             string
	Bcc            []string
	Subject        string
	Body           string
	Topic          string
	UnsubscribeURL string
}

// Recipients returns To followed by Bcc.
func (e *Envelope) Recipients() []string {
	out := make([]string, 0, len(e.Bcc)+1)
	if e.To != "" {
		out = append(out, e.To)
	}
	return append(out, e.Bcc...)
}

// NewEnvelope splits members into the primary recipient and the blind
// copy list. It returns nil when there are no members.
func NewEnvelope(id, from string, members []Member, req *BroadcastRequest) *Envelope {
	if len(members) == 0 {
		return nil
	}

	bcc := make([]string, 0, len(members)-1)
	for _, m := range members[1:] {
		bcc = append(bcc, m.Email)
	}

	return &Envelope{
		ID:      id,
		From:    from,
		To:      members[0].Email,
		Bcc:     bcc,
		Subject: req.Subject,
		Body:    req.Message,
		Topic:   req.Topic,
	}
}
