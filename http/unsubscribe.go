package http

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/gracechurch/tidings"
	"github.com/gracechurch/tidings/pkg/hash"
)

const (
	invalidLinkMessage         = "Invalid unsubscribe link"
	invalidUnsubscribeMessage  = "Either email or hash is invalid."
	unsubscribedMessage        = "You have unsubscribed from %s"
	alreadyUnsubscribedMessage = "Already unsubscribed"
	unsubscribeFailedMessage   = "Unsubscribe failed"
)

// unsubscribeHandler removes a single topic membership. It is reached from
// mail links, so every outcome is a plain text page.
func (s *Server) unsubscribeHandler(w http.ResponseWriter, r *http.Request) error {
	query := r.URL.Query()
	email := query.Get("email")
	category := tidings.NormalizeTopic(query.Get("category"))
	if email == "" || category == "" {
		return &TextError{Message: invalidLinkMessage, Status: http.StatusBadRequest}
	}

	// A hash only guards links that carry one. Plain email and category are
	// accepted too, so this is not an authentication check.
	if hashValue := query.Get("hash"); hashValue != "" {
		ok, err := hash.VerifyUnsubscribe(email, category, hashValue, s.Config.Newsletter.HMAC.Secret)
		if err != nil || !ok {
			return &TextError{Cause: err, Message: invalidUnsubscribeMessage, Status: http.StatusBadRequest}
		}
	}

	removed, err := s.SubscriptionService.RemoveMembership(r.Context(), email, category)
	if err != nil {
		return &TextError{Cause: err, Message: unsubscribeFailedMessage, Status: http.StatusInternalServerError}
	}

	switch tidings.UnsubscribeStatusOf(removed) {
	case tidings.StatusRemoved:
		writeTextResponse(w, http.StatusOK, fmt.Sprintf(unsubscribedMessage, category))
	default:
		writeTextResponse(w, http.StatusOK, alreadyUnsubscribedMessage)
	}

	return nil
}

var unsubscribeForm = template.Must(template.New("unsubscribe").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Unsubscribe</title></head>
<body>
<form method="get" action="{{.Action}}">
  <p>Enter your email to stop receiving <strong>{{.Category}}</strong> messages.</p>
  <input type="hidden" name="category" value="{{.Category}}">
  <input type="email" name="email" required placeholder="you@example.com">
  <button type="submit">Unsubscribe</button>
</form>
</body>
</html>
`))

// unsubscribeFormHandler serves the page behind the generic link of bulk mail,
// where the recipient types their own email.
func (s *Server) unsubscribeFormHandler(w http.ResponseWriter, r *http.Request) error {
	category := tidings.NormalizeTopic(r.URL.Query().Get("category"))
	if category == "" {
		return &TextError{Message: invalidLinkMessage, Status: http.StatusBadRequest}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	return unsubscribeForm.Execute(w, struct {
		Action   string
		Category string
	}{
		Action:   tidings.UnsubscribePath,
		Category: category,
	})
}
