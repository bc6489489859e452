package tidings

import (
	"net/url"
	"strings"
)

// Paths of the unsubscribe endpoints embedded in outgoing mail.
const (
	UnsubscribePath     = "/api/unsubscribe"
	UnsubscribeFormPath = "/api/unsubscribe/form"
)

// UnsubscribeURL builds a personal unsubscribe link. hash is omitted when empty.
func UnsubscribeURL(baseURL, topic, email, hash string) string {
	q := url.Values{}
	q.Set("category", topic)
	q.Set("email", email)
	if hash != "" {
		q.Set("hash", hash)
	}
	return strings.TrimRight(baseURL, "/") + UnsubscribePath + "?" + q.Encode()
}

// UnsubscribeFormURL builds the generic per-topic link used in bulk mail,
// where the recipient types their own email.
func UnsubscribeFormURL(baseURL, topic string) string {
	q := url.Values{}
	q.Set("category", topic)
	return strings.TrimRight(baseURL, "/") + UnsubscribeFormPath + "?" + q.Encode()
}
