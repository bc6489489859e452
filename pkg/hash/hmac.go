package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"github.com/pkg/errors"
)

// ComputeHmac256 computes HMAC-SHA256
func ComputeHmac256(message, secret string) (string, error) {
	key := []byte(secret)
	h := hmac.New(sha256.New, key)
	_, err := h.Write([]byte(message))
	if err != nil {
		return "", errors.Wrap(err, "hmac.Write")
	}

	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// SignUnsubscribe signs an email and category pair for an unsubscribe link.
func SignUnsubscribe(email, category, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("hmac secret is not configured")
	}
	return ComputeHmac256(email+"\n"+category, secret)
}

// VerifyUnsubscribe reports whether hashValue signs email and category.
func VerifyUnsubscribe(email, category, hashValue, secret string) (bool, error) {
	expected, err := SignUnsubscribe(email, category, secret)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(hashValue)), nil
}
