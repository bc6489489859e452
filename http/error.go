package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/hlog"

	"github.com/gracechurch/tidings"
)

type appHandler func(w http.ResponseWriter, r *http.Request) error

var codes = map[string]int{
	tidings.ErrInvalid:      http.StatusBadRequest,
	tidings.ErrUnauthorized: http.StatusUnauthorized,
	tidings.ErrForbidden:    http.StatusForbidden,
	tidings.ErrNotFound:     http.StatusNotFound,
	tidings.ErrConflict:     http.StatusConflict,
	tidings.ErrStorage:      http.StatusInternalServerError,
	tidings.ErrDispatch:     http.StatusInternalServerError,
	tidings.ErrInternal:     http.StatusInternalServerError,
}

// ErrorStatusCode maps an application error code to an HTTP status.
func ErrorStatusCode(code string) int {
	if status, ok := codes[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error parse HTTP error and write to header and body
func (s *Server) Error(fn appHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		var clientError ClientError
		if !errors.As(err, &clientError) {
			clientError = &Error{
				Cause:   err,
				Code:    tidings.ErrorCode(err),
				Message: tidings.ErrorMessage(err),
				Status:  ErrorStatusCode(tidings.ErrorCode(err)),
			}
		}

		status, headers := clientError.Headers()
		logger := hlog.FromRequest(r)
		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).Int("status", status).Msg("request failed")
			if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
				hub.CaptureException(err)
			} else {
				sentry.CaptureException(err)
			}
		} else {
			logger.Warn().Err(err).Int("status", status).Msg("request rejected")
		}

		body, err := clientError.Body()
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}
}

// ClientError is the interface that wraps methods related to error on the client side
type ClientError interface {
	Error() string
	Body() ([]byte, error)
	Headers() (int, map[string]string)
}

// Error is rendered as {"error": code, "message": message}
type Error struct {
	Cause   error  `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Body returns response body from error
func (e *Error) Body() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("Error while parsing response body: %v", err)
	}
	return body, nil
}

// Headers returns status and header
func (e *Error) Headers() (int, map[string]string) {
	return e.Status, map[string]string{
		"Content-Type": "application/json; charset=utf-8",
	}
}

// TextError is rendered as a plain text body. Used on pages reached from mail links.
type TextError struct {
	Cause   error
	Message string
	Status  int
}

func (e *TextError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *TextError) Unwrap() error {
	return e.Cause
}

// Body returns the message as is
func (e *TextError) Body() ([]byte, error) {
	return []byte(e.Message), nil
}

// Headers returns status and header
func (e *TextError) Headers() (int, map[string]string) {
	return e.Status, map[string]string{
		"Content-Type": "text/plain; charset=utf-8",
	}
}

func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	//nolint:errcheck
	json.NewEncoder(w).Encode(response)
}

func writeTextResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	//nolint:errcheck
	w.Write([]byte(message))
}
