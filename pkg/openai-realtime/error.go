package openairealtime

import (
	"fmt"
	"net/http"
)

// Error codes the client inspects.
const (
	CodeInvalidAPIKey     = "invalid_api_key"
	CodeRateLimitExceeded = "rate_limit_exceeded"
	CodeInsufficientQuota = "insufficient_quota"
	CodeSessionExpired    = "session_expired"
)

// Error represents an API error from OpenAI Realtime.
type Error struct {
	// Type is the error type (e.g., "invalid_request_error").
	Type string `json:"type,omitzero"`

	// Code is the error code (e.g., "invalid_value").
	Code string `json:"code,omitzero"`

	// Message is the human-readable error message.
	Message string `json:"message,omitzero"`

	// Param is the parameter that caused the error, if applicable.
	Param string `json:"param,omitzero"`

	// EventID is the ID of the client event that caused the error.
	EventID string `json:"event_id,omitzero"`

	// HTTPStatus is set for handshake failures.
	HTTPStatus int `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("openai-realtime: %s: %s", e.Code, e.Message)
	case e.Type != "":
		return fmt.Sprintf("openai-realtime: %s: %s", e.Type, e.Message)
	}
	return "openai-realtime: " + e.Message
}

// Unauthorized reports whether the credentials were rejected.
func (e *Error) Unauthorized() bool {
	return e.Code == CodeInvalidAPIKey ||
		e.HTTPStatus == http.StatusUnauthorized ||
		e.HTTPStatus == http.StatusForbidden
}

// Exhausted reports a rate limit or quota failure.
func (e *Error) Exhausted() bool {
	return e.Code == CodeRateLimitExceeded ||
		e.Code == CodeInsufficientQuota ||
		e.HTTPStatus == http.StatusTooManyRequests
}

// Fatal reports whether the error ends the session. Errors in reply to a
// single malformed client event do not.
func (e *Error) Fatal() bool {
	return e.Unauthorized() || e.Exhausted() || e.Code == CodeSessionExpired || e.HTTPStatus != 0
}
