package airtable

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthExchange means the token endpoint rejected an authorization code.
	ErrAuthExchange = errors.New("airtable: authorization code exchange rejected")
	// ErrAuthRefresh means the token endpoint rejected a refresh token.
	ErrAuthRefresh = errors.New("airtable: token refresh rejected")
	// ErrAuthExpired means the API answered 401 for the access token.
	ErrAuthExpired = errors.New("airtable: access token expired or revoked")
	// ErrExternalValidation means the API rejected the request payload (4xx).
	ErrExternalValidation = errors.New("airtable: request rejected")
	// ErrExternalService means the API failed, throttled or timed out.
	ErrExternalService = errors.New("airtable: service unavailable")
	// ErrMisconfigured is returned by NewHTTPClient for incomplete settings.
	ErrMisconfigured = errors.New("airtable: client is misconfigured")
)

// Error describes a failed Airtable call. It unwraps to one of the sentinel
// errors above, so callers match with errors.Is.
type Error struct {
	Op         string
	StatusCode int
	Type       string
	Message    string

	kind  error
	cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Type != "" {
		msg += ": " + e.Type
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}
