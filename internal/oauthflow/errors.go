package oauthflow

import "errors"

var (
	// ErrStateMismatch means the callback state is unknown, expired or was
	// already used.
	ErrStateMismatch = errors.New("oauth state mismatch")
	// ErrAuthenticationFailed covers provider denials, rejected codes and
	// identity lookups that did not succeed.
	ErrAuthenticationFailed = errors.New("airtable authentication failed")
	ErrInvalidSession       = errors.New("invalid session token")
	ErrExpiredSession       = errors.New("session token expired")
	// ErrAttemptNotFound is returned by an AttemptStore for unknown or
	// expired states.
	ErrAttemptNotFound = errors.New("authorization attempt not found")
)
