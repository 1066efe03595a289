package errors

import "fmt"

// APIError is the JSON error body returned by every endpoint.
type APIError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Field       string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Error codes
const (
	InvalidRequest       = "invalid_request"
	ValidationFailed     = "validation_failed"
	InvalidState         = "invalid_state"
	Unauthorized         = "unauthorized"
	InvalidSession       = "invalid_session"
	SessionExpired       = "session_expired"
	Forbidden            = "forbidden"
	NotFound             = "not_found"
	OwnerUnauthenticated = "owner_unauthenticated"
	SyncFailed           = "sync_failed"
	UpstreamError        = "upstream_error"
	ServerError          = "server_error"
)

func NewInvalidRequest(description string) *APIError {
	return &APIError{Code: InvalidRequest, Description: description}
}

// NewValidationFailed reports a missing answer for a required field.
func NewValidationFailed(fieldID, fieldName string) *APIError {
	return &APIError{
		Code:        ValidationFailed,
		Description: fmt.Sprintf("Field %q is required", fieldName),
		Field:       fieldID,
	}
}

func NewInvalidState() *APIError {
	return &APIError{Code: InvalidState, Description: "Unknown, expired or already used state"}
}

func NewUnauthorized(description string) *APIError {
	return &APIError{Code: Unauthorized, Description: description}
}

func NewInvalidSession() *APIError {
	return &APIError{Code: InvalidSession, Description: "The session token is invalid"}
}

func NewSessionExpired() *APIError {
	return &APIError{Code: SessionExpired, Description: "The session has expired, please sign in again"}
}

func NewForbidden(description string) *APIError {
	return &APIError{Code: Forbidden, Description: description}
}

func NewNotFound(description string) *APIError {
	return &APIError{Code: NotFound, Description: description}
}

func NewOwnerUnauthenticated() *APIError {
	return &APIError{
		Code:        OwnerUnauthenticated,
		Description: "This form is temporarily unavailable because its owner must reconnect Airtable",
	}
}

// NewSyncFailed never carries provider details; form fillers are anonymous.
func NewSyncFailed() *APIError {
	return &APIError{Code: SyncFailed, Description: "Your response could not be saved, please try again later"}
}

func NewUpstreamError() *APIError {
	return &APIError{Code: UpstreamError, Description: "Airtable request failed"}
}

func NewServerError(description string) *APIError {
	return &APIError{Code: ServerError, Description: description}
}
