package formsync

import (
	"errors"
	"fmt"
)

var (
	// ErrOwnerUnauthenticated means the form owner has no usable Airtable
	// credential. Nothing can be synced until they reconnect.
	ErrOwnerUnauthenticated = errors.New("form owner is not connected to airtable")
	// ErrSyncFailed means Airtable did not accept the record. The cause is
	// wrapped for logs but must not be shown to the submitter.
	ErrSyncFailed = errors.New("submission could not be synced")
)

// ValidationError reports a required field without an answer.
type ValidationError struct {
	FieldID   string
	FieldName string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q is required", e.FieldName)
}
