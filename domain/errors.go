package domain

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrFormNotFound       = errors.New("form not found")
	ErrSubmissionNotFound = errors.New("submission not found")
)
