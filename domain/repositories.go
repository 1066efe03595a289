package domain

import (
	"context"
)

// UserRepository persists users and their delegated credentials.
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*User, error)

	// UpsertByExternalAccountID creates the user or, when a user with the same
	// external account id exists, overwrites its tokens and login time.
	// Email and display name are only written on insert.
	UpsertByExternalAccountID(ctx context.Context, user *User) (*User, error)

	// UpdateTokens overwrites the token pair unconditionally.
	UpdateTokens(ctx context.Context, userID string, grant TokenGrant) error

	// UpdateTokensIfUnchanged overwrites the token pair only if the stored
	// refresh token still equals prevRefreshToken. It reports whether the
	// write happened.
	UpdateTokensIfUnchanged(ctx context.Context, userID, prevRefreshToken string, grant TokenGrant) (bool, error)
}

// FormRepository persists form definitions.
type FormRepository interface {
	CreateForm(ctx context.Context, form *Form) error
	GetFormByID(ctx context.Context, id string) (*Form, error)
	ListFormsByOwner(ctx context.Context, ownerID string) ([]*Form, error)
	UpdateForm(ctx context.Context, form *Form) error
}

// SubmissionRepository persists synced form responses.
type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, submission *Submission) error
	ListSubmissionsByForm(ctx context.Context, formID string) ([]*Submission, error)
	MarkExternalRecordDeleted(ctx context.Context, id string) error
}
