package api

import (
	"time"

	"github.com/pilab-dev/airform/domain"
	"github.com/pilab-dev/airform/internal/airtable"
)

// AuthURLResponse is returned by GET /auth/airtable.
type AuthURLResponse struct {
	URL string `json:"url"`
}

// UserResponse is the profile of the signed-in user. It never carries
// Airtable tokens.
type UserResponse struct {
	ID                string     `json:"id"`
	ExternalAccountID string     `json:"externalAccountId"`
	Email             string     `json:"email"`
	DisplayName       string     `json:"displayName"`
	Connected         bool       `json:"connected"`
	CreatedAt         time.Time  `json:"createdAt"`
	LastLoginAt       *time.Time `json:"lastLoginAt,omitempty"`
}

func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:                u.ID,
		ExternalAccountID: u.ExternalAccountID,
		Email:             u.Email,
		DisplayName:       u.DisplayName,
		Connected:         u.HasCredentials(),
		CreatedAt:         u.CreatedAt,
		LastLoginAt:       u.LastLoginAt,
	}
}

// BasesResponse wraps the schema discovery listing of bases.
type BasesResponse struct {
	Bases []airtable.Base `json:"bases"`
}

// TablesResponse wraps the schema discovery listing of tables.
type TablesResponse struct {
	Tables []airtable.Table `json:"tables"`
}

// FormRequest is the body of form create and update.
type FormRequest struct {
	Name    string                `json:"name" binding:"required"`
	BaseID  string                `json:"baseId" binding:"required"`
	TableID string                `json:"tableId" binding:"required"`
	Fields  []domain.FieldBinding `json:"fields"`
}

func (r *FormRequest) ApplyTo(f *domain.Form) {
	f.Name = r.Name
	f.BaseID = r.BaseID
	f.TableID = r.TableID
	f.Fields = r.Fields
	if f.Fields == nil {
		f.Fields = []domain.FieldBinding{}
	}
}

// SubmitRequest is the body of a public form submission.
type SubmitRequest struct {
	Answers map[string]any `json:"answers"`
}

// SubmissionResponse is a stored submission.
type SubmissionResponse struct {
	ID               string         `json:"id"`
	FormID           string         `json:"formId"`
	ExternalRecordID string         `json:"externalRecordId"`
	Answers          map[string]any `json:"answers"`
	SubmittedAt      time.Time      `json:"submittedAt"`
	RecordDeleted    bool           `json:"externalRecordDeleted"`
}

func NewSubmissionResponse(s *domain.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:               s.ID,
		FormID:           s.FormID,
		ExternalRecordID: s.ExternalRecordID,
		Answers:          s.Answers,
		SubmittedAt:      s.SubmittedAt,
		RecordDeleted:    s.ExternalRecordDeleted,
	}
}
