package domain

import "time"

// Submission is the local record of a form response that was written to
// Airtable.
type Submission struct {
	ID                    string         `bson:"_id,omitempty" json:"id"`
	FormID                string         `bson:"form_id" json:"formId"`
	ExternalRecordID      string         `bson:"external_record_id,omitempty" json:"externalRecordId"`
	Answers               map[string]any `bson:"answers" json:"answers"`
	SubmittedAt           time.Time      `bson:"submitted_at" json:"submittedAt"`
	ExternalRecordDeleted bool           `bson:"external_record_deleted" json:"externalRecordDeleted"`
	CreatedAt             time.Time      `bson:"created_at" json:"createdAt"`
}
