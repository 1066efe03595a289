package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/pilab-dev/airform/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// SubmissionRepository implements domain.SubmissionRepository
type SubmissionRepository struct {
	submissions *mongo.Collection
}

func NewSubmissionRepository(ctx context.Context, db *mongo.Database) (*SubmissionRepository, error) {
	repo := &SubmissionRepository{submissions: db.Collection(SubmissionsCollection)}
	if err := repo.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create submission indexes")
	}
	return repo, nil
}

func (r *SubmissionRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "form_id", Value: 1}, {Key: "submitted_at", Value: -1}}},
		{
			Keys:    bson.D{{Key: "external_record_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}
	if _, err := r.submissions.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes for %s collection: %w", SubmissionsCollection, err)
	}
	return nil
}

func (r *SubmissionRepository) CreateSubmission(ctx context.Context, submission *domain.Submission) error {
	if submission.ID == "" {
		submission.ID = NewObjectID()
	}
	now := time.Now().UTC()
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = now
	}
	submission.CreatedAt = now

	if _, err := r.submissions.InsertOne(ctx, submission); err != nil {
		log.Error().Err(err).Str("formID", submission.FormID).Msg("Error creating submission")
		return err
	}
	return nil
}

// ListSubmissionsByForm returns the form's submissions, newest first.
func (r *SubmissionRepository) ListSubmissionsByForm(ctx context.Context, formID string) ([]*domain.Submission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: -1}})
	cursor, err := r.submissions.Find(ctx, bson.M{"form_id": formID}, opts)
	if err != nil {
		log.Error().Err(err).Str("formID", formID).Msg("Error listing submissions")
		return nil, err
	}
	defer cursor.Close(ctx)

	submissions := []*domain.Submission{}
	if err := cursor.All(ctx, &submissions); err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *SubmissionRepository) MarkExternalRecordDeleted(ctx context.Context, id string) error {
	res, err := r.submissions.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"external_record_deleted": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrSubmissionNotFound
	}
	return nil
}

var _ domain.SubmissionRepository = (*SubmissionRepository)(nil)
