package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pilab-dev/airform/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// FormRepository implements domain.FormRepository
type FormRepository struct {
	forms *mongo.Collection
}

func NewFormRepository(ctx context.Context, db *mongo.Database) (*FormRepository, error) {
	repo := &FormRepository{forms: db.Collection(FormsCollection)}
	if err := repo.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create form indexes")
	}
	return repo, nil
}

func (r *FormRepository) createIndexes(ctx context.Context) error {
	_, err := r.forms.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes for %s collection: %w", FormsCollection, err)
	}
	return nil
}

func (r *FormRepository) CreateForm(ctx context.Context, form *domain.Form) error {
	if form.ID == "" {
		form.ID = NewObjectID()
	}
	now := time.Now().UTC()
	if form.CreatedAt.IsZero() {
		form.CreatedAt = now
	}
	form.UpdatedAt = now
	form.Normalize()

	if _, err := r.forms.InsertOne(ctx, form); err != nil {
		log.Error().Err(err).Str("formID", form.ID).Msg("Error creating form")
		return err
	}
	return nil
}

func (r *FormRepository) GetFormByID(ctx context.Context, id string) (*domain.Form, error) {
	var form domain.Form
	if err := r.forms.FindOne(ctx, bson.M{"_id": id}).Decode(&form); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrFormNotFound
		}
		log.Error().Err(err).Str("formID", id).Msg("Error getting form by ID")
		return nil, err
	}
	return &form, nil
}

// ListFormsByOwner returns the owner's forms, newest first.
func (r *FormRepository) ListFormsByOwner(ctx context.Context, ownerID string) ([]*domain.Form, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.forms.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		log.Error().Err(err).Str("ownerID", ownerID).Msg("Error listing forms")
		return nil, err
	}
	defer cursor.Close(ctx)

	forms := []*domain.Form{}
	if err := cursor.All(ctx, &forms); err != nil {
		return nil, err
	}
	return forms, nil
}

func (r *FormRepository) UpdateForm(ctx context.Context, form *domain.Form) error {
	form.UpdatedAt = time.Now().UTC()
	form.Normalize()

	update := bson.M{"$set": bson.M{
		"name":       form.Name,
		"base_id":    form.BaseID,
		"table_id":   form.TableID,
		"fields":     form.Fields,
		"updated_at": form.UpdatedAt,
	}}
	res, err := r.forms.UpdateOne(ctx, bson.M{"_id": form.ID}, update)
	if err != nil {
		log.Error().Err(err).Str("formID", form.ID).Msg("Error updating form")
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrFormNotFound
	}
	return nil
}

var _ domain.FormRepository = (*FormRepository)(nil)
