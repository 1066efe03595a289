package mongodb

import (
	"context"
	"fmt"

	"github.com/pilab-dev/airform/domain"
	"github.com/pilab-dev/airform/internal/crypto"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Repositories bundles the Mongo-backed repositories of the service.
type Repositories struct {
	Users       domain.UserRepository
	Forms       domain.FormRepository
	Submissions domain.SubmissionRepository
}

// NewRepositories builds every repository on db and ensures their indexes.
func NewRepositories(ctx context.Context, db *mongo.Database, cipher *crypto.TokenCipher) (*Repositories, error) {
	users, err := NewUserRepository(ctx, db, cipher)
	if err != nil {
		return nil, fmt.Errorf("user repository: %w", err)
	}
	forms, err := NewFormRepository(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("form repository: %w", err)
	}
	submissions, err := NewSubmissionRepository(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("submission repository: %w", err)
	}

	return &Repositories{
		Users:       users,
		Forms:       forms,
		Submissions: submissions,
	}, nil
}
