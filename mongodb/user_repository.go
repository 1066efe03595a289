package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pilab-dev/airform/domain"
	"github.com/pilab-dev/airform/internal/crypto"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// userDocument is the stored shape of domain.User. Tokens are sealed with
// the TokenCipher and the refresh token fingerprint backs conditional updates.
type userDocument struct {
	ID                 string     `bson:"_id"`
	ExternalAccountID  string     `bson:"external_account_id"`
	Email              string     `bson:"email"`
	DisplayName        string     `bson:"display_name"`
	AccessToken        string     `bson:"access_token"`
	RefreshToken       string     `bson:"refresh_token"`
	RefreshTokenSHA256 string     `bson:"refresh_token_sha256"`
	TokenExpiresAt     time.Time  `bson:"token_expires_at"`
	CreatedAt          time.Time  `bson:"created_at"`
	UpdatedAt          time.Time  `bson:"updated_at"`
	LastLoginAt        *time.Time `bson:"last_login_at,omitempty"`
}

// UserRepository implements domain.UserRepository
type UserRepository struct {
	users  *mongo.Collection
	cipher *crypto.TokenCipher
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(ctx context.Context, db *mongo.Database, cipher *crypto.TokenCipher) (*UserRepository, error) {
	if cipher == nil {
		return nil, errors.New("token cipher is required")
	}
	repo := &UserRepository{
		users:  db.Collection(UsersCollection),
		cipher: cipher,
	}
	if err := repo.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create user indexes")
	}
	return repo, nil
}

func (r *UserRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "external_account_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := r.users.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes for %s collection: %w", UsersCollection, err)
	}
	log.Info().Msgf("Indexes for %s collection ensured.", UsersCollection)
	return nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDocument
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		log.Error().Err(err).Msg("Error reading user")
		return nil, err
	}
	return r.toDomain(&doc)
}

// UpsertByExternalAccountID creates the user or refreshes the credential of
// the existing one in a single atomic write.
func (r *UserRepository) UpsertByExternalAccountID(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user.ExternalAccountID == "" {
		return nil, errors.New("external account id is required")
	}

	sealed, err := r.sealGrant(user.Grant())
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	set := sealed
	set["updated_at"] = now
	set["last_login_at"] = now

	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"_id":          NewObjectID(),
			"email":        user.Email,
			"display_name": user.DisplayName,
			"created_at":   now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	filter := bson.M{"external_account_id": user.ExternalAccountID}

	var doc userDocument
	err = r.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// Two concurrent first logins raced on the insert; the loser now
		// matches the winner's document.
		err = r.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	}
	if err != nil {
		log.Error().Err(err).Str("externalAccountID", user.ExternalAccountID).Msg("Error upserting user")
		return nil, err
	}

	return r.toDomain(&doc)
}

func (r *UserRepository) UpdateTokens(ctx context.Context, userID string, grant domain.TokenGrant) error {
	set, err := r.sealGrant(grant)
	if err != nil {
		return err
	}
	set["updated_at"] = time.Now().UTC()

	res, err := r.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Error updating user tokens")
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdateTokensIfUnchanged(ctx context.Context, userID, prevRefreshToken string, grant domain.TokenGrant) (bool, error) {
	set, err := r.sealGrant(grant)
	if err != nil {
		return false, err
	}
	set["updated_at"] = time.Now().UTC()

	filter := bson.M{
		"_id":                  userID,
		"refresh_token_sha256": crypto.Fingerprint(prevRefreshToken),
	}
	res, err := r.users.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Error conditionally updating user tokens")
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *UserRepository) sealGrant(g domain.TokenGrant) (bson.M, error) {
	access, err := r.cipher.Seal(g.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := r.cipher.Seal(g.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("seal refresh token: %w", err)
	}
	return bson.M{
		"access_token":         access,
		"refresh_token":        refresh,
		"refresh_token_sha256": crypto.Fingerprint(g.RefreshToken),
		"token_expires_at":     g.ExpiresAt.UTC(),
	}, nil
}

func (r *UserRepository) toDomain(doc *userDocument) (*domain.User, error) {
	access, err := r.cipher.Open(doc.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("open access token of user %s: %w", doc.ID, err)
	}
	refresh, err := r.cipher.Open(doc.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("open refresh token of user %s: %w", doc.ID, err)
	}
	return &domain.User{
		ID:                doc.ID,
		ExternalAccountID: doc.ExternalAccountID,
		Email:             doc.Email,
		DisplayName:       doc.DisplayName,
		AccessToken:       access,
		RefreshToken:      refresh,
		TokenExpiresAt:    doc.TokenExpiresAt,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
		LastLoginAt:       doc.LastLoginAt,
	}, nil
}

var _ domain.UserRepository = (*UserRepository)(nil)
