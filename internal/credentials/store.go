// Package credentials owns the lifecycle of the Airtable token pair stored
// with each user: lookup, upsert on login, expiry checks and refresh.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pilab-dev/airform/domain"
	"github.com/pilab-dev/airform/internal/airtable"
	"github.com/pilab-dev/airform/internal/audit"
	"github.com/pilab-dev/airform/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultSkew is how long before the recorded expiry a token is already
// treated as expired.
const DefaultSkew = 60 * time.Second

var (
	ErrNotFound = errors.New("credential not found")
	// ErrReauthorizationRequired means the stored refresh token is gone or
	// was rejected; the owner has to connect Airtable again.
	ErrReauthorizationRequired = errors.New("airtable reauthorization required")
)

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*airtable.TokenSet, error)
}

// Store reads and writes user credentials. Refreshes for the same user are
// serialized within the process and guarded by a conditional write across
// processes.
type Store struct {
	users     domain.UserRepository
	refresher Refresher
	skew      time.Duration
	now       func() time.Time

	group singleflight.Group
}

type Option func(*Store)

// WithSkew overrides DefaultSkew.
func WithSkew(skew time.Duration) Option {
	return func(s *Store) {
		if skew >= 0 {
			s.skew = skew
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(users domain.UserRepository, refresher Refresher, opts ...Option) *Store {
	s := &Store{
		users:     users,
		refresher: refresher,
		skew:      DefaultSkew,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsExpired reports whether now+skew is at or past the expiry of the token.
func IsExpired(user *domain.User, now time.Time, skew time.Duration) bool {
	return !now.Add(skew).Before(user.TokenExpiresAt)
}

// IsExpired applies the store's clock and skew.
func (s *Store) IsExpired(user *domain.User) bool {
	return IsExpired(user, s.now(), s.skew)
}

func (s *Store) Get(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("load credential: %w", err)
	}
	return user, nil
}

// UpsertFromExternalIdentity stores the tokens of a freshly authorized
// Airtable account, creating the local user on first login.
func (s *Store) UpsertFromExternalIdentity(ctx context.Context, identity *airtable.Identity, tokens *airtable.TokenSet) (*domain.User, error) {
	if identity == nil || identity.ID == "" {
		return nil, errors.New("external identity has no account id")
	}
	if tokens == nil || tokens.AccessToken == "" {
		return nil, errors.New("token set has no access token")
	}

	user, err := s.users.UpsertByExternalAccountID(ctx, &domain.User{
		ExternalAccountID: identity.ID,
		Email:             identity.Email,
		DisplayName:       displayName(identity),
		AccessToken:       tokens.AccessToken,
		RefreshToken:      tokens.RefreshToken,
		TokenExpiresAt:    tokens.ExpiresAt(s.now()),
	})
	if err != nil {
		return nil, fmt.Errorf("upsert credential: %w", err)
	}
	return user, nil
}

// Save overwrites the stored token pair with the one on user.
func (s *Store) Save(ctx context.Context, user *domain.User) error {
	if err := s.users.UpdateTokens(ctx, user.ID, user.Grant()); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, user.ID)
		}
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Refresh returns a user whose access token is newer than stale.
//
// Without force, a stored token that is not expired is returned as is. With
// force, the token is refreshed unless the stored access token already
// differs from stale. Concurrent calls for one user share a single call to
// the token endpoint.
func (s *Store) Refresh(ctx context.Context, userID, stale string, force bool) (*domain.User, error) {
	user, err := s.await(ctx, userID, userID, stale, force)
	if err != nil || !force || user.AccessToken != stale {
		return user, err
	}

	// Joined a flight that did not force a refresh and still holds the
	// rejected token. Forced flights get their own key.
	return s.await(ctx, userID+"|forced", userID, stale, true)
}

func (s *Store) await(ctx context.Context, key, userID, stale string, force bool) (*domain.User, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		// Detached so that one caller giving up does not fail the others.
		return s.refresh(context.WithoutCancel(ctx), userID, stale, force)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		user := *res.Val.(*domain.User)
		return &user, nil
	}
}

func (s *Store) refresh(ctx context.Context, userID, stale string, force bool) (*domain.User, error) {
	logger := log.Ctx(ctx).With().Str("user_id", userID).Logger()

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.RefreshToken == "" {
		return nil, ErrReauthorizationRequired
	}
	if !s.IsExpired(user) && (!force || user.AccessToken != stale) {
		logger.Debug().Msg("Credential already fresh, skipping refresh")
		return user, nil
	}

	tokens, err := s.refresher.RefreshToken(ctx, user.RefreshToken)
	if err != nil {
		if errors.Is(err, airtable.ErrAuthRefresh) {
			metrics.TokenRefreshesTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
			s.revoke(ctx, user)
			return nil, fmt.Errorf("%w: %w", ErrReauthorizationRequired, err)
		}
		metrics.TokenRefreshesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		logger.Warn().Err(err).Msg("Token refresh failed")
		return nil, fmt.Errorf("refresh credential: %w", err)
	}

	grant := domain.TokenGrant{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt(s.now()),
	}
	if grant.RefreshToken == "" {
		grant.RefreshToken = user.RefreshToken
	}

	written, err := s.users.UpdateTokensIfUnchanged(ctx, user.ID, user.RefreshToken, grant)
	if err != nil {
		return nil, fmt.Errorf("store refreshed credential: %w", err)
	}
	if !written {
		// Another process refreshed first; its pair is the current one.
		logger.Info().Msg("Lost token refresh race, using stored credential")
		winner, err := s.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !winner.HasCredentials() {
			return nil, ErrReauthorizationRequired
		}
		return winner, nil
	}

	metrics.TokenRefreshesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	audit.Log(audit.ActionTokenRefresh, user.ID, user.ExternalAccountID, "", true, nil)
	logger.Info().Time("expires_at", grant.ExpiresAt).Msg("Airtable credential refreshed")

	user.ApplyGrant(grant)
	return user, nil
}

// revoke clears the rejected token pair so later calls fail fast instead of
// hammering the token endpoint.
func (s *Store) revoke(ctx context.Context, user *domain.User) {
	cleared, err := s.users.UpdateTokensIfUnchanged(ctx, user.ID, user.RefreshToken, domain.TokenGrant{})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("user_id", user.ID).Msg("Failed to clear rejected credential")
		return
	}
	if cleared {
		audit.Log(audit.ActionCredentialLost, user.ID, user.ExternalAccountID, "refresh token rejected", false, nil)
		log.Ctx(ctx).Warn().Str("user_id", user.ID).Msg("Refresh token rejected, owner must reauthorize")
	}
}

func displayName(identity *airtable.Identity) string {
	if local, _, ok := strings.Cut(identity.Email, "@"); ok && local != "" {
		return local
	}
	if identity.Email != "" {
		return identity.Email
	}
	return identity.ID
}
