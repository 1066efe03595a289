// Package oauthflow runs the Airtable authorization-code flow with PKCE and
// issues the session tokens of the service.
package oauthflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/pilab-dev/airform/domain"
	"github.com/pilab-dev/airform/internal/airtable"
	"github.com/pilab-dev/airform/internal/audit"
	"github.com/pilab-dev/airform/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultAttemptTTL = 10 * time.Minute

// Provider is the part of the Airtable client the flow needs.
type Provider interface {
	AuthCodeURL(state, codeChallenge string) string
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*airtable.TokenSet, error)
	WhoAmI(ctx context.Context, accessToken string) (*airtable.Identity, error)
}

// CredentialWriter persists the credential obtained by a completed attempt.
type CredentialWriter interface {
	UpsertFromExternalIdentity(ctx context.Context, identity *airtable.Identity, tokens *airtable.TokenSet) (*domain.User, error)
}

// Authorization is the outcome of BeginAuthorization.
type Authorization struct {
	URL   string
	State string
}

// Result is the outcome of a completed attempt.
type Result struct {
	SessionToken string
	User         *domain.User
}

type Orchestrator struct {
	provider   Provider
	attempts   AttemptStore
	creds      CredentialWriter
	sessions   *SessionIssuer
	attemptTTL time.Duration
	now        func() time.Time
}

type Option func(*Orchestrator)

func WithAttemptTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) {
		if ttl > 0 {
			o.attemptTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(provider Provider, attempts AttemptStore, creds CredentialWriter, sessions *SessionIssuer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:   provider,
		attempts:   attempts,
		creds:      creds,
		sessions:   sessions,
		attemptTTL: DefaultAttemptTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// BeginAuthorization starts a new attempt with its own state and verifier
// and returns the provider URL the user must visit.
func (o *Orchestrator) BeginAuthorization(ctx context.Context) (*Authorization, error) {
	state, err := NewState()
	if err != nil {
		return nil, err
	}
	verifier := NewVerifier()

	now := o.now()
	attempt := &Attempt{
		State:     state,
		Verifier:  verifier,
		Status:    StatusInitiated,
		CreatedAt: now,
		ExpiresAt: now.Add(o.attemptTTL),
	}
	if err := o.attempts.Put(ctx, attempt); err != nil {
		return nil, fmt.Errorf("store authorization attempt: %w", err)
	}

	attemptLogger(ctx, state).Debug().Str("status", string(StatusInitiated)).Msg("Authorization attempt started")

	return &Authorization{
		URL:   o.provider.AuthCodeURL(state, Challenge(verifier)),
		State: state,
	}, nil
}

// CompleteAuthorization redeems the attempt identified by state, exchanges
// code for tokens, stores the credential and issues a session token.
func (o *Orchestrator) CompleteAuthorization(ctx context.Context, code, state string) (*Result, error) {
	attempt, err := o.take(ctx, state)
	if err != nil {
		return nil, err
	}
	logger := attemptLogger(ctx, state)

	fail := func(err error) (*Result, error) {
		_ = attempt.advance(logger, StatusFailed)
		logger.Warn().Err(err).Str("status", string(StatusFailed)).Msg("Authorization attempt failed")
		metrics.LoginsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		audit.Log(audit.ActionLogin, "", "", "", false, err)
		return nil, err
	}

	if code == "" {
		return fail(fmt.Errorf("%w: missing authorization code", ErrAuthenticationFailed))
	}

	if err := attempt.advance(logger, StatusExchanging); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrAuthenticationFailed, err))
	}

	tokens, err := o.provider.ExchangeCode(ctx, code, attempt.Verifier)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrAuthenticationFailed, err))
	}

	identity, err := o.provider.WhoAmI(ctx, tokens.AccessToken)
	if err != nil {
		return fail(fmt.Errorf("%w: identity lookup: %w", ErrAuthenticationFailed, err))
	}

	user, err := o.creds.UpsertFromExternalIdentity(ctx, identity, tokens)
	if err != nil {
		return fail(fmt.Errorf("persist credential: %w", err))
	}

	session, err := o.sessions.Issue(user.ID)
	if err != nil {
		return fail(err)
	}

	if err := attempt.advance(logger, StatusComplete); err != nil {
		return fail(err)
	}
	logger.Info().Str("status", string(StatusComplete)).Str("user_id", user.ID).Msg("Authorization attempt completed")
	metrics.LoginsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	audit.Log(audit.ActionLogin, user.ID, identity.ID, "", true, nil)

	return &Result{SessionToken: session, User: user}, nil
}

// FailAuthorization burns the attempt after the provider reported an error
// on the callback. It returns ErrStateMismatch for an unknown state and
// ErrAuthenticationFailed otherwise.
func (o *Orchestrator) FailAuthorization(ctx context.Context, state, reason string) error {
	attempt, err := o.take(ctx, state)
	if err != nil {
		return err
	}
	logger := attemptLogger(ctx, state)
	if err := attempt.advance(logger, StatusFailed); err != nil {
		return err
	}
	logger.Warn().Str("status", string(StatusFailed)).Str("reason", reason).Msg("Authorization denied by provider")
	metrics.LoginsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
	return fmt.Errorf("%w: %s", ErrAuthenticationFailed, reason)
}

// ResolveSession returns the local user id of a session token.
func (o *Orchestrator) ResolveSession(token string) (string, error) {
	return o.sessions.Resolve(token)
}

func (o *Orchestrator) take(ctx context.Context, state string) (*Attempt, error) {
	if state == "" {
		return nil, fmt.Errorf("%w: empty state", ErrStateMismatch)
	}
	attempt, err := o.attempts.Take(ctx, state)
	if err != nil {
		if errors.Is(err, ErrAttemptNotFound) {
			attemptLogger(ctx, state).Warn().Msg("Unknown, expired or reused authorization state")
			return nil, ErrStateMismatch
		}
		return nil, fmt.Errorf("load authorization attempt: %w", err)
	}
	if attempt.Expired(o.now()) {
		attemptLogger(ctx, state).Warn().Msg("Authorization attempt expired")
		return nil, ErrStateMismatch
	}
	return attempt, nil
}

// attemptLogger tags log lines with a digest of the state so the raw value
// stays out of the logs.
func attemptLogger(ctx context.Context, state string) *zerolog.Logger {
	sum := sha256.Sum256([]byte(state))
	l := log.Ctx(ctx).With().Str("attempt", hex.EncodeToString(sum[:6])).Logger()
	return &l
}
