package oauthflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// AttemptStatus is the lifecycle of one authorization attempt. Stores only
// ever hold initiated attempts: Take removes the attempt, and later states
// live on the taken copy and in the log.
type AttemptStatus string

const (
	StatusInitiated  AttemptStatus = "initiated"
	StatusExchanging AttemptStatus = "exchanging"
	StatusComplete   AttemptStatus = "complete"
	StatusFailed     AttemptStatus = "failed"
)

// Attempt is a pending authorization keyed by its state parameter. The
// verifier never leaves the server.
type Attempt struct {
	State     string        `json:"state"`
	Verifier  string        `json:"verifier"`
	Status    AttemptStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

var attemptTransitions = map[AttemptStatus][]AttemptStatus{
	StatusInitiated:  {StatusExchanging, StatusFailed},
	StatusExchanging: {StatusComplete, StatusFailed},
}

// advance moves the attempt to next and logs the change. Complete and
// failed are terminal.
func (a *Attempt) advance(logger *zerolog.Logger, next AttemptStatus) error {
	for _, allowed := range attemptTransitions[a.Status] {
		if allowed == next {
			logger.Debug().Str("from", string(a.Status)).Str("status", string(next)).Msg("Authorization attempt transition")
			a.Status = next
			return nil
		}
	}
	return fmt.Errorf("invalid attempt transition %s -> %s", a.Status, next)
}

// Expired reports whether the attempt is past its deadline at now.
func (a *Attempt) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// AttemptStore holds pending attempts until their callback arrives.
type AttemptStore interface {
	// Put stores the attempt until its ExpiresAt.
	Put(ctx context.Context, attempt *Attempt) error
	// Take atomically returns and removes the attempt, so a state can be
	// redeemed at most once. Unknown or expired states yield
	// ErrAttemptNotFound.
	Take(ctx context.Context, state string) (*Attempt, error)
}
