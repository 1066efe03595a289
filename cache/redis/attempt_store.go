package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pilab-dev/airform/cache"
	"github.com/pilab-dev/airform/internal/oauthflow"
	"github.com/redis/go-redis/v9"
)

// AttemptStore implements oauthflow.AttemptStore on Redis so that any
// instance can complete an attempt started by another.
type AttemptStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewAttemptStore creates a new [AttemptStore] instance.
func NewAttemptStore(client redis.UniversalClient, prefix string) *AttemptStore {
	if prefix == "" {
		prefix = "airform"
	}
	return &AttemptStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *AttemptStore) redisKey(state string) string {
	return fmt.Sprintf("%s:oauth_attempt:%s", s.prefix, cache.HashKey(state))
}

// Put stores the attempt with an expiry matching its deadline.
func (s *AttemptStore) Put(ctx context.Context, attempt *oauthflow.Attempt) error {
	ttl := attempt.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt: %w", err)
	}
	if err := s.client.Set(ctx, s.redisKey(attempt.State), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store attempt in Redis: %w", err)
	}
	return nil
}

// Take fetches and deletes the attempt in one GETDEL round trip.
func (s *AttemptStore) Take(ctx context.Context, state string) (*oauthflow.Attempt, error) {
	payload, err := s.client.GetDel(ctx, s.redisKey(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, oauthflow.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to take attempt from Redis: %w", err)
	}

	var attempt oauthflow.Attempt
	if err := json.Unmarshal(payload, &attempt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attempt: %w", err)
	}
	if attempt.Expired(s.now()) {
		return nil, oauthflow.ErrAttemptNotFound
	}
	return &attempt, nil
}

var _ oauthflow.AttemptStore = (*AttemptStore)(nil)
