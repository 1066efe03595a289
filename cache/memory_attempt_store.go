package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pilab-dev/airform/internal/oauthflow"
)

// MemoryAttemptStore implements oauthflow.AttemptStore using ttlcache. It is
// only suitable for a single instance.
type MemoryAttemptStore struct {
	cache *ttlcache.Cache[string, oauthflow.Attempt]
	now   func() time.Time
}

// NewMemoryAttemptStore creates a store whose entries default to ttl and
// starts the expiry janitor. Close stops it.
func NewMemoryAttemptStore(ttl time.Duration) *MemoryAttemptStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, oauthflow.Attempt](ttl),
		ttlcache.WithDisableTouchOnHit[string, oauthflow.Attempt](),
	)

	go cache.Start()

	return &MemoryAttemptStore{
		cache: cache,
		now:   time.Now,
	}
}

// Put implements oauthflow.AttemptStore.Put.
func (s *MemoryAttemptStore) Put(_ context.Context, attempt *oauthflow.Attempt) error {
	ttl := attempt.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	s.cache.Set(HashKey(attempt.State), *attempt, ttl)
	return nil
}

// Take implements oauthflow.AttemptStore.Take.
func (s *MemoryAttemptStore) Take(_ context.Context, state string) (*oauthflow.Attempt, error) {
	item, found := s.cache.GetAndDelete(HashKey(state))
	if !found || item == nil || item.IsExpired() {
		return nil, oauthflow.ErrAttemptNotFound
	}
	attempt := item.Value()
	if attempt.Expired(s.now()) {
		return nil, oauthflow.ErrAttemptNotFound
	}
	return &attempt, nil
}

// Len returns the number of pending attempts.
func (s *MemoryAttemptStore) Len() int {
	return s.cache.Len()
}

// Close stops the cleanup goroutine.
func (s *MemoryAttemptStore) Close() error {
	s.cache.Stop()
	return nil
}

var _ oauthflow.AttemptStore = (*MemoryAttemptStore)(nil)
