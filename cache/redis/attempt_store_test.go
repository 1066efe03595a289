package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/pilab-dev/airform/cache/redis"
	"github.com/pilab-dev/airform/internal/oauthflow"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *redis.AttemptStore {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping Redis integration test: TEST_REDIS_ADDR not set")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())

	return redis.NewAttemptStore(client, "airform_test_"+time.Now().Format("150405.000000"))
}

func TestAttemptStore_Integration(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	attempt := &oauthflow.Attempt{
		State:     "state-r1",
		Verifier:  "verifier-r1",
		Status:    oauthflow.StatusInitiated,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Minute),
	}
	require.NoError(t, store.Put(ctx, attempt))

	got, err := store.Take(ctx, "state-r1")
	require.NoError(t, err)
	assert.Equal(t, "verifier-r1", got.Verifier)
	assert.Equal(t, oauthflow.StatusInitiated, got.Status)

	_, err = store.Take(ctx, "state-r1")
	assert.ErrorIs(t, err, oauthflow.ErrAttemptNotFound)

	_, err = store.Take(ctx, "never-stored")
	assert.ErrorIs(t, err, oauthflow.ErrAttemptNotFound)
}
