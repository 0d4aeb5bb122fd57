package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/auth-session-api/pkg/errors"
)

func TestCacheRepositoryRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	repo := NewCacheRepository(client, nil)
	ctx := context.Background()

	var got bool
	assert.True(t, errors.Is(repo.Get(ctx, "revoked:a", &got), appErrors.ErrCacheMiss))

	require.NoError(t, repo.Set(ctx, "revoked:a", true, time.Minute))
	require.NoError(t, repo.Get(ctx, "revoked:a", &got))
	assert.True(t, got)
	assert.Equal(t, time.Minute, mr.TTL("revoked:a"))

	mr.FastForward(2 * time.Minute)
	assert.True(t, errors.Is(repo.Get(ctx, "revoked:a", &got), appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Ping(ctx))
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var got bool
	assert.True(t, errors.Is(repo.Get(context.Background(), "k", &got), appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(context.Background(), "k", true, time.Minute))
	assert.Error(t, repo.Ping(context.Background()))
}
