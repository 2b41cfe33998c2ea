package revocations

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRepo(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewRedisRepository(rdb, ""), mr
}

func TestRedisRepository_RevokeUntilExpiry(t *testing.T) {
	r, mr := newRedisRepo(t)
	ctx := context.Background()

	ok, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Revoke(ctx, "jti-1", time.Now().Add(30*time.Minute)))
	assert.True(t, mr.Exists("revoked:jti-1"))

	ok, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(31 * time.Minute)

	ok, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, ok, "entry must expire with the token")
}

func TestRedisRepository_AlreadyExpiredIsNoop(t *testing.T) {
	r, mr := newRedisRepo(t)

	require.NoError(t, r.Revoke(context.Background(), "old", time.Now().Add(-time.Second)))
	assert.False(t, mr.Exists("revoked:old"))
}

func TestRedisRepository_Errors(t *testing.T) {
	r, mr := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, r.Ping(ctx))

	mr.SetError("READONLY")
	assert.Error(t, r.Revoke(ctx, "jti", time.Now().Add(time.Minute)))
	_, err := r.IsRevoked(ctx, "jti")
	assert.Error(t, err)
	assert.Error(t, r.Ping(ctx))
}

func TestRepositories_Ping(t *testing.T) {
	redisRepo, _ := newRedisRepo(t)
	for name, r := range map[string]Repository{
		"redis":  redisRepo,
		"memory": NewMemoryRepository(),
	} {
		assert.NoError(t, r.Ping(context.Background()), name)
	}
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewMemoryRepository()
	r.now = func() time.Time { return now }

	require.NoError(t, r.Revoke(ctx, "a", now.Add(time.Minute)))
	require.NoError(t, r.Revoke(ctx, "stale", now))

	ok, err := r.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = r.IsRevoked(ctx, "stale")
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = r.IsRevoked(ctx, "a")
	assert.False(t, ok)
	assert.Empty(t, r.revoked)
}
