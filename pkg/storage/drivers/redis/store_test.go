package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authsession/pkg/storage"
	"github.com/aussiebroadwan/authsession/pkg/storage/drivers/redis"
)

func TestStore(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := redis.NewStore(client, "test:")
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	_, ok, err := s.Get(ctx, storage.RefreshTokenKey)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, storage.RefreshTokenKey, storage.Value("token")))

	// Keys are namespaced with the prefix
	raw, err := mr.Get("test:" + storage.RefreshTokenKey)
	require.NoError(t, err)
	require.Equal(t, "token", raw)

	v, ok, err := s.Get(ctx, storage.RefreshTokenKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "token", v)

	require.NoError(t, s.Set(ctx, storage.RefreshTokenKey, nil))
	require.False(t, mr.Exists("test:"+storage.RefreshTokenKey))
}

func TestConnect(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	t.Run("ready", func(t *testing.T) {
		client, err := redis.Connect(context.Background(), redis.Config{
			ConnectionURL:  "redis://" + mr.Addr() + "/0",
			RetryAttempts:  3,
			RetryInterval:  10 * time.Millisecond,
			ConnectTimeout: time.Second,
		})
		require.NoError(t, err)
		require.NoError(t, client.Close())
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := redis.Connect(context.Background(), redis.Config{
			ConnectionURL:  "not a url",
			ConnectTimeout: time.Second,
		})
		require.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)
	})

	t.Run("unreachable", func(t *testing.T) {
		_, err := redis.Connect(context.Background(), redis.Config{
			ConnectionURL:  "redis://127.0.0.1:1/0",
			RetryAttempts:  2,
			RetryInterval:  10 * time.Millisecond,
			ConnectTimeout: time.Second,
		})
		require.ErrorIs(t, err, redis.ErrRedisNotReady)
	})
}
