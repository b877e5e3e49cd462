package storage_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/authsession/internal/app"
	"github.com/aussiebroadwan/authsession/pkg/authtest"
	"github.com/aussiebroadwan/authsession/pkg/cryptox"
	"github.com/aussiebroadwan/authsession/pkg/slogx"
	"github.com/aussiebroadwan/authsession/pkg/storage"
	"github.com/aussiebroadwan/authsession/pkg/storage/drivers/redis"
)

const (
	redisImage = "redis:7-alpine"

	testEmail    = "agent@example.com"
	testPassword = "agent-password"
	storageKey   = "e2e-storage-key"
)

// setupRedisContainer starts a disposable redis and returns its connection URL.
func setupRedisContainer(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        redisImage,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s/0", host, mappedPort.Port())
}

func redisConfig(url, prefix string) redis.Config {
	return redis.Config{
		ConnectionURL:  url,
		RetryAttempts:  5,
		RetryInterval:  500 * time.Millisecond,
		ConnectTimeout: 30 * time.Second,
		KeyPrefix:      prefix,
	}
}

func TestRedisEncryptedRoundTrip(t *testing.T) {
	url := setupRedisContainer(t)
	ctx := t.Context()

	client, err := redis.Connect(ctx, redisConfig(url, "roundtrip:"))
	require.NoError(t, err)

	sealer, err := cryptox.NewSealer([]byte(storageKey))
	require.NoError(t, err)

	db := redis.NewStore(client, "roundtrip:")
	t.Cleanup(func() { _ = db.Close() })
	store := storage.NewEncrypted(db, sealer)

	token := "2c0b2f0e-5c1e-4b8e-9f55-2d1e0c1f5a77"
	require.NoError(t, store.Set(ctx, storage.RefreshTokenKey, &token))

	got, ok, err := store.Get(ctx, storage.RefreshTokenKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, token, got)

	// The raw value in redis is sealed
	raw, ok, err := db.Get(ctx, storage.RefreshTokenKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotContains(t, raw, token)

	require.NoError(t, store.Set(ctx, storage.RefreshTokenKey, nil))
	_, ok, err = store.Get(ctx, storage.RefreshTokenKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestApplicationRestoresFromRedis(t *testing.T) {
	url := setupRedisContainer(t)

	srv := authtest.New(t)
	srv.AddUser(t, testEmail, testPassword, authtest.UserOptions{})

	cfg := app.Config{
		BackendURL:          srv.URL,
		Storage:             app.StorageRedis,
		StorageKey:          storageKey,
		Redis:               redisConfig(url, "app:"),
		AutoRefresh:         true,
		HTTPTimeout:         5 * time.Second,
		ShutdownGracePeriod: 5 * time.Second,
	}

	runUntilSignedIn := func(cfg app.Config) {
		t.Helper()

		application, err := app.NewWithLogger(cfg, slogx.Discard())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- application.Run(ctx) }()

		require.Eventually(t, func() bool {
			return application.Machine().Snapshot().Matches("authentication.signedIn")
		}, 10*time.Second, 20*time.Millisecond)

		cancel()
		require.NoError(t, <-errCh)
	}

	first := cfg
	first.Email = testEmail
	first.Password = testPassword
	runUntilSignedIn(first)
	require.Equal(t, 1, srv.Calls("/signin/email-password"))

	// The second process restores the stored refresh token
	runUntilSignedIn(cfg)
	require.Equal(t, 1, srv.Calls("/signin/email-password"))
	require.Equal(t, 1, srv.Calls("/token"))

	raw := goredis.NewClient(&goredis.Options{Addr: mustAddr(t, url)})
	t.Cleanup(func() { _ = raw.Close() })
	keys, err := raw.Keys(t.Context(), "app:*").Result()
	require.NoError(t, err)
	require.Contains(t, keys, "app:"+storage.RefreshTokenKey)
}

func mustAddr(t *testing.T, url string) string {
	t.Helper()
	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)
	return opts.Addr
}
