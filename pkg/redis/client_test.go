package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/estatedesk/lead-router/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return Wrap(raw), mr
}

func TestSetNXAndExpiry(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	ok, err := client.SetNX(ctx, "lr:lock:test", "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.SetNX(ctx, "lr:lock:test", "owner-b", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	value, err := client.Get(ctx, "lr:lock:test")
	require.NoError(t, err)
	require.Equal(t, "owner-a", value)

	mr.FastForward(2 * time.Minute)
	ok, err = client.SetNX(ctx, "lr:lock:test", "owner-b", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDelIfValueOnlyRemovesOwnedKey(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	key := client.LockKey("scheduler")
	require.NoError(t, mr.Set(key, "owner-b"))

	deleted, err := client.DelIfValue(ctx, key, "owner-a")
	require.NoError(t, err)
	require.False(t, deleted)
	require.True(t, mr.Exists(key))

	deleted, err = client.DelIfValue(ctx, key, "owner-b")
	require.NoError(t, err)
	require.True(t, deleted)
	require.False(t, mr.Exists(key))

	deleted, err = client.DelIfValue(ctx, key, "owner-b")
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestExistsAndTTL(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	key := client.CooldownKey("notify", "Broker@Example.com")

	exists, err := client.Exists(ctx, key)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, client.Set(ctx, key, "failed", 15*time.Minute))
	exists, err = client.Exists(ctx, key)
	require.NoError(t, err)
	require.True(t, exists)

	ttl, err := client.TTL(ctx, key)
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, ttl)

	mr.FastForward(16 * time.Minute)
	exists, err = client.Exists(ctx, key)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestDelMissingKey(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	require.NoError(t, client.Del(ctx, "lr:nothing"))
	_, err := client.Get(ctx, "lr:nothing")
	require.ErrorIs(t, err, redis.Nil)
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	require.Equal(t, "lr:cooldown:notify:broker@example.com", client.CooldownKey("notify", "  Broker@Example.com "))
	require.Equal(t, "lr:lock:scheduler", client.LockKey("scheduler"))
	require.Equal(t, "lr:marker:notification-log-retention", client.MarkerKey("notification-log-retention"))
	require.Equal(t, "lr:cooldown:notify", client.CooldownKey("notify", ""))
}

func TestUninitializedClient(t *testing.T) {
	ctx := context.Background()
	client := &Client{}

	require.ErrorIs(t, client.Ping(ctx), ErrNotInitialized)
	_, err := client.Exists(ctx, "k")
	require.ErrorIs(t, err, ErrNotInitialized)
	require.NoError(t, client.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{
		URL:         "redis://localhost:6379/3",
		PoolSize:    7,
		DialTimeout: time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, 3, opts.DB)
	require.Equal(t, 7, opts.PoolSize)
	require.Equal(t, time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 2})
	require.NoError(t, err)
	require.Equal(t, "cache:6379", opts.Addr)
	require.Equal(t, 2, opts.DB)
}
