package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*KVStoreFactory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewKVStoreFactory(client, ttl, "test"), mr
}

func TestKV_SetGetDelete(t *testing.T) {
	factory, mr := setupTestRedis(t, time.Hour)
	ctx := context.Background()
	kv := factory.ForSession("s1")

	require.NoError(t, kv.Set(ctx, "cart", []byte(`{"items":[]}`)))
	assert.True(t, mr.Exists("test:s1:cart"))

	data, err := kv.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, string(data))

	require.NoError(t, kv.Delete(ctx, "cart"))
	_, err = kv.Get(ctx, "cart")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	require.NoError(t, kv.Delete(ctx, "cart"), "deleting a missing key is not an error")
}

func TestKV_SessionsAreIsolated(t *testing.T) {
	factory, _ := setupTestRedis(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, factory.ForSession("a").Set(ctx, "cart", []byte("A")))
	_, err := factory.ForSession("b").Get(ctx, "cart")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestKV_SlidingTTL(t *testing.T) {
	factory, mr := setupTestRedis(t, 10*time.Minute)
	ctx := context.Background()
	kv := factory.ForSession("s1")

	require.NoError(t, kv.Set(ctx, "cart", []byte("x")))
	assert.Equal(t, 10*time.Minute, mr.TTL("test:s1:cart"))

	mr.FastForward(8 * time.Minute)
	_, err := kv.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, mr.TTL("test:s1:cart"), "reads extend the ttl")

	mr.FastForward(11 * time.Minute)
	_, err = kv.Get(ctx, "cart")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestKV_ServerDown(t *testing.T) {
	factory, mr := setupTestRedis(t, time.Hour)
	ctx := context.Background()
	mr.Close()

	kv := factory.ForSession("s1")
	err := kv.Set(ctx, "cart", []byte("x"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrKeyNotFound)

	_, err = kv.Get(ctx, "cart")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrKeyNotFound)

	assert.Error(t, factory.Ping(ctx))
}

func TestNewKVStoreFactory_Defaults(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	factory := NewKVStoreFactory(client, 0, "")
	assert.Equal(t, DefaultTTL, factory.ttl)
	assert.Equal(t, DefaultPrefix+":s:cart", factory.key("s", "cart"))
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	factory, err := Open(ctx, Config{Addr: mr.Addr(), TTL: time.Minute})
	require.NoError(t, err)
	defer factory.Close()
	require.NoError(t, factory.Ping(ctx))

	_, err = Open(ctx, Config{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
