package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedis(client, "test:", ttl), server
}

func exerciseBackend(t *testing.T, backend Backend) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := backend.Get(ctx, "ctx-1", "accessToken")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, backend.Set(ctx, "ctx-1", "accessToken", "abc"))
	require.NoError(t, backend.Set(ctx, "ctx-1", "refreshToken", "r1"))
	require.NoError(t, backend.Set(ctx, "ctx-2", "accessToken", "other"))

	value, ok, err := backend.Get(ctx, "ctx-1", "accessToken")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc", value)

	require.NoError(t, backend.Delete(ctx, "ctx-1", "accessToken"))
	_, ok, err = backend.Get(ctx, "ctx-1", "accessToken")
	require.NoError(t, err)
	require.False(t, ok)

	value, ok, err = backend.Get(ctx, "ctx-1", "refreshToken")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "r1", value)

	value, ok, err = backend.Get(ctx, "ctx-2", "accessToken")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "other", value)

	require.Error(t, backend.Set(ctx, "", "accessToken", "x"))
	require.Error(t, backend.Set(ctx, "ctx-1", " ", "x"))
	require.Error(t, backend.Delete(ctx, "", "accessToken"))
}

func TestMemoryBackend(t *testing.T) {
	t.Parallel()
	exerciseBackend(t, NewMemory())
}

func TestMemoryBackendFail(t *testing.T) {
	t.Parallel()

	backend := NewMemory()
	ctx := context.Background()
	require.NoError(t, backend.Set(ctx, "ctx", "k", "v"))

	backend.Fail(ErrUnavailable)
	_, _, err := backend.Get(ctx, "ctx", "k")
	require.True(t, errors.Is(err, ErrUnavailable))
	require.ErrorIs(t, backend.Set(ctx, "ctx", "k", "v2"), ErrUnavailable)
	require.ErrorIs(t, backend.Delete(ctx, "ctx", "k"), ErrUnavailable)

	backend.Fail(nil)
	value, ok, err := backend.Get(ctx, "ctx", "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", value)
}

func TestRedisBackend(t *testing.T) {
	t.Parallel()

	backend, _ := newTestRedis(t, time.Hour)
	exerciseBackend(t, backend)
}

func TestRedisBackendExpiresKeys(t *testing.T) {
	t.Parallel()

	backend, server := newTestRedis(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "ctx", "accessToken", "abc"))
	require.Equal(t, time.Minute, server.TTL("test:ctx:accessToken"))

	server.FastForward(2 * time.Minute)

	_, ok, err := backend.Get(ctx, "ctx", "accessToken")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisBackendUnreachable(t *testing.T) {
	t.Parallel()

	backend, server := newTestRedis(t, time.Minute)
	server.Close()

	_, _, err := backend.Get(context.Background(), "ctx", "accessToken")
	require.Error(t, err)
}
