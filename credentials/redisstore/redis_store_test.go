package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/cloudhub-session/credentials"
	"github.com/jrsteele09/cloudhub-session/credentials/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, options ...redisstore.Option) (*miniredis.Miniredis, *redisstore.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := redisstore.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return mr, s
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := redisstore.New(nil)
	require.Error(t, err)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, s := setup(t)

	_, found, err := s.Get(ctx, credentials.KeyAccessToken)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.Set(ctx, credentials.KeyAccessToken, "A1"))
	require.Equal(t, "A1", mustGet(t, mr, redisstore.DefaultPrefix+credentials.KeyAccessToken))

	v, found, err := s.Get(ctx, credentials.KeyAccessToken)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "A1", v)

	require.NoError(t, s.Delete(ctx, credentials.Keys...))
	require.False(t, mr.Exists(redisstore.DefaultPrefix+credentials.KeyAccessToken))
}

func TestStore_PrefixAndTTL(t *testing.T) {
	ctx := context.Background()
	mr, s := setup(t, redisstore.WithPrefix("test:"), redisstore.WithTTL(time.Hour))

	require.NoError(t, s.Set(ctx, credentials.KeyRefreshToken, "R1"))
	require.True(t, mr.Exists("test:"+credentials.KeyRefreshToken))
	require.Equal(t, time.Hour, mr.TTL("test:"+credentials.KeyRefreshToken))

	mr.FastForward(2 * time.Hour)
	_, found, err := s.Get(ctx, credentials.KeyRefreshToken)
	require.NoError(t, err)
	require.False(t, found)
}

func TestStore_ServerDown(t *testing.T) {
	ctx := context.Background()
	mr, s := setup(t)
	mr.Close()

	_, _, err := s.Get(ctx, credentials.KeyAccessToken)
	require.Error(t, err)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := redisstore.Connect(context.Background(), mr.Addr(), "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	mr.Close()
	_, err = redisstore.Connect(context.Background(), mr.Addr(), "")
	require.Error(t, err)
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
