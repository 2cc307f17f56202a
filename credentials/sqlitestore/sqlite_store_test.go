package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/cloudhub-session/credentials"
	"github.com/jrsteele09/cloudhub-session/credentials/sqlitestore"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, path string) *sqlitestore.Store {
	t.Helper()
	s, err := sqlitestore.New(context.Background(), path)
	require.NoError(t, err)
	return s
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := sqlitestore.New(context.Background(), "")
	require.Error(t, err)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, filepath.Join(t.TempDir(), "nested", "session.db"))
	defer s.Close()

	_, found, err := s.Get(ctx, credentials.KeyAccessToken)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.Set(ctx, credentials.KeyAccessToken, "A1"))
	require.NoError(t, s.Set(ctx, credentials.KeyAccessToken, "A2"))

	v, found, err := s.Get(ctx, credentials.KeyAccessToken)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "A2", v)

	require.NoError(t, s.Delete(ctx, credentials.Keys...))
	require.NoError(t, s.Delete(ctx, credentials.Keys...))
	_, found, err = s.Get(ctx, credentials.KeyAccessToken)
	require.NoError(t, err)
	require.False(t, found)
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	first := newStore(t, path)
	require.NoError(t, first.Set(ctx, credentials.KeyRefreshToken, "R1"))
	require.NoError(t, first.Close())

	second := newStore(t, path)
	defer second.Close()
	v, found, err := second.Get(ctx, credentials.KeyRefreshToken)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "R1", v)
}

func TestStore_WithMultiStore(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, filepath.Join(t.TempDir(), "session.db"))
	defer s.Close()

	store, err := credentials.NewMultiStore([]credentials.Backend{s})
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, credentials.Session{AccessToken: "A1", RefreshToken: "R1"}))
	got, err := store.Read(ctx)
	require.NoError(t, err)
	require.True(t, got.IsAuthenticated())

	require.NoError(t, store.Clear(ctx))
	got, err = store.Read(ctx)
	require.NoError(t, err)
	require.True(t, got.IsEmpty())
}
