package cookiestore_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/jrsteele09/cloudhub-session/credentials"
	"github.com/jrsteele09/cloudhub-session/credentials/cookiestore"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestNew_RequiresHost(t *testing.T) {
	_, err := cookiestore.New("/relative/only")
	require.Error(t, err)
}

func TestStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s, err := cookiestore.New("https://api.cloudhub.test/api")
	require.NoError(t, err)

	userJSON := `{"id":"1","full_name":"John Doe"}`
	require.NoError(t, s.Set(ctx, credentials.KeyUser, userJSON))

	v, found, err := s.Get(ctx, credentials.KeyUser)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, userJSON, v)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	require.True(t, snap[0].Secure)
	require.Equal(t, http.SameSiteStrictMode, snap[0].SameSite)
	require.Equal(t, "/", snap[0].Path)

	require.NoError(t, s.Delete(ctx, credentials.Keys...))
	require.NoError(t, s.Delete(ctx, credentials.Keys...))
	_, found, err = s.Get(ctx, credentials.KeyUser)
	require.NoError(t, err)
	require.False(t, found)
}

func TestStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s, err := cookiestore.New("https://api.cloudhub.test",
		cookiestore.WithMaxAge(time.Minute),
		cookiestore.WithNowTime(func() time.Time { return now }),
	)
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, credentials.KeyAccessToken, "A1"))
	now = now.Add(2 * time.Minute)

	_, found, err := s.Get(ctx, credentials.KeyAccessToken)
	require.NoError(t, err)
	require.False(t, found)
}

func TestStore_CookieJar(t *testing.T) {
	ctx := context.Background()

	t.Run("secure cookies only over https", func(t *testing.T) {
		s, err := cookiestore.New("http://localhost:8000/api")
		require.NoError(t, err)
		require.NoError(t, s.Set(ctx, credentials.KeyAccessToken, "A1"))

		require.Empty(t, s.Cookies(mustURL(t, "http://localhost:8000/api/hackathons")))
		require.Len(t, s.Cookies(mustURL(t, "https://localhost:8000/api/hackathons")), 1)
	})

	t.Run("insecure cookies for local development", func(t *testing.T) {
		s, err := cookiestore.New("http://localhost:8000/api", cookiestore.WithSecure(false))
		require.NoError(t, err)
		require.NoError(t, s.Set(ctx, credentials.KeyAccessToken, "A1"))

		got := s.Cookies(mustURL(t, "http://localhost:8000/api/hackathons"))
		require.Len(t, got, 1)
		require.Equal(t, credentials.KeyAccessToken, got[0].Name)
		require.Equal(t, "A1", got[0].Value)
	})

	t.Run("other hosts get nothing", func(t *testing.T) {
		s, err := cookiestore.New("http://localhost:8000", cookiestore.WithSecure(false))
		require.NoError(t, err)
		require.NoError(t, s.Set(ctx, credentials.KeyAccessToken, "A1"))
		require.Empty(t, s.Cookies(mustURL(t, "http://evil.test/")))
	})

	t.Run("server can expire session cookies", func(t *testing.T) {
		s, err := cookiestore.New("http://localhost:8000", cookiestore.WithSecure(false))
		require.NoError(t, err)
		require.NoError(t, s.Set(ctx, credentials.KeyAccessToken, "A1"))

		u := mustURL(t, "http://localhost:8000/api/auth/logout")
		s.SetCookies(u, []*http.Cookie{{Name: credentials.KeyAccessToken, MaxAge: -1}})
		_, found, err := s.Get(ctx, credentials.KeyAccessToken)
		require.NoError(t, err)
		require.False(t, found)

		s.SetCookies(u, []*http.Cookie{{Name: "csrftoken", Value: "xyz", MaxAge: 60}})
		require.Len(t, s.Cookies(u), 1)
	})
}
