package credentials_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/cloudhub-session/credentials"
	"github.com/jrsteele09/cloudhub-session/credentials/repofake"
	apperrors "github.com/jrsteele09/cloudhub-session/internal/errors"
	"github.com/jrsteele09/cloudhub-session/internal/metrics"
	"github.com/jrsteele09/cloudhub-session/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFixture struct {
	durable *repofake.FakeBackend
	cookies *repofake.FakeBackend
	store   *credentials.MultiStore
	reg     *prometheus.Registry
}

func setupStore(t *testing.T) *storeFixture {
	t.Helper()

	durable := repofake.NewFakeBackend("durable")
	cookies := repofake.NewFakeBackend("cookie")
	reg := prometheus.NewRegistry()

	store, err := credentials.NewMultiStore(
		[]credentials.Backend{durable, cookies},
		credentials.WithMetrics(metrics.New(reg)),
	)
	require.NoError(t, err)

	return &storeFixture{durable: durable, cookies: cookies, store: store, reg: reg}
}

func johnSession() credentials.Session {
	profile := users.WireUser{ID: "1", Email: "john@example.com", Name: "John Doe"}.ToProfile()
	return credentials.Session{AccessToken: "A1", RefreshToken: "R1", User: &profile}
}

func TestNewMultiStore_RequiresBackends(t *testing.T) {
	_, err := credentials.NewMultiStore(nil)
	require.Error(t, err)

	_, err = credentials.NewMultiStore([]credentials.Backend{nil})
	require.Error(t, err)
}

func TestMultiStore_Write(t *testing.T) {
	ctx := context.Background()

	t.Run("mirrors into every backend", func(t *testing.T) {
		f := setupStore(t)
		require.NoError(t, f.store.Write(ctx, johnSession()))

		for _, b := range []*repofake.FakeBackend{f.durable, f.cookies} {
			snap := b.Snapshot()
			require.Equal(t, "A1", snap[credentials.KeyAccessToken])
			require.Equal(t, "R1", snap[credentials.KeyRefreshToken])
			require.Contains(t, snap[credentials.KeyUser], `"full_name":"John Doe"`)
		}

		s, err := f.store.Read(ctx)
		require.NoError(t, err)
		require.True(t, s.IsAuthenticated())
		require.Equal(t, "A1", s.AccessToken)
		require.Equal(t, "R1", s.RefreshToken)
		require.Equal(t, "John Doe", s.User.FullName)
	})

	t.Run("rejects a partial session", func(t *testing.T) {
		f := setupStore(t)
		err := f.store.Write(ctx, credentials.Session{AccessToken: "A1"})
		require.ErrorIs(t, err, apperrors.ErrPartialSession)
		require.Empty(t, f.durable.Snapshot())
	})

	t.Run("one failing backend does not abort", func(t *testing.T) {
		f := setupStore(t)
		f.cookies.FailSet(true)

		require.NoError(t, f.store.Write(ctx, johnSession()))
		require.Equal(t, "A1", f.durable.Snapshot()[credentials.KeyAccessToken])
		require.Empty(t, f.cookies.Snapshot())
		require.Equal(t, float64(1), backendFailures(t, f.reg, "cookie", "write"))
	})

	t.Run("failing backend is rolled back", func(t *testing.T) {
		f := setupStore(t)
		f.cookies.FailSetKey(credentials.KeyRefreshToken)

		require.NoError(t, f.store.Write(ctx, johnSession()))
		snap := f.cookies.Snapshot()
		require.NotContains(t, snap, credentials.KeyAccessToken)
		require.NotContains(t, snap, credentials.KeyRefreshToken)
	})

	t.Run("all backends failing is an error", func(t *testing.T) {
		f := setupStore(t)
		f.durable.FailSet(true)
		f.cookies.FailSet(true)

		err := f.store.Write(ctx, johnSession())
		require.ErrorIs(t, err, apperrors.ErrAllBackendsFailed)
	})

	t.Run("replaces the whole session", func(t *testing.T) {
		f := setupStore(t)
		require.NoError(t, f.store.Write(ctx, johnSession()))
		require.NoError(t, f.store.Write(ctx, credentials.Session{AccessToken: "A2", RefreshToken: "R2"}))

		snap := f.durable.Snapshot()
		require.Equal(t, "A2", snap[credentials.KeyAccessToken])
		require.Equal(t, "R2", snap[credentials.KeyRefreshToken])
		require.NotContains(t, snap, credentials.KeyUser)
	})
}

func backendFailures(t *testing.T, reg *prometheus.Registry, backend, op string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "cloudhub_session_backend_failures_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["backend"] == backend && labels["op"] == op {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestMultiStore_Read(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store is unauthenticated, not an error", func(t *testing.T) {
		f := setupStore(t)
		s, err := f.store.Read(ctx)
		require.NoError(t, err)
		require.False(t, s.IsAuthenticated())
		require.True(t, s.IsEmpty())
	})

	t.Run("falls back to cookies", func(t *testing.T) {
		f := setupStore(t)
		f.cookies.Seed(map[string]string{
			credentials.KeyAccessToken:  "A-cookie",
			credentials.KeyRefreshToken: "R-cookie",
		})

		s, err := f.store.Read(ctx)
		require.NoError(t, err)
		require.Equal(t, "A-cookie", s.AccessToken)
	})

	t.Run("partial durable session is skipped", func(t *testing.T) {
		f := setupStore(t)
		f.durable.Seed(map[string]string{credentials.KeyAccessToken: "A-stale"})
		f.cookies.Seed(map[string]string{
			credentials.KeyAccessToken:  "A1",
			credentials.KeyRefreshToken: "R1",
		})

		s, err := f.store.Read(ctx)
		require.NoError(t, err)
		require.Equal(t, "A1", s.AccessToken)
		require.Equal(t, "R1", s.RefreshToken)
	})

	t.Run("refresh token alone is unauthenticated", func(t *testing.T) {
		f := setupStore(t)
		f.durable.Seed(map[string]string{credentials.KeyRefreshToken: "R1"})

		s, err := f.store.Read(ctx)
		require.NoError(t, err)
		require.False(t, s.IsAuthenticated())
		require.Equal(t, "R1", s.RefreshToken)
	})

	t.Run("failing backend is skipped", func(t *testing.T) {
		f := setupStore(t)
		require.NoError(t, f.store.Write(ctx, johnSession()))
		f.durable.FailGet(true)

		s, err := f.store.Read(ctx)
		require.NoError(t, err)
		require.Equal(t, "A1", s.AccessToken)
	})

	t.Run("every backend failing is an error", func(t *testing.T) {
		f := setupStore(t)
		f.durable.FailGet(true)
		f.cookies.FailGet(true)

		_, err := f.store.Read(ctx)
		require.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
	})

	t.Run("unreadable user is dropped", func(t *testing.T) {
		f := setupStore(t)
		f.durable.Seed(map[string]string{
			credentials.KeyAccessToken:  "A1",
			credentials.KeyRefreshToken: "R1",
			credentials.KeyUser:         "{broken",
		})

		s, err := f.store.Read(ctx)
		require.NoError(t, err)
		require.True(t, s.IsAuthenticated())
		require.Nil(t, s.User)
	})
}

func TestMultiStore_Clear(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent", func(t *testing.T) {
		f := setupStore(t)
		require.NoError(t, f.store.Clear(ctx))

		require.NoError(t, f.store.Write(ctx, johnSession()))
		require.NoError(t, f.store.Clear(ctx))
		require.NoError(t, f.store.Clear(ctx))

		require.Empty(t, f.durable.Snapshot())
		require.Empty(t, f.cookies.Snapshot())
		s, err := f.store.Read(ctx)
		require.NoError(t, err)
		require.True(t, s.IsEmpty())
	})

	t.Run("attempts every backend", func(t *testing.T) {
		f := setupStore(t)
		require.NoError(t, f.store.Write(ctx, johnSession()))
		f.durable.FailDelete(true)

		err := f.store.Clear(ctx)
		require.ErrorIs(t, err, repofake.ErrInjected)
		require.Empty(t, f.cookies.Snapshot())
	})
}

func TestMultiStore_UnwritableBackendIsNotRead(t *testing.T) {
	ctx := context.Background()

	t.Run("failed write and rollback", func(t *testing.T) {
		f := setupStore(t)
		require.NoError(t, f.store.Write(ctx, johnSession()))
		f.durable.FailSet(true)
		f.durable.FailDelete(true)

		require.NoError(t, f.store.Write(ctx, credentials.Session{AccessToken: "A2", RefreshToken: "R2"}))
		require.Equal(t, "A1", f.durable.Snapshot()[credentials.KeyAccessToken])

		s, err := f.store.Read(ctx)
		require.NoError(t, err)
		require.Equal(t, "A2", s.AccessToken)
		require.Equal(t, "R2", s.RefreshToken)

		// Readable again after the next successful write
		f.durable.FailSet(false)
		f.durable.FailDelete(false)
		require.NoError(t, f.store.Write(ctx, credentials.Session{AccessToken: "A3", RefreshToken: "R3"}))
		f.cookies.FailGet(true)
		s, err = f.store.Read(ctx)
		require.NoError(t, err)
		require.Equal(t, "A3", s.AccessToken)
	})

	t.Run("failed clear", func(t *testing.T) {
		f := setupStore(t)
		require.NoError(t, f.store.Write(ctx, johnSession()))
		f.durable.FailDelete(true)

		require.ErrorIs(t, f.store.Clear(ctx), repofake.ErrInjected)
		require.Equal(t, "A1", f.durable.Snapshot()[credentials.KeyAccessToken])

		s, err := f.store.Read(ctx)
		require.NoError(t, err)
		require.False(t, s.IsAuthenticated())
		require.True(t, s.IsEmpty())
	})

	t.Run("only stale backends left", func(t *testing.T) {
		f := setupStore(t)
		require.NoError(t, f.store.Write(ctx, johnSession()))
		f.durable.FailDelete(true)
		f.cookies.FailDelete(true)

		require.Error(t, f.store.Clear(ctx))
		s, err := f.store.Read(ctx)
		require.NoError(t, err)
		require.True(t, s.IsEmpty())
	})
}

func TestMultiStore_CompareAndWrite(t *testing.T) {
	ctx := context.Background()

	t.Run("matching refresh token", func(t *testing.T) {
		f := setupStore(t)
		require.NoError(t, f.store.Write(ctx, johnSession()))
		require.NoError(t, f.store.CompareAndWrite(ctx, "R1", credentials.Session{AccessToken: "A2", RefreshToken: "R2"}))

		s, err := f.store.Read(ctx)
		require.NoError(t, err)
		require.Equal(t, "A2", s.AccessToken)
	})

	t.Run("cleared in the meantime", func(t *testing.T) {
		f := setupStore(t)
		require.NoError(t, f.store.Write(ctx, johnSession()))
		require.NoError(t, f.store.Clear(ctx))

		err := f.store.CompareAndWrite(ctx, "R1", credentials.Session{AccessToken: "A2", RefreshToken: "R2"})
		require.ErrorIs(t, err, apperrors.ErrSessionChanged)
		require.Empty(t, f.durable.Snapshot())
	})

	t.Run("compare and clear keeps a newer session", func(t *testing.T) {
		f := setupStore(t)
		require.NoError(t, f.store.Write(ctx, credentials.Session{AccessToken: "A-NEW", RefreshToken: "R-NEW"}))

		require.ErrorIs(t, f.store.CompareAndClear(ctx, "R1"), apperrors.ErrSessionChanged)
		require.Equal(t, "A-NEW", f.durable.Snapshot()[credentials.KeyAccessToken])

		require.NoError(t, f.store.CompareAndClear(ctx, "R-NEW"))
		require.Empty(t, f.durable.Snapshot())
	})
}

func TestMultiStore_ReplaceUser(t *testing.T) {
	ctx := context.Background()
	fresh := users.WireUser{ID: "1", Email: "john@example.com", Name: "Johnny", OrganizationName: "Acme"}.ToProfile()

	t.Run("requires a session", func(t *testing.T) {
		f := setupStore(t)
		err := f.store.ReplaceUser(ctx, &fresh)
		require.ErrorIs(t, err, apperrors.ErrNoSession)
	})

	t.Run("rewrites every backend", func(t *testing.T) {
		f := setupStore(t)
		require.NoError(t, f.store.Write(ctx, johnSession()))
		require.NoError(t, f.store.ReplaceUser(ctx, &fresh))

		for _, b := range []*repofake.FakeBackend{f.durable, f.cookies} {
			snap := b.Snapshot()
			require.Equal(t, "A1", snap[credentials.KeyAccessToken])
			require.Contains(t, snap[credentials.KeyUser], `"organization_name":"Acme"`)
		}
	})
}

func TestMultiStore_ConcurrentWritersNeverMixPairs(t *testing.T) {
	ctx := context.Background()
	f := setupStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, f.store.Write(ctx, credentials.Session{
				AccessToken:  fmt.Sprintf("A%d", i),
				RefreshToken: fmt.Sprintf("R%d", i),
			}))
		}(i)
		go func() {
			defer wg.Done()
			s, err := f.store.Read(ctx)
			assert.NoError(t, err)
			if s.IsAuthenticated() {
				assert.Equal(t, strings.TrimPrefix(s.AccessToken, "A"), strings.TrimPrefix(s.RefreshToken, "R"))
			}
		}()
	}
	wg.Wait()
}

func TestSession_ExpiryAndOAuth2Token(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": "1",
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	s := credentials.Session{AccessToken: signed, RefreshToken: "R1"}
	require.True(t, exp.Equal(s.Expiry()))

	tok := s.OAuth2Token()
	require.NotNil(t, tok)
	require.Equal(t, "Bearer", tok.TokenType)
	require.Equal(t, "R1", tok.RefreshToken)
	require.True(t, exp.Equal(tok.Expiry))

	require.True(t, credentials.Session{AccessToken: "opaque", RefreshToken: "R"}.Expiry().IsZero())
	require.Nil(t, credentials.Session{AccessToken: "A"}.OAuth2Token())
}
