// Package refresh rotates the stored token pair. Concurrent callers share a single
// exchange: whoever asks while one is in flight receives its result.
package refresh

import (
	"context"
	"errors"

	"github.com/jrsteele09/cloudhub-session/credentials"
	apperrors "github.com/jrsteele09/cloudhub-session/internal/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrNoRefreshToken is returned, without any network call, when nothing is stored to refresh with
var ErrNoRefreshToken = errors.New("no refresh token stored")

// ErrSessionChanged is returned when the session was cleared or replaced while the
// exchange was running. The exchange result is discarded.
var ErrSessionChanged = apperrors.ErrSessionChanged

const flightKey = "refresh"

// Exchanger trades a refresh token for a new pair
type Exchanger interface {
	Exchange(ctx context.Context, refreshToken string) (credentials.Session, error)
}

// ExchangerFunc adapts a function to Exchanger
type ExchangerFunc func(ctx context.Context, refreshToken string) (credentials.Session, error)

func (f ExchangerFunc) Exchange(ctx context.Context, refreshToken string) (credentials.Session, error) {
	return f(ctx, refreshToken)
}

// Manager handles refresh token rotation against the credential store
type Manager struct {
	store       credentials.Store
	exchanger   Exchanger
	keepSession func(error) bool
	group       singleflight.Group
	logger      zerolog.Logger
}

type ManagerOption func(*Manager)

// WithKeepSession decides which exchange failures leave the stored session alone.
// By default every failure clears it.
func WithKeepSession(keep func(error) bool) ManagerOption {
	return func(m *Manager) {
		m.keepSession = keep
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new refresh token manager
func NewManager(store credentials.Store, exchanger Exchanger, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[refresh.NewManager] store is required")
	}
	if exchanger == nil {
		return nil, errors.New("[refresh.NewManager] exchanger is required")
	}

	m := &Manager{
		store:       store,
		exchanger:   exchanger,
		keepSession: func(error) bool { return false },
		logger:      zerolog.Nop(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Refresh exchanges the stored refresh token and overwrites the stored pair. Callers
// arriving while an exchange is running wait for it instead of starting another; a
// caller whose ctx ends stops waiting without cancelling the shared exchange.
func (m *Manager) Refresh(ctx context.Context) (credentials.Session, error) {
	ch := m.group.DoChan(flightKey, func() (any, error) {
		return m.rotate(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return credentials.Session{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return credentials.Session{}, res.Err
		}
		return res.Val.(credentials.Session), nil
	}
}

func (m *Manager) rotate(ctx context.Context) (credentials.Session, error) {
	current, err := m.store.Read(ctx)
	if err != nil {
		return credentials.Session{}, err
	}
	if current.RefreshToken == "" {
		m.clear(ctx, "")
		return credentials.Session{}, ErrNoRefreshToken
	}

	next, err := m.exchanger.Exchange(ctx, current.RefreshToken)
	if err != nil {
		if !m.keepSession(err) {
			m.clear(ctx, current.RefreshToken)
		}
		return credentials.Session{}, err
	}

	// Refresh responses usually omit the user; keep the cached one.
	if next.User == nil {
		next.User = current.User
	}
	// A logout, guard trip or new login during the exchange wins over its result.
	if err := m.store.CompareAndWrite(ctx, current.RefreshToken, next); err != nil {
		if errors.Is(err, ErrSessionChanged) {
			m.logger.Info().Msg("session changed during refresh, discarding rotated pair")
		}
		return credentials.Session{}, err
	}
	return next, nil
}

// clear drops the session the exchange was started for, leaving a newer one alone
func (m *Manager) clear(ctx context.Context, refreshToken string) {
	err := m.store.CompareAndClear(ctx, refreshToken)
	switch {
	case errors.Is(err, ErrSessionChanged):
		m.logger.Debug().Msg("session changed during refresh, not clearing it")
	case err != nil:
		m.logger.Warn().Err(err).Msg("failed to clear session after refresh failure")
	}
}
