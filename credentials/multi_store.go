package credentials

import (
	"context"
	"errors"
	"sync"

	apperrors "github.com/jrsteele09/cloudhub-session/internal/errors"
	"github.com/jrsteele09/cloudhub-session/internal/metrics"
	"github.com/jrsteele09/cloudhub-session/users"
	"github.com/rs/zerolog"
)

var _ Store = (*MultiStore)(nil)

// MultiStore mirrors the session into every backend ("write to all") and reads
// from the first backend holding a complete session ("read from first available").
// Backend order is read priority: durable stores first, cookies last.
//
// A backend that failed a write or clear and could not be emptied afterwards may
// still hold an old session. It is marked stale and skipped by reads until a later
// write or clear succeeds on it.
type MultiStore struct {
	backends []Backend
	stale    []bool
	mu       sync.RWMutex
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// MultiStoreOption defines a function type to modify the MultiStore instance.
type MultiStoreOption func(*MultiStore)

func WithLogger(logger zerolog.Logger) MultiStoreOption {
	return func(m *MultiStore) {
		m.logger = logger
	}
}

func WithMetrics(mtr *metrics.Metrics) MultiStoreOption {
	return func(m *MultiStore) {
		m.metrics = mtr
	}
}

func NewMultiStore(backends []Backend, options ...MultiStoreOption) (*MultiStore, error) {
	if len(backends) == 0 {
		return nil, errors.New("[NewMultiStore] at least one backend is required")
	}
	for _, b := range backends {
		if b == nil {
			return nil, errors.New("[NewMultiStore] nil backend")
		}
	}

	m := &MultiStore{
		backends: backends,
		stale:    make([]bool, len(backends)),
		logger:   zerolog.Nop(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Write stores the session in every backend. A failing backend is logged and
// skipped; the write only fails when no backend accepted it.
func (m *MultiStore) Write(ctx context.Context, session Session) error {
	if !session.IsAuthenticated() {
		return apperrors.Wrapf(apperrors.ErrPartialSession, "[MultiStore Write]")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked(ctx, session)
}

func (m *MultiStore) writeLocked(ctx context.Context, session Session) error {
	var userJSON string
	if session.User != nil {
		encoded, err := session.User.Encode()
		if err != nil {
			return apperrors.Wrapf(err, "[MultiStore Write]")
		}
		userJSON = encoded
	}

	var failures []error
	for i, b := range m.backends {
		err := writeBackend(ctx, b, session, userJSON)
		if err == nil {
			m.stale[i] = false
			continue
		}
		m.metrics.BackendFailure(b.Name(), "write")
		m.logger.Warn().Err(err).Str("backend", b.Name()).Msg("credential backend write failed")
		// Leave nothing half written behind in the failing backend.
		if delErr := b.Delete(ctx, Keys...); delErr != nil {
			m.logger.Warn().Err(delErr).Str("backend", b.Name()).Msg("credential backend rollback failed, ignoring it until the next successful write")
			m.stale[i] = true
		} else {
			m.stale[i] = false
		}
		failures = append(failures, err)
	}

	if len(failures) == len(m.backends) {
		return apperrors.Wrapf(errors.Join(append([]error{apperrors.ErrAllBackendsFailed}, failures...)...), "[MultiStore Write]")
	}
	return nil
}

func writeBackend(ctx context.Context, b Backend, session Session, userJSON string) error {
	if err := b.Set(ctx, KeyAccessToken, session.AccessToken); err != nil {
		return err
	}
	if err := b.Set(ctx, KeyRefreshToken, session.RefreshToken); err != nil {
		return err
	}
	if userJSON == "" {
		return b.Delete(ctx, KeyUser)
	}
	return b.Set(ctx, KeyUser, userJSON)
}

// Read returns the first complete session found in backend order. When no backend
// holds a complete session, whatever fields the first non-empty backend holds are
// returned; callers must check IsAuthenticated. Stale backends are skipped. An error
// is returned only when every backend that was consulted failed.
func (m *MultiStore) Read(ctx context.Context) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readLocked(ctx)
}

func (m *MultiStore) readLocked(ctx context.Context) (Session, error) {
	var (
		fallback  Session
		failures  []error
		consulted int
		haveFound bool
	)
	for i, b := range m.backends {
		if m.stale[i] {
			continue
		}
		consulted++
		s, err := m.readBackend(ctx, b)
		if err != nil {
			m.metrics.BackendFailure(b.Name(), "read")
			m.logger.Warn().Err(err).Str("backend", b.Name()).Msg("credential backend read failed")
			failures = append(failures, err)
			continue
		}
		if s.IsAuthenticated() {
			return s, nil
		}
		if !haveFound && !s.IsEmpty() {
			fallback = s
			haveFound = true
		}
	}

	if consulted > 0 && len(failures) == consulted {
		return Session{}, apperrors.Wrapf(errors.Join(append([]error{apperrors.ErrBackendUnavailable}, failures...)...), "[MultiStore Read]")
	}
	return fallback, nil
}

func (m *MultiStore) readBackend(ctx context.Context, b Backend) (Session, error) {
	var s Session
	access, _, err := b.Get(ctx, KeyAccessToken)
	if err != nil {
		return Session{}, err
	}
	refresh, _, err := b.Get(ctx, KeyRefreshToken)
	if err != nil {
		return Session{}, err
	}
	s.AccessToken = access
	s.RefreshToken = refresh

	raw, found, err := b.Get(ctx, KeyUser)
	if err != nil {
		return Session{}, err
	}
	if found && raw != "" {
		profile, err := users.DecodeProfile(raw)
		if err != nil {
			m.logger.Warn().Err(err).Str("backend", b.Name()).Msg("discarding unreadable stored user")
		} else {
			s.User = profile
		}
	}
	return s, nil
}

// Clear removes every key class from every backend. It is idempotent; errors from
// individual backends are joined but every backend is still attempted. A backend
// that could not be cleared is no longer read.
func (m *MultiStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearLocked(ctx)
}

func (m *MultiStore) clearLocked(ctx context.Context) error {
	var failures []error
	for i, b := range m.backends {
		if err := b.Delete(ctx, Keys...); err != nil {
			m.metrics.BackendFailure(b.Name(), "clear")
			m.logger.Warn().Err(err).Str("backend", b.Name()).Msg("credential backend clear failed")
			m.stale[i] = true
			failures = append(failures, err)
			continue
		}
		m.stale[i] = false
	}
	if len(failures) > 0 {
		return apperrors.Wrapf(errors.Join(failures...), "[MultiStore Clear]")
	}
	return nil
}

// CompareAndWrite replaces the session only while the stored refresh token is still
// expectRefresh. When it is not, nothing is written and ErrSessionChanged is returned.
func (m *MultiStore) CompareAndWrite(ctx context.Context, expectRefresh string, session Session) error {
	if !session.IsAuthenticated() {
		return apperrors.Wrapf(apperrors.ErrPartialSession, "[MultiStore CompareAndWrite]")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.expectRefreshLocked(ctx, expectRefresh); err != nil {
		return apperrors.Wrapf(err, "[MultiStore CompareAndWrite]")
	}
	return m.writeLocked(ctx, session)
}

// CompareAndClear clears the session only while the stored refresh token is still
// expectRefresh, so a session stored in the meantime survives.
func (m *MultiStore) CompareAndClear(ctx context.Context, expectRefresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.expectRefreshLocked(ctx, expectRefresh); err != nil {
		return apperrors.Wrapf(err, "[MultiStore CompareAndClear]")
	}
	return m.clearLocked(ctx)
}

func (m *MultiStore) expectRefreshLocked(ctx context.Context, expectRefresh string) error {
	current, err := m.readLocked(ctx)
	if err != nil {
		return err
	}
	if current.RefreshToken != expectRefresh {
		return apperrors.ErrSessionChanged
	}
	return nil
}

// ReplaceUser swaps the cached profile of the current session, rewriting the whole
// session so every backend stays consistent.
func (m *MultiStore) ReplaceUser(ctx context.Context, user *users.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.readLocked(ctx)
	if err != nil {
		return err
	}
	if !current.IsAuthenticated() {
		return apperrors.Wrapf(apperrors.ErrNoSession, "[MultiStore ReplaceUser]")
	}
	current.User = user
	return m.writeLocked(ctx, current)
}
