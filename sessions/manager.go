// Package sessions is the façade the UI layer talks to. It owns one explicit credential
// store instance and builds the shared HTTP client around it: cookie jar, then
// AuthTransport, then Guard.
package sessions

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jrsteele09/cloudhub-session/apiclient"
	"github.com/jrsteele09/cloudhub-session/authapi"
	"github.com/jrsteele09/cloudhub-session/credentials"
	"github.com/jrsteele09/cloudhub-session/internal/config"
	apperrors "github.com/jrsteele09/cloudhub-session/internal/errors"
	"github.com/jrsteele09/cloudhub-session/internal/metrics"
	"github.com/jrsteele09/cloudhub-session/token"
	"github.com/jrsteele09/cloudhub-session/transport"
	"github.com/jrsteele09/cloudhub-session/users"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

var _ oauth2.TokenSource = (*managerTokenSource)(nil)

type Manager struct {
	store   credentials.Store
	issuer  *token.Issuer
	guard   *transport.Guard
	api     *apiclient.Client
	leeway  time.Duration
	nowFunc func() time.Time
	logger  zerolog.Logger
}

type managerOptions struct {
	baseTransport http.RoundTripper
	jar           http.CookieJar
	logger        zerolog.Logger
	metrics       *metrics.Metrics
	nowFunc       func() time.Time
}

// Option defines a function type to modify the Manager construction.
type Option func(*managerOptions)

// WithBaseTransport sets the transport under the session transports (tests pass an httptest client's)
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *managerOptions) {
		o.baseTransport = rt
	}
}

// WithCookieJar lets the API read and expire the session cookies, as a browser would
func WithCookieJar(jar http.CookieJar) Option {
	return func(o *managerOptions) {
		o.jar = jar
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *managerOptions) {
		o.logger = logger
	}
}

func WithMetrics(mtr *metrics.Metrics) Option {
	return func(o *managerOptions) {
		o.metrics = mtr
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(o *managerOptions) {
		o.nowFunc = now
	}
}

func NewManager(cfg config.Config, store credentials.Store, navigator transport.Navigator, options ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("[NewManager] config is required")
	}
	if store == nil {
		return nil, errors.New("[NewManager] credential store is required")
	}

	o := managerOptions{
		baseTransport: http.DefaultTransport,
		logger:        zerolog.Nop(),
		nowFunc:       time.Now,
	}
	for _, opt := range options {
		opt(&o)
	}

	guard, err := transport.NewGuard(store, navigator,
		transport.WithBase(o.baseTransport),
		transport.WithLoginPath(cfg.GetLoginPath()),
		transport.WithGuardLogger(o.logger),
		transport.WithGuardMetrics(o.metrics),
	)
	if err != nil {
		return nil, err
	}
	auth, err := transport.NewAuthTransport(store, guard, transport.WithAuthLogger(o.logger))
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{
		Transport: auth,
		Jar:       o.jar,
		Timeout:   cfg.GetAPITimeout(),
	}

	issuer, err := token.NewIssuer(cfg.GetAPIBaseURL(), httpClient, store,
		token.WithLogger(o.logger),
		token.WithMetrics(o.metrics),
	)
	if err != nil {
		return nil, err
	}
	api, err := apiclient.New(cfg.GetAPIBaseURL(), apiclient.WithHTTPClient(httpClient), apiclient.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	return &Manager{
		store:   store,
		issuer:  issuer,
		guard:   guard,
		api:     api,
		leeway:  cfg.GetRefreshLeeway(),
		nowFunc: o.nowFunc,
		logger:  o.logger,
	}, nil
}

// API is the authenticated client for every other CloudHub endpoint
func (m *Manager) API() *apiclient.Client {
	return m.api
}

// Session returns the stored session as is; check IsAuthenticated before trusting it
func (m *Manager) Session(ctx context.Context) (credentials.Session, error) {
	return m.store.Read(ctx)
}

func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	s, err := m.store.Read(ctx)
	return err == nil && s.IsAuthenticated()
}

// CurrentUser returns the cached profile, or nil when there is no complete session
func (m *Manager) CurrentUser(ctx context.Context) (*users.Profile, error) {
	s, err := m.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	if !s.IsAuthenticated() {
		return nil, nil
	}
	return s.User, nil
}

func (m *Manager) Login(ctx context.Context, identifier, password string, options ...token.LoginOption) (*users.Profile, error) {
	s, err := m.issuer.Login(ctx, identifier, password, options...)
	if err != nil {
		return nil, err
	}
	m.guard.Arm()
	return s.User, nil
}

func (m *Manager) LoginWithPhone(ctx context.Context, countryCode, phone, password string, options ...token.LoginOption) (*users.Profile, error) {
	s, err := m.issuer.LoginWithPhone(ctx, countryCode, phone, password, options...)
	if err != nil {
		return nil, err
	}
	m.guard.Arm()
	return s.User, nil
}

// Register creates the account. loggedIn is false when the server only returned the
// created user; the caller should then send the user to the login screen.
func (m *Manager) Register(ctx context.Context, req authapi.RegisterRequest) (profile *users.Profile, loggedIn bool, err error) {
	s, err := m.issuer.Register(ctx, req)
	if err != nil {
		return nil, false, err
	}
	if s.IsAuthenticated() {
		m.guard.Arm()
	}
	return s.User, s.IsAuthenticated(), nil
}

func (m *Manager) Refresh(ctx context.Context) error {
	_, err := m.issuer.Refresh(ctx)
	return err
}

// EnsureFresh refreshes ahead of time when the access token expires within the
// configured leeway. Tokens without a readable exp claim are left alone.
func (m *Manager) EnsureFresh(ctx context.Context) error {
	s, err := m.store.Read(ctx)
	if err != nil {
		return err
	}
	if !s.IsAuthenticated() {
		return nil
	}
	exp := s.Expiry()
	if exp.IsZero() || m.nowFunc().Add(m.leeway).Before(exp) {
		return nil
	}
	m.logger.Debug().Time("expiry", exp).Msg("access token close to expiry, refreshing")
	return m.Refresh(ctx)
}

func (m *Manager) Logout(ctx context.Context) error {
	return m.issuer.Logout(ctx)
}

func (m *Manager) LogoutAll(ctx context.Context) error {
	return m.issuer.LogoutAll(ctx)
}

// Restore loads the cached user and then tries to replace it with a fresh copy from
// /auth/me. A failed fetch is logged and the cached user is returned.
func (m *Manager) Restore(ctx context.Context) (*users.Profile, error) {
	cached, err := m.CurrentUser(ctx)
	if err != nil || cached == nil {
		return nil, err
	}

	fresh, err := m.issuer.Me(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("could not refresh user from the API, using cached profile")
		if token.KindOf(err) == token.KindUnauthorized {
			// The guard has already cleared the session
			return nil, nil
		}
		return cached, nil
	}
	return fresh, nil
}

func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	return m.issuer.RequestPasswordReset(ctx, email)
}

func (m *Manager) ConfirmPasswordReset(ctx context.Context, resetToken, newPassword, confirmPassword string) error {
	return m.issuer.ConfirmPasswordReset(ctx, resetToken, newPassword, confirmPassword)
}

func (m *Manager) VerifyEmail(ctx context.Context, verificationToken string) error {
	return m.issuer.VerifyEmail(ctx, verificationToken)
}

// OnInvalidated subscribes to guard trips
func (m *Manager) OnInvalidated(fn func(transport.InvalidationEvent)) (unsubscribe func()) {
	return m.guard.OnInvalidated(fn)
}

// TokenSource yields the stored bearer token, refreshing it first when close to expiry
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, m: m}
}

type managerTokenSource struct {
	ctx context.Context
	m   *Manager
}

func (ts *managerTokenSource) Token() (*oauth2.Token, error) {
	if err := ts.m.EnsureFresh(ts.ctx); err != nil {
		return nil, err
	}
	s, err := ts.m.store.Read(ts.ctx)
	if err != nil {
		return nil, err
	}
	tok := s.OAuth2Token()
	if tok == nil {
		return nil, apperrors.Wrapf(apperrors.ErrNoSession, "[TokenSource]")
	}
	return tok, nil
}
