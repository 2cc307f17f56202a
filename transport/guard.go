package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/cloudhub-session/authapi"
	"github.com/jrsteele09/cloudhub-session/credentials"
	"github.com/jrsteele09/cloudhub-session/internal/metrics"
	"github.com/rs/zerolog"
)

var _ http.RoundTripper = (*Guard)(nil)

// Navigator performs the full navigation to the login entry point
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) {
	f(path)
}

// InvalidationEvent describes the rejected request that ended the session
type InvalidationEvent struct {
	At     time.Time
	Method string
	Path   string
	Status int
}

// Credential endpoints answer 401 for a bad password or a dead refresh token. Those
// failures are reported by the issuer and never trip the guard.
var (
	exemptEndpoints = []string{
		authapi.LoginPath,
		authapi.RegisterPath,
		authapi.RefreshPath,
		authapi.LogoutPath,
		authapi.LogoutAllPath,
	}
	exemptPrefixes = []string{
		authapi.PasswordResetPath,
		authapi.VerifyEmailPathPrefix,
	}
	armingEndpoints = []string{
		authapi.LoginPath,
		authapi.RegisterPath,
	}
)

// Guard is a one-shot latch between Authenticated and Unauthenticated. The first 401
// from an ordinary endpoint clears the store, then navigates to the login path, then
// notifies subscribers. It never refreshes. Only a successful login or registration
// observed through the guard, or an explicit Arm, re-arms it.
type Guard struct {
	base      http.RoundTripper
	store     credentials.Store
	navigator Navigator
	loginPath string
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	nowFunc   func() time.Time

	tripMu  sync.Mutex
	tripped atomic.Bool

	subMu       sync.Mutex
	subscribers map[int]func(InvalidationEvent)
	nextSubID   int
}

// GuardOption defines a function type to modify the Guard instance.
type GuardOption func(*Guard)

// WithBase sets the wrapped transport. Defaults to http.DefaultTransport.
func WithBase(base http.RoundTripper) GuardOption {
	return func(g *Guard) {
		g.base = base
	}
}

func WithLoginPath(path string) GuardOption {
	return func(g *Guard) {
		g.loginPath = path
	}
}

func WithGuardLogger(logger zerolog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

func WithGuardMetrics(mtr *metrics.Metrics) GuardOption {
	return func(g *Guard) {
		g.metrics = mtr
	}
}

func NewGuard(store credentials.Store, navigator Navigator, options ...GuardOption) (*Guard, error) {
	if store == nil {
		return nil, errors.New("[NewGuard] credential store is required")
	}
	if navigator == nil {
		return nil, errors.New("[NewGuard] navigator is required")
	}

	g := &Guard{
		base:        http.DefaultTransport,
		store:       store,
		navigator:   navigator,
		loginPath:   "/login",
		logger:      zerolog.Nop(),
		nowFunc:     time.Now,
		subscribers: make(map[int]func(InvalidationEvent)),
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

func (g *Guard) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := g.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized && !isExempt(req.URL.Path):
		g.trip(req.Context(), bearerToken(req), InvalidationEvent{
			At:     g.nowFunc(),
			Method: req.Method,
			Path:   req.URL.Path,
			Status: resp.StatusCode,
		})
	case resp.StatusCode >= 200 && resp.StatusCode <= 299 && req.Method == http.MethodPost && matchesEndpoint(req.URL.Path, armingEndpoints):
		g.Arm()
	}
	return resp, nil
}

func (g *Guard) CloseIdleConnections() {
	closeIdle(g.base)
}

// Arm returns the guard to the Authenticated state
func (g *Guard) Arm() {
	g.tripped.Store(false)
}

// Tripped reports whether the guard has collapsed the session and not been re-armed
func (g *Guard) Tripped() bool {
	return g.tripped.Load()
}

// OnInvalidated registers fn to run after each trip. The returned func unregisters it.
func (g *Guard) OnInvalidated(fn func(InvalidationEvent)) (unsubscribe func()) {
	g.subMu.Lock()
	defer g.subMu.Unlock()

	id := g.nextSubID
	g.nextSubID++
	g.subscribers[id] = fn
	return func() {
		g.subMu.Lock()
		defer g.subMu.Unlock()
		delete(g.subscribers, id)
	}
}

// trip runs clear, navigate and notify exactly once per armed period. Concurrent
// rejections wait for the winning trip to finish, so none of them returns while the
// store still holds the dead session. A rejection of a token that is no longer the
// stored one is late and leaves the newer session alone.
func (g *Guard) trip(ctx context.Context, rejected string, ev InvalidationEvent) {
	g.tripMu.Lock()
	defer g.tripMu.Unlock()

	if g.tripped.Load() {
		return
	}
	if rejected != "" {
		if current, err := g.store.Read(context.WithoutCancel(ctx)); err == nil && current.AccessToken != "" && current.AccessToken != rejected {
			g.logger.Debug().Str("method", ev.Method).Str("path", ev.Path).Msg("ignoring rejection of a replaced access token")
			return
		}
	}
	g.tripped.Store(true)

	if err := g.store.Clear(context.WithoutCancel(ctx)); err != nil {
		g.logger.Warn().Err(err).Msg("failed to clear session after authorization rejection")
	}
	g.navigator.Navigate(g.loginPath)
	g.metrics.GuardTrip()
	g.logger.Info().Str("method", ev.Method).Str("path", ev.Path).Msg("session invalidated by authorization rejection")

	g.subMu.Lock()
	subs := make([]func(InvalidationEvent), 0, len(g.subscribers))
	for _, fn := range g.subscribers {
		subs = append(subs, fn)
	}
	g.subMu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

func bearerToken(req *http.Request) string {
	scheme, tok, ok := strings.Cut(req.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

func isExempt(path string) bool {
	if matchesEndpoint(path, exemptEndpoints) {
		return true
	}
	for _, prefix := range exemptPrefixes {
		if strings.Contains(path, prefix) {
			return true
		}
	}
	return false
}

// matchesEndpoint compares by suffix so the API base path ("/api") does not matter
func matchesEndpoint(path string, endpoints []string) bool {
	path = strings.TrimSuffix(path, "/")
	for _, e := range endpoints {
		if strings.HasSuffix(path, e) {
			return true
		}
	}
	return false
}
