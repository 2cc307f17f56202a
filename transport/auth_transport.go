// Package transport holds the http.RoundTrippers every API request passes through:
// AuthTransport attaches the current bearer token and Guard collapses the session
// on an authorization rejection.
package transport

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/cloudhub-session/credentials"
	"github.com/rs/zerolog"
)

const HeaderRequestID = "X-Request-ID"

var _ http.RoundTripper = (*AuthTransport)(nil)

// AuthTransport reads the credential store on every request, never caching the token,
// so a pair rotated a moment ago is the one sent.
type AuthTransport struct {
	base   http.RoundTripper
	store  credentials.Store
	logger zerolog.Logger
}

// AuthOption defines a function type to modify the AuthTransport instance.
type AuthOption func(*AuthTransport)

func WithAuthLogger(logger zerolog.Logger) AuthOption {
	return func(t *AuthTransport) {
		t.logger = logger
	}
}

// NewAuthTransport wraps base, which defaults to http.DefaultTransport
func NewAuthTransport(store credentials.Store, base http.RoundTripper, options ...AuthOption) (*AuthTransport, error) {
	if store == nil {
		return nil, errors.New("[NewAuthTransport] credential store is required")
	}
	if base == nil {
		base = http.DefaultTransport
	}

	t := &AuthTransport{
		base:   base,
		store:  store,
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(t)
	}
	return t, nil
}

// RoundTrip sends req with the stored bearer token. Without a complete session, or when
// the store cannot be read, the request goes out unauthenticated and the server decides.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if out.Header.Get(HeaderRequestID) == "" {
		out.Header.Set(HeaderRequestID, uuid.NewString())
	}

	if out.Header.Get("Authorization") == "" {
		session, err := t.store.Read(req.Context())
		if err != nil {
			t.logger.Warn().Err(err).Str("path", req.URL.Path).Msg("credential store unreadable, sending request unauthenticated")
		} else if tok := session.OAuth2Token(); tok != nil {
			tok.SetAuthHeader(out)
		}
	}
	return t.base.RoundTrip(out)
}

// CloseIdleConnections forwards to the wrapped transport so http.Client.CloseIdleConnections works
func (t *AuthTransport) CloseIdleConnections() {
	closeIdle(t.base)
}

func closeIdle(rt http.RoundTripper) {
	if c, ok := rt.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}
