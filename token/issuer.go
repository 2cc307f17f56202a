// Package token talks to the CloudHub auth endpoints. Every operation that produces
// credentials persists them through the credential store before returning, and every
// failure comes back as an *Error with a display ready message.
package token

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/cloudhub-session/authapi"
	"github.com/jrsteele09/cloudhub-session/credentials"
	apperrors "github.com/jrsteele09/cloudhub-session/internal/errors"
	"github.com/jrsteele09/cloudhub-session/internal/metrics"
	"github.com/jrsteele09/cloudhub-session/token/refresh"
	"github.com/jrsteele09/cloudhub-session/users"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jrsteele09/cloudhub-session/token"

// maxErrorBody bounds how much of an error response is read for its detail
const maxErrorBody = 64 << 10

// Doer sends HTTP requests. *http.Client satisfies it; production wiring passes the
// shared client so /auth/me and /auth/logout-all carry the bearer token.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Issuer struct {
	baseURL   string
	client    Doer
	store     credentials.Store
	refresher *refresh.Manager
	validator *validator.Validate
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// IssuerOption defines a function type to modify the Issuer instance.
type IssuerOption func(*Issuer)

func WithLogger(logger zerolog.Logger) IssuerOption {
	return func(i *Issuer) {
		i.logger = logger
	}
}

func WithMetrics(mtr *metrics.Metrics) IssuerOption {
	return func(i *Issuer) {
		i.metrics = mtr
	}
}

// WithTracer replaces the tracer resolved from the global otel provider
func WithTracer(tracer trace.Tracer) IssuerOption {
	return func(i *Issuer) {
		i.tracer = tracer
	}
}

func NewIssuer(baseURL string, client Doer, store credentials.Store, options ...IssuerOption) (*Issuer, error) {
	if baseURL == "" {
		return nil, apperrors.Wrapf(apperrors.ErrMissingBaseURL, "[NewIssuer]")
	}
	if client == nil {
		return nil, errors.New("[NewIssuer] http client is required")
	}
	if store == nil {
		return nil, errors.New("[NewIssuer] credential store is required")
	}

	i := &Issuer{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		client:    client,
		store:     store,
		validator: newValidator(),
		logger:    zerolog.Nop(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range options {
		opt(i)
	}

	refresher, err := refresh.NewManager(store, refresh.ExchangerFunc(i.exchange),
		refresh.WithLogger(i.logger),
		// Only an explicit rejection ends the session; the network being down does not.
		refresh.WithKeepSession(func(err error) bool { return KindOf(err) == KindUnknown }),
	)
	if err != nil {
		return nil, err
	}
	i.refresher = refresher
	return i, nil
}

// LoginOption adjusts a single login request
type LoginOption func(*authapi.LoginRequest)

// WithRememberMe asks the server for a long lived refresh token
func WithRememberMe(remember bool) LoginOption {
	return func(r *authapi.LoginRequest) {
		r.RememberMe = &remember
	}
}

// Login exchanges an identifier (an email, or a PhoneIdentifier) and password for a
// session, which is stored before Login returns. An Unauthorized rejection clears
// any previous session.
func (i *Issuer) Login(ctx context.Context, identifier, password string, options ...LoginOption) (session credentials.Session, err error) {
	req := authapi.LoginRequest{Username: strings.TrimSpace(identifier), Password: password}
	for _, opt := range options {
		opt(&req)
	}
	if err := i.validate(req); err != nil {
		return credentials.Session{}, err
	}

	ctx, span := i.tracer.Start(ctx, "token.Login")
	defer func() { endSpan(span, err) }()
	defer func() { i.metrics.Login(result(err)) }()

	var resp authapi.TokenResponse
	err = i.send(ctx, http.MethodPost, authapi.LoginPath,
		strings.NewReader(req.Form().Encode()), "application/x-www-form-urlencoded", &resp)
	if err != nil {
		if KindOf(err) == KindUnauthorized {
			i.clear(ctx, "login rejected")
		}
		return credentials.Session{}, err
	}
	return i.persist(ctx, resp)
}

// LoginWithPhone logs in with a phone number. Both parts are reduced to digits and
// composed with PhoneIdentifier.
func (i *Issuer) LoginWithPhone(ctx context.Context, countryCode, phone, password string, options ...LoginOption) (credentials.Session, error) {
	identifier, err := PhoneIdentifier(countryCode, phone)
	if err != nil {
		return credentials.Session{}, err
	}
	return i.Login(ctx, identifier, password, options...)
}

// Register creates an account. When the server answers with a token pair the session
// is stored as for Login. When it only returns the created user, the returned session
// carries that user and no tokens, and nothing is stored.
func (i *Issuer) Register(ctx context.Context, req authapi.RegisterRequest) (session credentials.Session, err error) {
	if err := i.validate(req); err != nil {
		return credentials.Session{}, err
	}

	ctx, span := i.tracer.Start(ctx, "token.Register", trace.WithAttributes(attribute.String("cloudhub.role", string(req.Role))))
	defer func() { endSpan(span, err) }()
	defer func() { i.metrics.Login(result(err)) }()

	body, err := json.Marshal(req)
	if err != nil {
		return credentials.Session{}, newError(KindUnknown, MsgUnexpected, err)
	}

	var raw json.RawMessage
	if err = i.send(ctx, http.MethodPost, authapi.RegisterPath, bytes.NewReader(body), "application/json", &raw); err != nil {
		return credentials.Session{}, err
	}

	var resp authapi.TokenResponse
	if err = json.Unmarshal(raw, &resp); err != nil {
		return credentials.Session{}, unexpectedResponse(http.StatusOK, "decode register response: %w", err)
	}
	if resp.HasTokenPair() {
		return i.persist(ctx, resp)
	}

	var created users.WireUser
	if err = json.Unmarshal(raw, &created); err != nil || created.ID == "" {
		return credentials.Session{}, unexpectedResponse(http.StatusOK, "register response has neither tokens nor user")
	}
	profile := created.ToProfile()
	return credentials.Session{User: &profile}, nil
}

// Refresh rotates the stored token pair. Concurrent calls share one exchange. A
// rejected refresh token clears the stored session; 5xx responses and network
// failures keep it so the call can be retried. A session cleared or replaced while
// the exchange ran is left as it is and reported as KindNoRefreshToken.
func (i *Issuer) Refresh(ctx context.Context) (session credentials.Session, err error) {
	ctx, span := i.tracer.Start(ctx, "token.Refresh")
	defer func() { endSpan(span, err) }()

	session, err = i.refresher.Refresh(ctx)
	switch {
	case errors.Is(err, refresh.ErrNoRefreshToken), errors.Is(err, refresh.ErrSessionChanged):
		err = &Error{Kind: KindNoRefreshToken, Message: MsgLoginAgain, Err: err}
	case err != nil && !errors.As(err, new(*Error)):
		err = newError(KindUnknown, MsgUnexpected, err)
	}
	i.metrics.Refresh(result(err))
	return session, err
}

func (i *Issuer) exchange(ctx context.Context, refreshToken string) (credentials.Session, error) {
	body, err := json.Marshal(authapi.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return credentials.Session{}, newError(KindUnknown, MsgUnexpected, err)
	}

	var resp authapi.TokenResponse
	if err := i.send(ctx, http.MethodPost, authapi.RefreshPath, bytes.NewReader(body), "application/json", &resp); err != nil {
		var e *Error
		if errors.As(err, &e) && e.Kind == KindUnauthorized {
			e.Message = MsgLoginAgain
		}
		return credentials.Session{}, err
	}
	if !resp.HasTokenPair() {
		return credentials.Session{}, &Error{Kind: KindUnauthorized, Message: MsgLoginAgain, Status: http.StatusOK,
			Err: errors.New("refresh response is missing a token")}
	}
	return credentials.Session{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken, User: resp.Profile()}, nil
}

// Logout tells the server to revoke the stored refresh token, then clears the local
// session whatever the server said. Network failures are logged, not returned.
func (i *Issuer) Logout(ctx context.Context) (err error) {
	ctx, span := i.tracer.Start(ctx, "token.Logout")
	defer func() { endSpan(span, err) }()

	current, readErr := i.store.Read(ctx)
	if readErr != nil {
		i.logger.Warn().Err(readErr).Msg("could not read session before logout")
	}
	if current.RefreshToken != "" {
		body, _ := json.Marshal(authapi.RefreshRequest{RefreshToken: current.RefreshToken})
		if netErr := i.send(ctx, http.MethodPost, authapi.LogoutPath, bytes.NewReader(body), "application/json", nil); netErr != nil {
			i.logger.Warn().Err(netErr).Msg("logout request failed, clearing local session anyway")
		}
	}
	return i.store.Clear(context.WithoutCancel(ctx))
}

// LogoutAll revokes every session of the user server side. The local session is
// cleared even when the request fails; the request error is still returned.
func (i *Issuer) LogoutAll(ctx context.Context) (err error) {
	ctx, span := i.tracer.Start(ctx, "token.LogoutAll")
	defer func() { endSpan(span, err) }()

	defer func() {
		if clearErr := i.store.Clear(context.WithoutCancel(ctx)); clearErr != nil {
			err = errors.Join(err, clearErr)
		}
	}()
	return i.send(ctx, http.MethodPost, authapi.LogoutAllPath, nil, "", nil)
}

// Me fetches the current user and replaces the cached profile in every backend
func (i *Issuer) Me(ctx context.Context) (profile *users.Profile, err error) {
	ctx, span := i.tracer.Start(ctx, "token.Me")
	defer func() { endSpan(span, err) }()

	var wire users.WireUser
	if err = i.send(ctx, http.MethodGet, authapi.MePath, nil, "", &wire); err != nil {
		return nil, err
	}
	p := wire.ToProfile()
	if err = i.store.ReplaceUser(ctx, &p); err != nil {
		return nil, newError(KindUnknown, MsgUnexpected, err)
	}
	return &p, nil
}

func (i *Issuer) RequestPasswordReset(ctx context.Context, email string) (err error) {
	req := authapi.PasswordResetRequest{Email: strings.TrimSpace(email)}
	if err := i.validate(req); err != nil {
		return err
	}

	ctx, span := i.tracer.Start(ctx, "token.RequestPasswordReset")
	defer func() { endSpan(span, err) }()

	body, _ := json.Marshal(req)
	return i.send(ctx, http.MethodPost, authapi.PasswordResetPath, bytes.NewReader(body), "application/json", nil)
}

func (i *Issuer) ConfirmPasswordReset(ctx context.Context, resetToken, newPassword, confirmPassword string) (err error) {
	req := authapi.PasswordResetConfirmRequest{Token: resetToken, NewPassword: newPassword, ConfirmPassword: confirmPassword}
	if err := i.validate(req); err != nil {
		return err
	}

	ctx, span := i.tracer.Start(ctx, "token.ConfirmPasswordReset")
	defer func() { endSpan(span, err) }()

	body, _ := json.Marshal(req)
	return i.send(ctx, http.MethodPost, authapi.PasswordResetConfirmPath, bytes.NewReader(body), "application/json", nil)
}

func (i *Issuer) VerifyEmail(ctx context.Context, verificationToken string) (err error) {
	verificationToken = strings.TrimSpace(verificationToken)
	if verificationToken == "" {
		return &Error{Kind: KindValidation, Message: "verification token is required", Err: ErrValidation}
	}

	ctx, span := i.tracer.Start(ctx, "token.VerifyEmail")
	defer func() { endSpan(span, err) }()

	return i.send(ctx, http.MethodPost, authapi.VerifyEmailPathPrefix+url.PathEscape(verificationToken), nil, "", nil)
}

// persist writes a token response as the whole session
func (i *Issuer) persist(ctx context.Context, resp authapi.TokenResponse) (credentials.Session, error) {
	if !resp.HasTokenPair() {
		return credentials.Session{}, unexpectedResponse(http.StatusOK, "token response is missing a token")
	}
	session := credentials.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         resp.Profile(),
	}
	if err := i.store.Write(ctx, session); err != nil {
		return credentials.Session{}, newError(KindUnknown, MsgUnexpected, err)
	}
	return session, nil
}

func (i *Issuer) clear(ctx context.Context, reason string) {
	if err := i.store.Clear(context.WithoutCancel(ctx)); err != nil {
		i.logger.Warn().Err(err).Str("reason", reason).Msg("failed to clear session")
	}
}

// send performs one request and decodes a 2xx body into out (when out is non-nil).
// Every failure is returned as an *Error.
func (i *Issuer) send(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, i.baseURL+path, body)
	if err != nil {
		return newError(KindUnknown, MsgUnexpected, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return newError(KindUnknown, MsgUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return classify(path, resp.StatusCode, raw)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return unexpectedResponse(resp.StatusCode, "decode %s %s: %w", method, path, err)
	}
	return nil
}

// classify turns a non-2xx response into an *Error
func classify(path string, status int, body []byte) *Error {
	payload, ok := authapi.ParseErrorPayload(body)

	e := &Error{Status: status, Message: payload.Message, Fields: payload.Fields}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindUnauthorized
		e.Err = ErrUnauthorized
		if !ok {
			e.Message = MsgLoginAgain
			if path == authapi.LoginPath {
				e.Message = MsgInvalidCredentials
			}
		}
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		e.Kind = KindFieldValidation
		e.Err = ErrFieldValidation
		if !ok {
			e.Message = MsgUnexpected
		}
	default:
		e.Kind = KindUnknown
		e.Err = &httpStatusError{status: status}
		if !ok {
			e.Message = MsgUnexpected
		}
	}
	return e
}

type httpStatusError struct {
	status int
}

func (h *httpStatusError) Error() string {
	return "unexpected status " + http.StatusText(h.status)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("cloudhub.error_kind", KindOf(err).String()))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func result(err error) string {
	if err == nil {
		return "success"
	}
	return KindOf(err).String()
}
