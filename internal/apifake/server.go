// Package apifake is an in-memory stand-in for the CloudHub auth API. It issues
// HS256 access tokens and rotating opaque refresh tokens, and backs the package
// tests as well as `cloudhub mock-api` for local development.
package apifake

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/cloudhub-session/authapi"
	"github.com/jrsteele09/cloudhub-session/users"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Protected resource that only answers with a valid bearer token
const HackathonsPath = "/hackathons"

type account struct {
	passwordHash []byte
	user         users.WireUser
}

type failure struct {
	status int
	body   string
}

type Server struct {
	signingKey       []byte
	accessTTL        time.Duration
	registerUserOnly bool
	passwordCost     int
	nowFunc          func() time.Time
	logger           zerolog.Logger

	mu            sync.RWMutex
	accounts      map[string]*account // email -> account
	refreshTokens map[string]string   // refresh token -> email
	accessTokens  map[string]string   // jti -> email
	resetTokens   map[string]string   // reset token -> email
	verifyTokens  map[string]string   // verification token -> email
	failures      map[string]failure  // path -> forced response
	calls         map[string]int      // path -> request count

	mux *http.ServeMux
}

// Option defines a function type to modify the Server instance.
type Option func(*Server)

func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

// WithRegisterUserOnly makes /auth/register answer with the created user and no tokens
func WithRegisterUserOnly() Option {
	return func(s *Server) {
		s.registerUserOnly = true
	}
}

// WithPasswordCost sets the bcrypt cost of stored passwords. Defaults to bcrypt.MinCost.
func WithPasswordCost(cost int) Option {
	return func(s *Server) {
		s.passwordCost = cost
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(options ...Option) *Server {
	s := &Server{
		signingKey:    []byte(randomToken(32)),
		accessTTL:     30 * time.Minute,
		passwordCost:  bcrypt.MinCost,
		nowFunc:       time.Now,
		logger:        zerolog.Nop(),
		accounts:      make(map[string]*account),
		refreshTokens: make(map[string]string),
		accessTokens:  make(map[string]string),
		resetTokens:   make(map[string]string),
		verifyTokens:  make(map[string]string),
		failures:      make(map[string]failure),
		calls:         make(map[string]int),
		mux:           http.NewServeMux(),
	}
	for _, opt := range options {
		opt(s)
	}
	s.initRoutes()
	return s
}

func (s *Server) initRoutes() {
	s.mux.HandleFunc("POST "+authapi.LoginPath, s.LoginHandler())
	s.mux.HandleFunc("POST "+authapi.RegisterPath, s.RegisterHandler())
	s.mux.HandleFunc("POST "+authapi.RefreshPath, s.RefreshHandler())
	s.mux.HandleFunc("POST "+authapi.LogoutPath, s.LogoutHandler())
	s.mux.HandleFunc("POST "+authapi.LogoutAllPath, s.RequireBearer(s.LogoutAllHandler()))
	s.mux.HandleFunc("GET "+authapi.MePath, s.RequireBearer(s.MeHandler()))
	s.mux.HandleFunc("POST "+authapi.PasswordResetPath, s.PasswordResetHandler())
	s.mux.HandleFunc("POST "+authapi.PasswordResetConfirmPath, s.PasswordResetConfirmHandler())
	s.mux.HandleFunc("POST "+authapi.VerifyEmailPathPrefix+"{token}", s.VerifyEmailHandler())
	s.mux.HandleFunc("GET "+HackathonsPath, s.RequireBearer(s.HackathonsHandler()))
}

// ServeHTTP counts the request, applies any forced failure for its path and then routes it
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls[r.URL.Path]++
	f, forced := s.failures[r.URL.Path]
	s.mu.Unlock()

	s.logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("mock api request")

	if forced {
		w.Header().Set("Content-Type", contentTypeJSON)
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
		return
	}
	s.mux.ServeHTTP(w, r)
}

// AddAccount registers a user that can log in with password, replacing any account with
// the same email. A missing ID is generated. It panics if password cannot be hashed,
// which only happens past bcrypt's 72 byte limit.
func (s *Server) AddAccount(password string, user users.WireUser) users.WireUser {
	hash, err := s.hashPassword(password)
	if err != nil {
		panic("apifake: " + err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Status == "" {
		user.Status = "active"
	}
	s.accounts[strings.ToLower(user.Email)] = &account{passwordHash: hash, user: user}
	return user
}

// FailWith forces every request to path to answer status with body until ClearFailures
func (s *Server) FailWith(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = failure{status: status, body: body}
}

func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]failure)
}

// Calls returns how many requests reached path
func (s *Server) Calls(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[path]
}

// RevokeAccessTokens invalidates every access token issued so far; refresh tokens survive
func (s *Server) RevokeAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTokens = make(map[string]string)
}

// RefreshTokenValid reports whether token can still be exchanged
func (s *Server) RefreshTokenValid(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.refreshTokens[token]
	return ok
}

// ResetToken returns the last password reset token mailed to email
func (s *Server) ResetToken(email string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for token, owner := range s.resetTokens {
		if owner == strings.ToLower(email) {
			return token
		}
	}
	return ""
}

// VerificationToken returns the pending email verification token for email
func (s *Server) VerificationToken(email string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for token, owner := range s.verifyTokens {
		if owner == strings.ToLower(email) {
			return token
		}
	}
	return ""
}

// User returns the current server-side copy of the account
func (s *Server) User(email string) (users.WireUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[strings.ToLower(email)]
	if !ok {
		return users.WireUser{}, false
	}
	return acc.user, true
}

func randomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

func (s *Server) hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
}

func (a *account) checkPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) == nil
}
