// Package server renders the few pages that need a session (login, dashboard, logout)
// and gates every page on the session cookie with RouteGuard.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/jrsteele09/cloudhub-session/credentials"
	"github.com/jrsteele09/cloudhub-session/internal/config"
	"github.com/jrsteele09/cloudhub-session/token"
	"github.com/jrsteele09/cloudhub-session/users"
	"github.com/rs/zerolog"
)

// SessionService is the part of sessions.Manager the pages need
type SessionService interface {
	Login(ctx context.Context, identifier, password string, options ...token.LoginOption) (*users.Profile, error)
	Logout(ctx context.Context) error
	Session(ctx context.Context) (credentials.Session, error)
}

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	sessions  SessionService
	templates map[string]*template.Template
	logger    zerolog.Logger
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(cfg config.Config, sessions SessionService, options ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if sessions == nil {
		return nil, errors.New("[Server New] session service is required")
	}

	s := &Server{
		env:       cfg.GetEnv(),
		mux:       http.NewServeMux(),
		config:    cfg,
		sessions:  sessions,
		logger:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("[Server New] %w", err)
	}
	s.templates = templates

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	s.logger.Info().Msgf("[%-19s] %s", displayMethod, path)
}
