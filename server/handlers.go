package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/cloudhub-session/credentials"
	"github.com/jrsteele09/cloudhub-session/token"
	"github.com/jrsteele09/cloudhub-session/users"
)

type IndexPageData struct {
	AppName       string
	LoggedIn      bool
	LoginPath     string
	DashboardPath string
}

type LoginPageData struct {
	AppName    string
	LoginPath  string
	Error      string
	Identifier string // Preserved on error
}

type DashboardPageData struct {
	AppName string
	User    *users.Profile
}

func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, indexTemplate, IndexPageData{
			AppName:       s.config.GetAppName(),
			LoggedIn:      hasSessionCookie(r),
			LoginPath:     s.config.GetLoginPath(),
			DashboardPath: s.config.GetDashboardPath(),
		})
	}
}

// LoginPageHandler displays the login form (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, loginTemplate, LoginPageData{
			AppName:   s.config.GetAppName(),
			LoginPath: s.config.GetLoginPath(),
		})
	}
}

// LoginSubmissionHandler logs in through the session manager and mirrors the new
// tokens into the browser's cookies
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		identifier := strings.TrimSpace(r.PostForm.Get("identifier"))
		password := r.PostForm.Get("password")
		rememberMe := r.PostForm.Get("remember_me") == "on"

		_, err := s.sessions.Login(r.Context(), identifier, password, token.WithRememberMe(rememberMe))
		if err != nil {
			s.logger.Info().Err(err).Str("kind", token.KindOf(err).String()).Msg("login rejected")
			s.render(w, loginFailureStatus(err), loginTemplate, LoginPageData{
				AppName:    s.config.GetAppName(),
				LoginPath:  s.config.GetLoginPath(),
				Error:      token.UserMessage(err),
				Identifier: identifier,
			})
			return
		}

		session, err := s.sessions.Session(r.Context())
		if err != nil || !session.IsAuthenticated() {
			s.logger.Err(err).Msg("session missing right after login")
			http.Error(w, "Could not start session", http.StatusInternalServerError)
			return
		}
		s.setSessionCookies(w, session)
		http.Redirect(w, r, s.config.GetDashboardPath(), http.StatusSeeOther)
	}
}

// DashboardHandler shows the cached user. A cookie without a stored session (the guard
// ended it, or another process logged out) is expired and sent back to login.
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := s.sessions.Session(r.Context())
		if err != nil || !session.IsAuthenticated() {
			expireSessionCookies(w)
			http.Redirect(w, r, s.config.GetLoginPath(), http.StatusSeeOther)
			return
		}
		s.render(w, http.StatusOK, dashboardTemplate, DashboardPageData{
			AppName: s.config.GetAppName(),
			User:    session.User,
		})
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.sessions.Logout(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("logout failed")
		}
		expireSessionCookies(w)
		http.Redirect(w, r, s.config.GetLoginPath(), http.StatusSeeOther)
	}
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if err := s.templates[name].Execute(w, data); err != nil {
		s.logger.Err(err).Str("template", name).Msg("Failed to render template")
	}
}

func (s *Server) setSessionCookies(w http.ResponseWriter, session credentials.Session) {
	for name, value := range map[string]string{
		credentials.KeyAccessToken:  session.AccessToken,
		credentials.KeyRefreshToken: session.RefreshToken,
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			MaxAge:   int(s.config.GetCookieMaxAge().Seconds()),
			Secure:   s.config.GetCookieSecure(),
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func loginFailureStatus(err error) int {
	switch token.KindOf(err) {
	case token.KindUnauthorized:
		return http.StatusUnauthorized
	case token.KindValidation, token.KindFieldValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
