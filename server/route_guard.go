package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/cloudhub-session/credentials"
)

// PublicPaths need no session cookie. "/" only matches itself; the others also cover
// their sub paths (e.g. /verify-email/{token}).
var PublicPaths = []string{"/", RouteLogin, RouteRegister, RouteForgotPassword, RouteVerifyEmail}

// RouteGuard gates server-rendered pages on the access_token cookie. It never talks to
// the API: a stale cookie gets through here and is caught by the page handler.
func RouteGuard(loginPath, dashboardPath string) func(http.HandlerFunc) http.HandlerFunc {
	public := append([]string{loginPath}, PublicPaths...)

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			loggedIn := hasSessionCookie(r)
			path := r.URL.Path

			if isPublicPath(public, path) {
				if loggedIn && (path == loginPath || path == RouteRegister) {
					http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
					return
				}
				next(w, r)
				return
			}

			if !loggedIn {
				expireSessionCookies(w)
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			next(w, r)
		}
	}
}

func isPublicPath(public []string, path string) bool {
	for _, p := range public {
		if path == p {
			return true
		}
		if p != "/" && strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func hasSessionCookie(r *http.Request) bool {
	c, err := r.Cookie(credentials.KeyAccessToken)
	return err == nil && c.Value != ""
}

func expireSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{credentials.KeyAccessToken, credentials.KeyRefreshToken} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}
}
