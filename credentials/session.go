package credentials

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/cloudhub-session/users"
	"golang.org/x/oauth2"
)

// Storage keys, identical in every backend
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// Keys lists every key class a backend may hold for the session
var Keys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

// Session is the authoritative "who is logged in" state.
// The token pair is always written and cleared together.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *users.Profile
}

// IsAuthenticated is false for an empty session and for a partial one holding only
// one of the two tokens.
func (s Session) IsAuthenticated() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// IsEmpty reports whether no field of the session is set
func (s Session) IsEmpty() bool {
	return s.AccessToken == "" && s.RefreshToken == "" && s.User == nil
}

// Expiry reads the exp claim of the access token without verifying its signature.
// The zero time is returned when the token is not a JWT or carries no exp.
func (s Session) Expiry() time.Time {
	if s.AccessToken == "" {
		return time.Time{}
	}
	token, _, err := jwtlib.NewParser().ParseUnverified(s.AccessToken, jwtlib.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// OAuth2Token returns the session as a bearer token, or nil when unauthenticated
func (s Session) OAuth2Token() *oauth2.Token {
	if !s.IsAuthenticated() {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.Expiry(),
	}
}
