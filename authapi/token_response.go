package authapi

import (
	"github.com/jrsteele09/cloudhub-session/users"
)

// TokenResponse represents the body returned by /auth/login, /auth/refresh and
// (depending on the server build) /auth/register.
type TokenResponse struct {
	// AccessToken is the short-lived bearer token.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken string `json:"access_token"`

	// RefreshToken is exchanged at /auth/refresh for a new pair.
	// Rotates on each use: the previous value stops being valid.
	RefreshToken string `json:"refresh_token"`

	// TokenType indicates how to use the access token (always "bearer").
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Note: This is a hint - actual expiration is in the JWT's "exp" claim
	ExpiresIn int `json:"expires_in,omitempty"`

	// User is the authenticated user. Login and register include it,
	// refresh responses usually do not.
	User *users.WireUser `json:"user,omitempty"`
}

// HasTokenPair reports whether both tokens were issued
func (t TokenResponse) HasTokenPair() bool {
	return t.AccessToken != "" && t.RefreshToken != ""
}

// Profile converts the embedded wire user, or returns nil when none was sent
func (t TokenResponse) Profile() *users.Profile {
	if t.User == nil {
		return nil
	}
	p := t.User.ToProfile()
	return &p
}
