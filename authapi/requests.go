package authapi

import (
	"net/url"
	"strconv"

	"github.com/jrsteele09/cloudhub-session/users"
)

// Endpoint paths relative to the API base URL
const (
	LoginPath                = "/auth/login"
	RegisterPath             = "/auth/register"
	RefreshPath              = "/auth/refresh"
	LogoutPath               = "/auth/logout"
	LogoutAllPath            = "/auth/logout-all"
	MePath                   = "/auth/me"
	PasswordResetPath        = "/auth/password-reset"
	PasswordResetConfirmPath = "/auth/password-reset/confirm"
	VerifyEmailPathPrefix    = "/auth/verify-email/"
)

// LoginRequest is the password grant. The API reads it as an OAuth2 password form,
// so it is sent form-encoded rather than as JSON.
type LoginRequest struct {
	// Username is an email address or the synthetic address built from a phone number.
	Username string `validate:"required"`
	Password string `validate:"required"`

	// RememberMe asks the server for a longer lived refresh token. Nil omits the field.
	RememberMe *bool
}

// Form encodes the request as application/x-www-form-urlencoded values
func (r LoginRequest) Form() url.Values {
	form := url.Values{}
	form.Set("username", r.Username)
	form.Set("password", r.Password)
	if r.RememberMe != nil {
		form.Set("remember_me", strconv.FormatBool(*r.RememberMe))
	}
	return form
}

// RefreshRequest is the body of /auth/refresh and /auth/logout
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RegisterRequest is the body of /auth/register.
// Organizers must also name their organization and its website.
type RegisterRequest struct {
	Email    string         `json:"email" validate:"required,email"`
	Password string         `json:"password" validate:"required,min=8"`
	FullName string         `json:"full_name" validate:"required"`
	Role     users.RoleType `json:"role" validate:"required,oneof=organizer participant judge mentor media admin"`
	Phone    string         `json:"phone,omitempty"`
	Country  string         `json:"country,omitempty"`
	Timezone string         `json:"timezone,omitempty"`
	Bio      string         `json:"bio,omitempty"`
	Avatar   string         `json:"avatar,omitempty"`
	Skills   []string       `json:"skills,omitempty"`

	OrganizationName    string `json:"organization_name,omitempty" validate:"required_if=Role organizer"`
	OrganizationWebsite string `json:"organization_website,omitempty" validate:"required_if=Role organizer"`
	OrganizationSize    string `json:"organization_size,omitempty"`
	Industry            string `json:"industry,omitempty"`

	// Both must be true; the API rejects the registration otherwise.
	AcceptedTerms         bool `json:"accepted_terms" validate:"required"`
	AcceptedPrivacyPolicy bool `json:"accepted_privacy_policy" validate:"required"`
}

// PasswordResetRequest starts the reset flow; the API mails a reset token
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetConfirmRequest completes the reset flow with the mailed token
type PasswordResetConfirmRequest struct {
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}
