package authapi_test

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/cloudhub-session/authapi"
	"github.com/jrsteele09/cloudhub-session/users"
	"github.com/stretchr/testify/require"
)

func TestParseErrorPayload(t *testing.T) {
	t.Run("plain detail", func(t *testing.T) {
		p, ok := authapi.ParseErrorPayload([]byte(`{"detail":"Incorrect email or password"}`))
		require.True(t, ok)
		require.Equal(t, "Incorrect email or password", p.Message)
		require.Empty(t, p.Fields)
	})

	t.Run("field errors", func(t *testing.T) {
		body := `{"detail":[
			{"loc":["body","email"],"msg":"value is not a valid email address","type":"value_error.email"},
			{"loc":["body","password"],"msg":"field required","type":"value_error.missing"}
		]}`
		p, ok := authapi.ParseErrorPayload([]byte(body))
		require.True(t, ok)
		require.Equal(t, "value is not a valid email address; field required", p.Message)
		require.Len(t, p.Fields, 2)
		require.Equal(t, "email", p.Fields[0].Field())
	})

	t.Run("numeric loc", func(t *testing.T) {
		p, ok := authapi.ParseErrorPayload([]byte(`{"detail":[{"loc":["body",0],"msg":"bad","type":"x"}]}`))
		require.True(t, ok)
		require.Equal(t, "0", p.Fields[0].Field())
	})

	t.Run("unknown shapes", func(t *testing.T) {
		for _, body := range []string{``, `not json`, `{}`, `{"detail":""}`, `{"detail":[]}`, `{"detail":{"a":1}}`, `<html>502</html>`} {
			_, ok := authapi.ParseErrorPayload([]byte(body))
			require.False(t, ok, body)
		}
	})
}

func TestLoginRequest_Form(t *testing.T) {
	form := authapi.LoginRequest{Username: "john@example.com", Password: "secret"}.Form()
	require.Equal(t, "password=secret&username=john%40example.com", form.Encode())

	remember := true
	form = authapi.LoginRequest{Username: "a", Password: "b", RememberMe: &remember}.Form()
	require.Equal(t, "true", form.Get("remember_me"))
}

func TestTokenResponse(t *testing.T) {
	var resp authapi.TokenResponse
	require.NoError(t, json.Unmarshal([]byte(`{
		"access_token":"A1","refresh_token":"R1","token_type":"bearer","expires_in":1800,
		"user":{"id":"1","email":"john@example.com","name":"John Doe"}}`), &resp))

	require.True(t, resp.HasTokenPair())
	profile := resp.Profile()
	require.NotNil(t, profile)
	require.Equal(t, "John Doe", profile.FullName)

	require.Nil(t, authapi.TokenResponse{AccessToken: "A2"}.Profile())
	require.False(t, authapi.TokenResponse{AccessToken: "A2"}.HasTokenPair())
}

func TestRegisterRequest_Validation(t *testing.T) {
	v := validator.New(validator.WithRequiredStructEnabled())
	valid := authapi.RegisterRequest{
		Email:                 "jane@example.com",
		Password:              "longenough",
		FullName:              "Jane Roe",
		Role:                  users.RoleParticipant,
		AcceptedTerms:         true,
		AcceptedPrivacyPolicy: true,
	}
	require.NoError(t, v.Struct(valid))

	tests := []struct {
		name   string
		mutate func(r *authapi.RegisterRequest)
	}{
		{"terms not accepted", func(r *authapi.RegisterRequest) { r.AcceptedTerms = false }},
		{"privacy not accepted", func(r *authapi.RegisterRequest) { r.AcceptedPrivacyPolicy = false }},
		{"bad email", func(r *authapi.RegisterRequest) { r.Email = "nope" }},
		{"short password", func(r *authapi.RegisterRequest) { r.Password = "short" }},
		{"unknown role", func(r *authapi.RegisterRequest) { r.Role = "pirate" }},
		{"organizer without organization", func(r *authapi.RegisterRequest) { r.Role = users.RoleOrganizer }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			require.Error(t, v.Struct(r))
		})
	}

	t.Run("organizer with organization", func(t *testing.T) {
		r := valid
		r.Role = users.RoleOrganizer
		r.OrganizationName = "Acme"
		r.OrganizationWebsite = "https://acme.example"
		require.NoError(t, v.Struct(r))
	})
}

func TestPasswordResetConfirm_Validation(t *testing.T) {
	v := validator.New()
	require.NoError(t, v.Struct(authapi.PasswordResetConfirmRequest{Token: "t", NewPassword: "password1", ConfirmPassword: "password1"}))
	require.Error(t, v.Struct(authapi.PasswordResetConfirmRequest{Token: "t", NewPassword: "password1", ConfirmPassword: "password2"}))
}
