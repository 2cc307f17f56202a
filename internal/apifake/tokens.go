package apifake

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/cloudhub-session/authapi"
)

const issuer = "cloudhub-mock-api"

// issuePair creates an access token and a refresh token for the account. Callers hold s.mu.
func (s *Server) issuePair(acc *account) (authapi.TokenResponse, error) {
	now := s.nowFunc()
	jti := uuid.New().String()
	claims := jwtlib.MapClaims{
		"iss":   issuer,                      // The issuer of the token
		"sub":   acc.user.ID,                 // Users unique ID
		"email": acc.user.Email,              // Login identifier
		"role":  string(acc.user.Role),       // Platform role
		"iat":   now.Unix(),                  // Issued At
		"exp":   now.Add(s.accessTTL).Unix(), // Expiry
		"jti":   jti,                         // Unique token ID for revocation
		"type":  "access",
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return authapi.TokenResponse{}, fmt.Errorf("failed to sign JWT token: %w", err)
	}

	// Single refresh token per user
	email := strings.ToLower(acc.user.Email)
	for token, owner := range s.refreshTokens {
		if owner == email {
			delete(s.refreshTokens, token)
		}
	}
	refreshToken := randomToken(32)
	s.refreshTokens[refreshToken] = email
	s.accessTokens[jti] = email

	return authapi.TokenResponse{
		AccessToken:  signed,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int(s.accessTTL.Seconds()),
	}, nil
}

// bearerAccount validates the Authorization header and returns the account it belongs to
func (s *Server) bearerAccount(r *http.Request) (*account, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return nil, errors.New("missing bearer token")
	}

	parsed, err := jwtlib.Parse(raw, func(t *jwtlib.Token) (any, error) {
		return s.signingKey, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(issuer),
		jwtlib.WithTimeFunc(s.nowFunc),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims")
	}
	jti, _ := claims["jti"].(string)

	s.mu.RLock()
	defer s.mu.RUnlock()
	email, ok := s.accessTokens[jti]
	if !ok {
		return nil, errors.New("token revoked")
	}
	acc, ok := s.accounts[email]
	if !ok {
		return nil, errors.New("user not found")
	}
	return acc, nil
}
