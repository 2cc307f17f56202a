package apifake

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/cloudhub-session/authapi"
	"github.com/jrsteele09/cloudhub-session/users"
)

const contentTypeJSON = "application/json; charset=utf-8"

type accountKey struct{}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeFieldErrors(w http.ResponseWriter, fields []authapi.FieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": fields})
}

func missing(field string) authapi.FieldError {
	return authapi.FieldError{Loc: []any{"body", field}, Msg: "field required", Type: "value_error.missing"}
}

// RequireBearer rejects requests without a valid, unrevoked access token
func (s *Server) RequireBearer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acc, err := s.bearerAccount(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), accountKey{}, acc)))
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeDetail(w, http.StatusBadRequest, "Malformed form body")
			return
		}
		username := strings.ToLower(strings.TrimSpace(r.PostForm.Get("username")))
		password := r.PostForm.Get("password")

		var fields []authapi.FieldError
		if username == "" {
			fields = append(fields, missing("username"))
		}
		if password == "" {
			fields = append(fields, missing("password"))
		}
		if len(fields) > 0 {
			writeFieldErrors(w, fields)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		acc, ok := s.accounts[username]
		if !ok || !acc.checkPassword(password) {
			writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
			return
		}
		resp, err := s.issuePair(acc)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, "Could not issue tokens")
			return
		}
		user := acc.user
		resp.User = &user
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authapi.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "Malformed JSON body")
			return
		}

		var fields []authapi.FieldError
		if req.Email == "" {
			fields = append(fields, missing("email"))
		}
		if len(req.Password) < 8 {
			fields = append(fields, authapi.FieldError{Loc: []any{"body", "password"}, Msg: "Password must be at least 8 characters long", Type: "value_error"})
		}
		if !req.AcceptedTerms {
			fields = append(fields, authapi.FieldError{Loc: []any{"body", "accepted_terms"}, Msg: "Terms and conditions must be accepted", Type: "value_error"})
		}
		if !req.AcceptedPrivacyPolicy {
			fields = append(fields, authapi.FieldError{Loc: []any{"body", "accepted_privacy_policy"}, Msg: "Privacy policy must be accepted", Type: "value_error"})
		}
		if len(fields) > 0 {
			writeFieldErrors(w, fields)
			return
		}

		hash, err := s.hashPassword(req.Password)
		if err != nil {
			writeFieldErrors(w, []authapi.FieldError{{Loc: []any{"body", "password"}, Msg: "Password is too long", Type: "value_error"}})
			return
		}

		email := strings.ToLower(req.Email)
		s.mu.Lock()
		defer s.mu.Unlock()

		if _, exists := s.accounts[email]; exists {
			writeDetail(w, http.StatusBadRequest, "Email already registered")
			return
		}

		acc := &account{
			passwordHash: hash,
			user: users.WireUser{
				ID:               uuid.New().String(),
				Email:            req.Email,
				FullName:         req.FullName,
				Role:             req.Role,
				Status:           "active",
				Phone:            req.Phone,
				Avatar:           req.Avatar,
				OrganizationName: req.OrganizationName,
			},
		}
		s.accounts[email] = acc
		verifyToken := randomToken(16)
		s.verifyTokens[verifyToken] = email
		s.logger.Info().Str("email", email).Str("token", verifyToken).Msg("verification mail")

		user := acc.user
		if s.registerUserOnly {
			writeJSON(w, http.StatusCreated, user)
			return
		}
		resp, err := s.issuePair(acc)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, "Could not issue tokens")
			return
		}
		resp.User = &user
		writeJSON(w, http.StatusCreated, resp)
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authapi.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			writeFieldErrors(w, []authapi.FieldError{missing("refresh_token")})
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		email, ok := s.refreshTokens[req.RefreshToken]
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		acc, ok := s.accounts[email]
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "User not found")
			return
		}
		// issuePair rotates: the presented token stops working
		resp, err := s.issuePair(acc)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, "Could not issue tokens")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authapi.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		s.mu.Lock()
		delete(s.refreshTokens, req.RefreshToken)
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
	}
}

func (s *Server) LogoutAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acc := r.Context().Value(accountKey{}).(*account)
		email := strings.ToLower(acc.user.Email)

		s.mu.Lock()
		for token, owner := range s.refreshTokens {
			if owner == email {
				delete(s.refreshTokens, token)
			}
		}
		for jti, owner := range s.accessTokens {
			if owner == email {
				delete(s.accessTokens, jti)
			}
		}
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out from all devices"})
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acc := r.Context().Value(accountKey{}).(*account)
		s.mu.RLock()
		user := acc.user
		s.mu.RUnlock()
		writeJSON(w, http.StatusOK, user)
	}
}

func (s *Server) PasswordResetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authapi.PasswordResetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
			writeFieldErrors(w, []authapi.FieldError{missing("email")})
			return
		}

		email := strings.ToLower(req.Email)
		s.mu.Lock()
		if _, ok := s.accounts[email]; ok {
			resetToken := randomToken(16)
			s.resetTokens[resetToken] = email
			s.logger.Info().Str("email", email).Str("token", resetToken).Msg("password reset mail")
		}
		s.mu.Unlock()

		// Same answer for unknown addresses so accounts cannot be enumerated
		writeJSON(w, http.StatusOK, map[string]string{"message": "If the email exists, a reset link has been sent"})
	}
}

func (s *Server) PasswordResetConfirmHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authapi.PasswordResetConfirmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "Malformed JSON body")
			return
		}
		if req.NewPassword != req.ConfirmPassword {
			writeDetail(w, http.StatusBadRequest, "Passwords do not match")
			return
		}
		hash, err := s.hashPassword(req.NewPassword)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "Password is too long")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		email, ok := s.resetTokens[req.Token]
		if !ok {
			writeDetail(w, http.StatusBadRequest, "Invalid or expired reset token")
			return
		}
		delete(s.resetTokens, req.Token)
		s.accounts[email].passwordHash = hash
		writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset"})
	}
}

func (s *Server) VerifyEmailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.PathValue("token")

		s.mu.Lock()
		defer s.mu.Unlock()

		email, ok := s.verifyTokens[token]
		if !ok {
			writeDetail(w, http.StatusBadRequest, "Invalid verification token")
			return
		}
		delete(s.verifyTokens, token)
		s.accounts[email].user.EmailVerified = true
		writeJSON(w, http.StatusOK, map[string]string{"message": "Email verified"})
	}
}

func (s *Server) HackathonsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]string{
			{"id": "ai-innovation-challenge", "title": "AI Innovation Challenge"},
		})
	}
}
