package apiclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jrsteele09/cloudhub-session/authapi"
)

// ErrSessionExpired is what callers see for a 401. By then the guard has already
// cleared the session and navigated away.
var ErrSessionExpired = errors.New("Session expired. Please log in again.") //nolint:staticcheck

// StatusError is a non-2xx response
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Status == http.StatusUnauthorized {
		return ErrSessionExpired.Error()
	}
	if payload, ok := authapi.ParseErrorPayload([]byte(e.Body)); ok {
		return fmt.Sprintf("API Error %d: %s", e.Status, payload.Message)
	}
	if e.Body == "" {
		return fmt.Sprintf("API Error %d: %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("API Error %d: %s", e.Status, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrSessionExpired
	}
	return nil
}
