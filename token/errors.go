package token

import (
	"errors"
	"fmt"

	"github.com/jrsteele09/cloudhub-session/authapi"
)

// Kind classifies a failed credential operation
type Kind int

const (
	// KindUnknown covers network failures, timeouts and unexpected responses.
	// It never clears the session by itself.
	KindUnknown Kind = iota
	// KindValidation is caller input rejected before any network call.
	KindValidation
	// KindUnauthorized is the server rejecting the credentials or the refresh token.
	KindUnauthorized
	// KindFieldValidation is a structured field-level rejection from the server.
	KindFieldValidation
	// KindNoRefreshToken means a refresh was requested with no refresh token stored.
	KindNoRefreshToken
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindFieldValidation:
		return "field_validation"
	case KindNoRefreshToken:
		return "no_refresh_token"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is; every *Error matches the sentinel of its Kind.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrFieldValidation = errors.New("field validation failed")
	ErrNoRefreshToken  = errors.New("no refresh token")
	ErrUnknown         = errors.New("unknown error")
)

// Display messages used when the server gave nothing better
const (
	MsgInvalidCredentials = "Invalid email or password."
	MsgLoginAgain         = "Please log in again."
	MsgUnexpected         = "Something went wrong. Please try again."
	MsgUnreachable        = "Unable to reach the server. Please check your connection and try again."
)

// Error is the only error shape credential operations return. Message is always
// display ready; the raw wire payload never escapes.
type Error struct {
	Kind    Kind
	Message string
	Fields  []authapi.FieldError
	Status  int
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindUnauthorized:
		return ErrUnauthorized
	case KindFieldValidation:
		return ErrFieldValidation
	case KindNoRefreshToken:
		return ErrNoRefreshToken
	default:
		return ErrUnknown
	}
}

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// UserMessage maps any error to text fit for display
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return MsgUnexpected
	}
	if e.Kind == KindNoRefreshToken {
		return MsgLoginAgain
	}
	if e.Message == "" {
		return MsgUnexpected
	}
	return e.Message
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func unexpectedResponse(status int, format string, args ...any) *Error {
	return &Error{Kind: KindUnknown, Message: MsgUnexpected, Status: status, Err: fmt.Errorf(format, args...)}
}
