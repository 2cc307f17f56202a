package token

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/cloudhub-session/authapi"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(f.Name)
		}
		return name
	})
	return v
}

// validate checks req before anything is sent. Failures come back as KindValidation
// with one field error per violated rule.
func (i *Issuer) validate(req any) error {
	err := i.validator.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return newError(KindValidation, MsgUnexpected, err)
	}

	fields := make([]authapi.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, authapi.FieldError{
			Loc:  []any{"body", fe.Field()},
			Msg:  fieldMessage(fe),
			Type: "value_error." + fe.Tag(),
		})
	}
	return &Error{
		Kind:    KindValidation,
		Message: authapi.JoinFieldMessages(fields),
		Fields:  fields,
		Err:     err,
	}
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required", "required_if":
		if fe.Kind() == reflect.Bool {
			return field + " must be accepted"
		}
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "eqfield":
		return "passwords do not match"
	default:
		return field + " is invalid"
	}
}
