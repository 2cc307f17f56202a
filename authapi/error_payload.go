package authapi

import (
	"encoding/json"
	"strings"
)

// FieldError is one entry of a structured validation failure:
// {"loc": ["body", "email"], "msg": "value is not a valid email address", "type": "value_error.email"}
type FieldError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// Field returns the last element of loc, which names the offending input
func (f FieldError) Field() string {
	if len(f.Loc) == 0 {
		return ""
	}
	switch v := f.Loc[len(f.Loc)-1].(type) {
	case string:
		return v
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// ErrorPayload is the error body the API returns. Detail is either a plain message
// or a list of field errors.
type ErrorPayload struct {
	Message string
	Fields  []FieldError
}

// ParseErrorPayload decodes an error body. ok is false when the body is not one of
// the two known shapes.
func ParseErrorPayload(body []byte) (payload ErrorPayload, ok bool) {
	var raw struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &raw); err != nil || len(raw.Detail) == 0 {
		return ErrorPayload{}, false
	}

	var msg string
	if err := json.Unmarshal(raw.Detail, &msg); err == nil {
		return ErrorPayload{Message: msg}, msg != ""
	}

	var fields []FieldError
	if err := json.Unmarshal(raw.Detail, &fields); err == nil && len(fields) > 0 {
		return ErrorPayload{Fields: fields, Message: JoinFieldMessages(fields)}, true
	}
	return ErrorPayload{}, false
}

// JoinFieldMessages concatenates every non-empty msg with "; "
func JoinFieldMessages(fields []FieldError) string {
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Msg != "" {
			msgs = append(msgs, f.Msg)
		}
	}
	return strings.Join(msgs, "; ")
}
