package token

import (
	"strings"
)

// PhoneDomain is the synthetic domain that lets a phone number travel through the
// email/username field of the login form.
const PhoneDomain = "phone.cloudhub.local"

// PhoneIdentifier builds the login identifier for a phone number: every non-digit is
// stripped from both parts and the country code digits are prefixed to the phone digits.
//
//	PhoneIdentifier("+971", "50 123 4567") == "971501234567@phone.cloudhub.local"
func PhoneIdentifier(countryCode, phone string) (string, error) {
	cc := digitsOnly(countryCode)
	number := digitsOnly(phone)
	if cc == "" || number == "" {
		return "", &Error{
			Kind:    KindValidation,
			Message: "Country code and phone number are required.",
			Err:     ErrValidation,
		}
	}
	return cc + number + "@" + PhoneDomain, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
