package domain

import (
	"regexp"
	"strings"
)

const cameroonCountryCode = "237"

var cameroonMobile = regexp.MustCompile(`^[67]\d{8}$`)

// NormalizePhone turns free-form user input into the 9-digit national
// mobile number the backend expects (no country code, no trunk prefix).
func NormalizePhone(raw string) (string, error) {
	digits := onlyDigits(raw)

	if len(digits) > 9 && strings.HasPrefix(digits, cameroonCountryCode) {
		digits = digits[len(cameroonCountryCode):]
	}
	if len(digits) > 9 && strings.HasPrefix(digits, "0") {
		digits = digits[1:]
	}

	if !cameroonMobile.MatchString(digits) {
		return "", ErrInvalidPhone
	}
	return digits, nil
}

// FilterPhoneInput filters keystrokes as the user types: an optional leading
// "+", spaces, and at most 12 digits (country code plus national number).
func FilterPhoneInput(raw string) string {
	var b strings.Builder
	digits := 0
	for i, r := range raw {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ':
			if b.Len() > 0 {
				b.WriteRune(r)
			}
		case r >= '0' && r <= '9':
			if digits == 12 {
				continue
			}
			digits++
			b.WriteRune(r)
		}
	}
	return b.String()
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
