package whatsapp

import (
	"fmt"
	"strings"
)

const (
	countryPrefix = "55"
	// country + area code + 9-digit mobile
	maxDigits = 13
	// country + area code + 8-digit landline
	minDigits = 12
	jidSuffix = "@s.whatsapp.net"
)

// InvalidPhoneError means the number could not be turned into a WhatsApp
// address. Retrying will not help.
type InvalidPhoneError struct {
	Phone  string
	Reason string
}

func (e *InvalidPhoneError) Error() string {
	return fmt.Sprintf("invalid phone number %q: %s", e.Phone, e.Reason)
}

// NormalizePhone turns a Brazilian phone number in any common notation into
// a WhatsApp address: digits only, "55" prefixed when missing, cut to 13
// digits, followed by @s.whatsapp.net. This is a heuristic for
// country+area+mobile numbers, not general phone validation.
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", &InvalidPhoneError{Phone: phone, Reason: "no digits"}
	}

	if !strings.HasPrefix(digits, countryPrefix) {
		digits = countryPrefix + digits
	}
	if len(digits) > maxDigits {
		digits = digits[:maxDigits]
	}
	if len(digits) < minDigits {
		return "", &InvalidPhoneError{Phone: phone, Reason: "too few digits"}
	}

	return digits + jidSuffix, nil
}

// IsValidPhone reports whether phone looks like a Brazilian number with or
// without the country prefix.
func IsValidPhone(phone string) bool {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	if strings.HasPrefix(digits, countryPrefix) {
		return len(digits) == 12 || len(digits) == 13
	}
	return len(digits) == 10 || len(digits) == 11
}
