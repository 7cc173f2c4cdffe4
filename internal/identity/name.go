package identity

import (
	"strings"
	"unicode"
)

// NormalizeName is the identity key of a person: trimmed, inner whitespace
// collapsed to single spaces, upper case.
func NormalizeName(fullName string) string {
	return strings.ToUpper(strings.Join(strings.Fields(fullName), " "))
}

var nullPhoneTokens = map[string]struct{}{
	"NA":           {},
	"N/A":          {},
	"N.A.":         {},
	"NULL":         {},
	"NONE":         {},
	"-":            {},
	"PENDIENTE":    {},
	"SIN TELEFONO": {},
	"SIN NUMERO":   {},
	"NO TIENE":     {},
}

// ValidPhone rejects empty values, placeholder tokens, values without digits
// and all-zero numbers.
func ValidPhone(phone string) bool {
	p := strings.TrimSpace(phone)
	if p == "" {
		return false
	}
	if _, ok := nullPhoneTokens[strings.ToUpper(p)]; ok {
		return false
	}

	digits := 0
	nonZero := false
	for _, r := range p {
		if unicode.IsDigit(r) {
			digits++
			if r != '0' {
				nonZero = true
			}
		}
	}
	return digits > 0 && nonZero
}

// ShouldUpdatePhone decides whether an incoming phone replaces the stored one.
func ShouldUpdatePhone(stored, incoming string) bool {
	if !ValidPhone(incoming) {
		return false
	}
	if !ValidPhone(stored) {
		return true
	}
	return strings.TrimSpace(incoming) != strings.TrimSpace(stored)
}
