package messaging

import "strings"

// NormalizePhone converts a raw phone number into the gateway address form:
// digits only, carrying the country prefix. A leading "0" is replaced by the
// prefix; a number lacking the prefix gets it prepended. The operation is
// idempotent.
func NormalizePhone(raw, countryPrefix string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(digits, "0") {
		return countryPrefix + digits[1:]
	}
	if !strings.HasPrefix(digits, countryPrefix) {
		return countryPrefix + digits
	}
	return digits
}
