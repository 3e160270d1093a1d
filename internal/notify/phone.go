package notify

import "strings"

// FormatPhoneNumber converts a loosely formatted phone number to a dialable
// E.164-ish form. Best effort only, not a validator: whatever comes out is
// handed to the transport, and transport rejection is a delivery failure.
func FormatPhoneNumber(phone, defaultCountryCode string) string {
	if strings.HasPrefix(phone, "+") {
		return phone
	}

	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	cleaned := digits.String()

	if len(cleaned) == 10 {
		return defaultCountryCode + cleaned
	}
	if len(cleaned) == 11 && strings.HasPrefix(cleaned, "1") {
		return "+" + cleaned
	}
	return "+" + cleaned
}
