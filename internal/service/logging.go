package service

import (
	"zapdispatch/internal/constants"
)

// SanitizeRecipient masks a recipient number for logging, keeping only the
// trailing digits.
func SanitizeRecipient(number string) string {
	if number == "" {
		return ""
	}

	if len(number) > constants.DefaultPhoneMaskLength {
		return "***" + number[len(number)-constants.DefaultPhoneMaskLength:]
	}
	return "***"
}
