package utils

import (
	"html"
	"regexp"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
)

// SanitizeString strips HTML from donor-supplied free text before it is
// stored or echoed back in receipts.
func SanitizeString(input string) string {
	sanitized := html.EscapeString(input)
	return htmlTagRegex.ReplaceAllString(sanitized, "")
}

// IsValidEmail validates an email address format
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// IsValidPhone validates an E.164-style phone number
func IsValidPhone(phone string) bool {
	return phoneRegex.MatchString(phone)
}
