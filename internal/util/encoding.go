package util

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKC normalization. Identifiers that differ only in
// Unicode representation must compare equal everywhere they are stored or
// looked up.
func Normalize(s string) string {
	return norm.NFKC.String(s)
}

// NormalizeEmail canonicalizes an email address for storage and lookup:
// NFKC, trimmed, lowercased.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(Normalize(s)))
}

// NormalizeUsername canonicalizes a username. Case is preserved; usernames
// are case-sensitive identifiers.
func NormalizeUsername(s string) string {
	return strings.TrimSpace(Normalize(s))
}
