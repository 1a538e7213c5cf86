// Package account implements the credential service: registration, login,
// and token-based identity resolution over a storage.AccountRepository.
package account

import (
	"net/mail"
	"unicode/utf8"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 100
	MinPasswordLength = 8
	MaxEmailLength    = 255
)

// validateEmail expects its input already normalized. It accepts only a bare
// RFC 5322 address ("user@host", no display name or angle brackets).
func validateEmail(email string) error {
	if email == "" {
		return validationErrorf("email", "email must not be empty")
	}
	if len(email) > MaxEmailLength {
		return validationErrorf("email", "email exceeds maximum length of %d", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return validationErrorf("email", "email must be a valid email address")
	}
	return nil
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return validationErrorf("username", "username must be between %d and %d characters", MinUsernameLength, MaxUsernameLength)
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return validationErrorf("password", "password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
