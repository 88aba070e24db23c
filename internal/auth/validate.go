package auth

import (
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"
)

const minPasswordLength = 8

var (
	errEmailRequired = errors.New("Email and password are required")
	errEmailInvalid  = errors.New("Email address is not valid")
	errPasswordShort = errors.New("Password must be at least 8 characters")
	errNameTooLong   = errors.New("Full name must be at most 120 characters")
	errBioTooLong    = errors.New("Bio must be at most 1000 characters")
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	if email == "" || password == "" {
		return errEmailRequired
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errEmailInvalid
	}
	return validatePassword(password)
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return errPasswordShort
	}
	return nil
}

func validateProfile(fullName, bio string) error {
	if utf8.RuneCountInString(fullName) > 120 {
		return errNameTooLong
	}
	if utf8.RuneCountInString(bio) > 1000 {
		return errBioTooLong
	}
	return nil
}
