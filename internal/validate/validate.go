// Package validate enforces the account field constraints.
package validate

import (
	"errors"
	"regexp"
)

// PasswordMinLength is the minimum accepted password length.
const PasswordMinLength = 8

const (
	emailMinLength    = 8
	usernameMinLength = 4
	usernameMaxLength = 15
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

// Email checks format and minimum length.
func Email(email string) error {
	if len(email) < emailMinLength {
		return errors.New("email must be at least 8 characters")
	}
	if !emailRegex.MatchString(email) {
		return errors.New("enter a valid email address")
	}
	return nil
}

// Username checks length and the allowed character set.
func Username(username string) error {
	if len(username) < usernameMinLength {
		return errors.New("username must be at least 4 characters")
	}
	if len(username) > usernameMaxLength {
		return errors.New("username must be at most 15 characters")
	}
	if !usernameRegex.MatchString(username) {
		return errors.New("username can only contain letters, numbers, dots, underscores, and hyphens")
	}
	return nil
}

// Password checks minimum length.
func Password(password string) error {
	if len(password) < PasswordMinLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
