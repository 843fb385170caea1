package auth

import (
	"errors"
	"unicode"
)

// MinPasswordLength is the shortest password accepted on registration and reset
const MinPasswordLength = 8

var ErrWeakPassword = errors.New("password must be at least 8 characters and contain a letter and a digit")

// StrongPassword reports whether a password meets the signup rules
func StrongPassword(password string) bool {
	if len([]rune(password)) < MinPasswordLength {
		return false
	}

	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

// CheckPassword returns ErrWeakPassword for passwords StrongPassword rejects
func CheckPassword(password string) error {
	if !StrongPassword(password) {
		return ErrWeakPassword
	}
	return nil
}
