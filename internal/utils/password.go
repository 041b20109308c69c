package utils

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLen = 6
	MaxPasswordLen = 72 // bcrypt ignores bytes past 72
)

// ErrWeakPassword is returned by CheckPasswordPolicy.
var ErrWeakPassword = errors.New("password must be between 6 and 72 characters")

// CheckPasswordPolicy enforces the length rules applied at registration
// and password change.
func CheckPasswordPolicy(plain string) error {
	if n := utf8.RuneCountInString(plain); n < MinPasswordLen || len(plain) > MaxPasswordLen {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
