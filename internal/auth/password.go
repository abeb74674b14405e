package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 6

var (
	ErrInvalidDNI       = errors.New("DNI must be exactly 8 digits")
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// ValidateDNI checks the national ID used as the login name.
func ValidateDNI(dni string) error {
	if len(dni) != 8 {
		return ErrInvalidDNI
	}
	for _, r := range dni {
		if r < '0' || r > '9' {
			return ErrInvalidDNI
		}
	}
	return nil
}

func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NormalizeDNI trims surrounding whitespace from user input.
func NormalizeDNI(dni string) string {
	return strings.TrimSpace(dni)
}
