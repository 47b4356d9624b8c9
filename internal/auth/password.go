package auth

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past 72 bytes; longer passwords are truncated to that
// ceiling before hashing so Hash never errors on long input.
const maxPasswordBytes = 72

const minPasswordLength = 8

const passwordSymbols = `!@#$%^&*(),.?":{}|<>`

// HashPassword hashes a plaintext password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncateToBytes(password, maxPasswordBytes), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
func VerifyPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), truncateToBytes(password, maxPasswordBytes))
	return err == nil
}

// ValidatePasswordStrength enforces the password policy: at least eight
// characters, at most 72 UTF-8 bytes, and at least one uppercase letter,
// one lowercase letter, one digit, and one symbol from the fixed set.
func ValidatePasswordStrength(password string) bool {
	if len([]rune(password)) < minPasswordLength {
		return false
	}
	if len(password) > maxPasswordBytes {
		return false
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

func truncateToBytes(s string, limit int) []byte {
	if len(s) <= limit {
		return []byte(s)
	}
	// Cut on a rune boundary so no partial UTF-8 sequence survives.
	end := limit
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return []byte(s[:end])
}
