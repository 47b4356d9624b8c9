package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// CodeTTL is how long email-verification and password-reset codes stay valid.
const CodeTTL = 24 * time.Hour

const codeDigits = 6

// NewCode returns a six-digit numeric one-time code drawn from a
// cryptographically secure source. The same generator serves both
// email verification and password reset.
func NewCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}
