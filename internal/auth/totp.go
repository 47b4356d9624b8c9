package auth

import (
	"errors"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// ErrNoTFASecret is returned when a TOTP operation needs a secret the user
// does not have.
var ErrNoTFASecret = errors.New("two-factor secret not set")

// TwoFactor handles TOTP enrollment and verification. Issuer names the
// application in the provisioning URI authenticator apps scan.
type TwoFactor struct {
	issuer string
}

func NewTwoFactor(issuer string) *TwoFactor {
	if issuer == "" {
		issuer = "NutriPlan"
	}
	return &TwoFactor{issuer: issuer}
}

// Enroll generates a fresh base32 shared secret for the account and returns
// the secret together with the otpauth:// provisioning URI to render as a
// scannable code.
func (t *TwoFactor) Enroll(email string) (secret, provisioningURI string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: email,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// Verify checks a submitted time-based code against the shared secret,
// allowing one step of clock skew on either side.
func (t *TwoFactor) Verify(secret, code string) bool {
	if secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
