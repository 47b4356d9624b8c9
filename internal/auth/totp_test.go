package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestEnroll(t *testing.T) {
	t.Parallel()

	tfa := NewTwoFactor("NutriPlan")
	secret, uri, err := tfa.Enroll("alice@example.com")
	if err != nil {
		t.Fatalf("Enroll error: %v", err)
	}
	if secret == "" {
		t.Fatalf("empty secret")
	}
	if !strings.HasPrefix(uri, "otpauth://totp/") {
		t.Fatalf("unexpected provisioning URI: %q", uri)
	}
	if !strings.Contains(uri, "alice%40example.com") && !strings.Contains(uri, "alice@example.com") {
		t.Fatalf("provisioning URI missing account: %q", uri)
	}

	other, _, err := tfa.Enroll("alice@example.com")
	if err != nil {
		t.Fatalf("second Enroll error: %v", err)
	}
	if other == secret {
		t.Fatalf("enrollment reused a secret")
	}
}

func TestVerify_CurrentAndSkewedCodes(t *testing.T) {
	t.Parallel()

	tfa := NewTwoFactor("NutriPlan")
	secret, _, err := tfa.Enroll("alice@example.com")
	if err != nil {
		t.Fatalf("Enroll error: %v", err)
	}

	now := time.Now()
	current, err := totp.GenerateCode(secret, now)
	if err != nil {
		t.Fatalf("GenerateCode error: %v", err)
	}
	if !tfa.Verify(secret, current) {
		t.Fatalf("current code rejected")
	}

	// One period behind stays inside the allowed skew.
	previous, err := totp.GenerateCode(secret, now.Add(-30*time.Second))
	if err != nil {
		t.Fatalf("GenerateCode error: %v", err)
	}
	if !tfa.Verify(secret, previous) {
		t.Fatalf("one-step-old code rejected")
	}
}

func TestVerify_Rejections(t *testing.T) {
	t.Parallel()

	tfa := NewTwoFactor("NutriPlan")
	secret, _, err := tfa.Enroll("alice@example.com")
	if err != nil {
		t.Fatalf("Enroll error: %v", err)
	}

	if tfa.Verify(secret, "000000") && tfa.Verify(secret, "123456") {
		t.Fatalf("arbitrary codes accepted")
	}
	if tfa.Verify("", "123456") {
		t.Fatalf("empty secret accepted")
	}

	// A distant code falls outside the one-step window.
	stale, err := totp.GenerateCode(secret, time.Now().Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("GenerateCode error: %v", err)
	}
	if tfa.Verify(secret, stale) {
		t.Fatalf("ten-minute-old code accepted")
	}
}
