package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAccess_VerifyRoundTrip(t *testing.T) {
	t.Parallel()

	issuer := NewIssuer("super-secret", time.Hour)

	tok, err := issuer.IssueAccess("alice@example.com")
	if err != nil {
		t.Fatalf("IssueAccess error: %v", err)
	}

	subject, claims, err := issuer.Verify(tok, TokenKindAccess)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if subject != "alice@example.com" {
		t.Fatalf("subject mismatch: got %q", subject)
	}
	if claims.TokenType != TokenKindAccess {
		t.Fatalf("token type mismatch: got %q", claims.TokenType)
	}
}

func TestVerify_KindMismatch(t *testing.T) {
	t.Parallel()

	issuer := NewIssuer("super-secret", time.Hour)

	access, err := issuer.IssueAccess("alice@example.com")
	if err != nil {
		t.Fatalf("IssueAccess error: %v", err)
	}
	if _, _, err := issuer.Verify(access, TokenKindRefresh); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}

	refresh, err := issuer.IssueRefresh("alice@example.com")
	if err != nil {
		t.Fatalf("IssueRefresh error: %v", err)
	}
	if _, _, err := issuer.Verify(refresh, TokenKindAccess); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	issuer := NewIssuer("super-secret", -time.Second)

	tok, err := issuer.IssueAccess("alice@example.com")
	if err != nil {
		t.Fatalf("IssueAccess error: %v", err)
	}
	if _, _, err := issuer.Verify(tok, TokenKindAccess); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewIssuer("right-secret", time.Hour).IssueAccess("alice@example.com")
	if err != nil {
		t.Fatalf("IssueAccess error: %v", err)
	}
	if _, _, err := NewIssuer("wrong-secret", time.Hour).Verify(tok, TokenKindAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	issuer := NewIssuer("secret", time.Hour)
	if _, _, err := issuer.Verify("not.a.jwt", ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_MissingSubject(t *testing.T) {
	t.Parallel()

	issuer := NewIssuer("secret", time.Hour)
	tok, err := issuer.issue("", TokenKindAccess, time.Hour)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	if _, _, err := issuer.Verify(tok, TokenKindAccess); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
}

func TestHashToken(t *testing.T) {
	t.Parallel()

	a := HashToken("token-one")
	b := HashToken("token-one")
	c := HashToken("token-two")
	if a != b {
		t.Fatalf("digest not deterministic")
	}
	if a == c {
		t.Fatalf("distinct tokens share a digest")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256 digest, got %d chars", len(a))
	}
	if a == "token-one" {
		t.Fatalf("digest equals plaintext")
	}
}

func TestCSRFToken(t *testing.T) {
	t.Parallel()

	a := CSRFToken()
	b := CSRFToken()
	if a == "" || b == "" {
		t.Fatalf("empty csrf token")
	}
	if a == b {
		t.Fatalf("csrf tokens should not repeat")
	}
}
