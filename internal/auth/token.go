package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds carried in the "type" claim. Presenting one kind where the
// other is expected fails closed.
const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
)

const (
	defaultAccessTTL  = 60 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrWrongTokenType = errors.New("wrong token type")
	ErrMissingSubject = errors.New("token missing subject")
)

// Claims is the signed claim set: subject email, expiry, and kind.
type Claims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// Issuer creates and verifies signed bearer tokens with a symmetric key.
type Issuer struct {
	secret    []byte
	accessTTL time.Duration
}

// NewIssuer constructs an Issuer. accessTTL of zero falls back to the
// one-hour default; refresh tokens always default to seven days.
func NewIssuer(secret string, accessTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	return &Issuer{
		secret:    []byte(secret),
		accessTTL: accessTTL,
	}
}

// AccessTTL returns the configured access-token lifetime.
func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// IssueAccess signs a short-lived access token for subject.
func (i *Issuer) IssueAccess(subject string) (string, error) {
	return i.issue(subject, TokenKindAccess, i.accessTTL)
}

// IssueRefresh signs a refresh token for subject, valid for seven days.
func (i *Issuer) IssueRefresh(subject string) (string, error) {
	return i.issue(subject, TokenKindRefresh, defaultRefreshTTL)
}

func (i *Issuer) issue(subject, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		TokenType: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify checks signature, expiry, and kind, and returns the subject and
// full claim set. expectedKind may be empty to accept either kind.
func (i *Issuer) Verify(tokenString, expectedKind string) (string, *Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", nil, ErrTokenExpired
		}
		return "", nil, ErrInvalidToken
	}
	if !token.Valid {
		return "", nil, ErrInvalidToken
	}
	if expectedKind != "" && claims.TokenType != expectedKind {
		return "", nil, ErrWrongTokenType
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", nil, ErrMissingSubject
	}
	return claims.Subject, claims, nil
}

// HashToken returns the hex sha256 digest of a token. Refresh tokens are
// persisted only as this digest.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CSRFToken returns a cryptographically random opaque string. It is not
// related to the signed tokens.
func CSRFToken() string {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(buf[:])
}
