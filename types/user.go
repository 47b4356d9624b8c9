package types

import "time"

// Roles a user can hold. The set is closed; anything else is rejected
// at the API boundary.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ValidRole reports whether role belongs to the closed role set.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// User represents an account in the system.
// It carries identity, credential state, lockout state, verification and
// reset codes, two-factor state, profile attributes, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's unique email address. Matching is exact and
	// case-sensitive.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Role indicates the user's authorization level ("user" or "admin").
	Role string `json:"role" db:"role"`

	IsActive bool `json:"is_active" db:"is_active"`

	// IsVerified is set once the email-verification code is consumed.
	IsVerified bool `json:"is_verified" db:"is_verified"`

	// FailedLoginAttempts counts consecutive failed password checks. At five
	// the account locks for thirty minutes.
	FailedLoginAttempts int        `json:"-" db:"failed_login_attempts"`
	LockedUntil         *time.Time `json:"-" db:"locked_until"`
	LastLogin           *time.Time `json:"last_login" db:"last_login"`

	// RefreshTokenHash holds the sha256 digest of the active refresh token.
	// The plaintext token is never persisted. Hash and expiry are always set
	// or cleared together.
	RefreshTokenHash    *string    `json:"-" db:"refresh_token_hash"`
	RefreshTokenExpires *time.Time `json:"-" db:"refresh_token_expires"`

	VerificationCode    *string    `json:"-" db:"verification_code"`
	VerificationExpires *time.Time `json:"-" db:"verification_expires"`

	ResetCode    *string    `json:"-" db:"reset_code"`
	ResetExpires *time.Time `json:"-" db:"reset_expires"`

	TFAEnabled  bool `json:"tfa_enabled" db:"tfa_enabled"`
	TFAVerified bool `json:"tfa_verified" db:"tfa_verified"`
	// TFASecret is the base32 TOTP shared secret. Non-nil only while TFA is
	// enabled. Never exposed in API responses.
	TFASecret *string `json:"-" db:"tfa_secret"`

	// Optional profile attributes.
	HeightCM      *float64 `json:"height_cm,omitempty" db:"height_cm"`
	WeightKG      *float64 `json:"weight_kg,omitempty" db:"weight_kg"`
	Age           *int     `json:"age,omitempty" db:"age"`
	ActivityLevel *string  `json:"activity_level,omitempty" db:"activity_level"`
	Goal          *string  `json:"goal,omitempty" db:"goal"`
	Picture       *string  `json:"picture,omitempty" db:"picture"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProfileUpdate holds the profile fields a user may change about themselves.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Name          *string  `json:"name,omitempty"`
	HeightCM      *float64 `json:"height_cm,omitempty"`
	WeightKG      *float64 `json:"weight_kg,omitempty"`
	Age           *int     `json:"age,omitempty"`
	ActivityLevel *string  `json:"activity_level,omitempty"`
	Goal          *string  `json:"goal,omitempty"`
	Picture       *string  `json:"picture,omitempty"`
}
