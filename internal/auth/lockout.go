package auth

import (
	"time"

	"github.com/nutriplan-app/apiserver/types"
)

const (
	// LockoutThreshold is the failed-attempt count that triggers a lock.
	LockoutThreshold = 5
	// LockoutDuration is how long a locked account rejects logins.
	LockoutDuration = 30 * time.Minute
)

// OutcomeKind tags the result of a password authentication attempt so
// callers branch explicitly instead of inspecting errors.
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeInvalidCredentials
	OutcomeLocked
)

// Outcome is the result of an authentication attempt.
type Outcome struct {
	Kind OutcomeKind
	User types.User
}

// IsLocked reports whether the account is currently locked. A lock in the
// past is treated as expired.
func IsLocked(user types.User, now time.Time) bool {
	return user.LockedUntil != nil && user.LockedUntil.After(now)
}

// RecordFailure increments the failed-attempt counter on user and sets the
// lockout window once the threshold is reached. It mutates user in place;
// the caller persists the record.
func RecordFailure(user *types.User, now time.Time) {
	user.FailedLoginAttempts++
	if user.FailedLoginAttempts >= LockoutThreshold {
		until := now.Add(LockoutDuration)
		user.LockedUntil = &until
	}
}

// RecordSuccess resets the lockout state and stamps the last login.
func RecordSuccess(user *types.User, now time.Time) {
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	login := now
	user.LastLogin = &login
}
