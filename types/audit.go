package types

import "time"

// Audit event types recorded for security-relevant actions.
const (
	AuditUserRegister      = "user_register"
	AuditUserLogin         = "user_login"
	AuditUserLoginFailed   = "user_login_failed"
	AuditUserLocked        = "user_locked"
	AuditUserLogout        = "user_logout"
	AuditPasswordReset     = "user_password_reset"
	AuditEmailVerification = "user_email_verification"
	AuditProfileUpdate     = "user_profile_update"
	AuditRoleChange        = "user_role_change"
)

// AuditEvent is a best-effort security log entry. UserID is zero for events
// that happen before authentication.
type AuditEvent struct {
	ID        int       `json:"id" db:"id"`
	EventType string    `json:"event_type" db:"event_type"`
	UserID    int       `json:"user_id,omitempty" db:"user_id"`
	IPAddress string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string    `json:"user_agent,omitempty" db:"user_agent"`
	Details   string    `json:"details,omitempty" db:"details"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
