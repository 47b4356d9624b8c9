package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/nutriplan-app/apiserver/internal/auth"
	"github.com/nutriplan-app/apiserver/internal/mailer"
	"github.com/nutriplan-app/apiserver/internal/store"
	"github.com/nutriplan-app/apiserver/types"
	"go.uber.org/zap"
)

var (
	ErrInvalidEmail            = errors.New("invalid email format")
	ErrWeakPassword            = errors.New("password must be at least 8 characters with uppercase, lowercase, number, and special character, and not exceed 72 bytes")
	ErrEmailExists             = errors.New("user with this email already exists")
	ErrInvalidCredentials      = errors.New("incorrect email or password")
	ErrAccountLocked           = errors.New("account is locked due to too many failed login attempts")
	ErrAlreadyVerified         = errors.New("email already verified")
	ErrInvalidVerificationCode = errors.New("invalid verification code")
	ErrVerificationExpired     = errors.New("verification code has expired")
	ErrInvalidResetCode        = errors.New("invalid reset code")
	ErrResetCodeExpired        = errors.New("reset code has expired")
	ErrInvalidRefreshToken     = errors.New("invalid refresh token")
	ErrRefreshTokenExpired     = errors.New("refresh token has expired")
	ErrTFANotEnabled           = errors.New("two-factor authentication not enabled")
	ErrInvalidTFACode          = errors.New("invalid two-factor code")
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const refreshTokenTTL = 7 * 24 * time.Hour

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByVerificationCode(ctx context.Context, code string) (types.User, error)
	GetByResetCode(ctx context.Context, code string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	SetRefreshToken(ctx context.Context, id int, digest string, expires time.Time) error
	ClearRefreshToken(ctx context.Context, id int) error
	SetVerificationCode(ctx context.Context, id int, code string, expires time.Time) error
	MarkVerified(ctx context.Context, id int) error
	SetResetCode(ctx context.Context, id int, code string, expires time.Time) error
	ResetPassword(ctx context.Context, id int, passwordHash string) error
	List(ctx context.Context, offset, limit int) ([]types.User, int, error)
	Delete(ctx context.Context, id int) error
}

// AuditRecorder persists security events, best-effort.
type AuditRecorder interface {
	Record(ctx context.Context, event types.AuditEvent) error
}

// Meta carries request attribution for the audit trail.
type Meta struct {
	IP        string
	UserAgent string
}

// TokenPair is the login/refresh response payload.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// AuthService composes hashing, tokens, lockout, one-time codes, and
// two-factor state into the account flows.
type AuthService struct {
	repo   UserRepository
	audit  AuditRecorder
	issuer *auth.Issuer
	tfa    *auth.TwoFactor
	mail   mailer.Dispatcher
	logger *zap.SugaredLogger
}

func NewAuthService(
	repo UserRepository,
	audit AuditRecorder,
	issuer *auth.Issuer,
	tfa *auth.TwoFactor,
	mail mailer.Dispatcher,
	logger *zap.SugaredLogger,
) *AuthService {
	return &AuthService{
		repo:   repo,
		audit:  audit,
		issuer: issuer,
		tfa:    tfa,
		mail:   mail,
		logger: logger,
	}
}

// Register validates input, creates the user with a pending verification
// code, and dispatches the verification email. Delivery failure never fails
// the registration; the stored code stays valid.
func (s *AuthService) Register(ctx context.Context, name, email, password string, meta Meta) (types.User, error) {
	if !emailPattern.MatchString(email) {
		return types.User{}, ErrInvalidEmail
	}
	if !auth.ValidatePasswordStrength(password) {
		return types.User{}, ErrWeakPassword
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.User{}, ErrEmailExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("failed to check user: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return types.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	code, err := auth.NewCode()
	if err != nil {
		return types.User{}, err
	}
	expires := time.Now().Add(auth.CodeTTL)

	user, err := s.repo.Create(ctx, types.User{
		Name:                name,
		Email:               email,
		PasswordHash:        hash,
		Role:                types.RoleUser,
		IsActive:            true,
		IsVerified:          false,
		VerificationCode:    &code,
		VerificationExpires: &expires,
	})
	if err != nil {
		return types.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	s.sendMail(ctx, mailer.VerificationMessage(user.Email, code))
	s.record(ctx, types.AuditUserRegister, user.ID, meta, "")
	return user, nil
}

// Authenticate runs the lockout-aware password check and returns a tagged
// outcome. A locked account is rejected before any password comparison and
// without touching the failure counter.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (auth.Outcome, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return auth.Outcome{Kind: auth.OutcomeInvalidCredentials}, nil
		}
		return auth.Outcome{}, err
	}

	now := time.Now()
	if auth.IsLocked(user, now) {
		return auth.Outcome{Kind: auth.OutcomeLocked, User: user}, nil
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		auth.RecordFailure(&user, now)
		if _, err := s.repo.Update(ctx, user); err != nil {
			return auth.Outcome{}, fmt.Errorf("failed to record login failure: %w", err)
		}
		return auth.Outcome{Kind: auth.OutcomeInvalidCredentials, User: user}, nil
	}

	auth.RecordSuccess(&user, now)
	user, err = s.repo.Update(ctx, user)
	if err != nil {
		return auth.Outcome{}, fmt.Errorf("failed to record login: %w", err)
	}
	return auth.Outcome{Kind: auth.OutcomeOK, User: user}, nil
}

// Login authenticates and, on success, issues an access+refresh pair and
// persists the refresh token's digest.
//
// Tokens are issued at password success even when two-factor is enabled;
// /verify-tfa is a separate check.
func (s *AuthService) Login(ctx context.Context, email, password string, meta Meta) (TokenPair, error) {
	outcome, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return TokenPair{}, err
	}

	switch outcome.Kind {
	case auth.OutcomeLocked:
		s.record(ctx, types.AuditUserLocked, outcome.User.ID, meta, "")
		return TokenPair{}, ErrAccountLocked
	case auth.OutcomeInvalidCredentials:
		s.record(ctx, types.AuditUserLoginFailed, outcome.User.ID, meta, email)
		return TokenPair{}, ErrInvalidCredentials
	}

	user := outcome.User
	access, err := s.issuer.IssueAccess(user.Email)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, err := s.issuer.IssueRefresh(user.Email)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	if err := s.repo.SetRefreshToken(ctx, user.ID, auth.HashToken(refresh), time.Now().Add(refreshTokenTTL)); err != nil {
		return TokenPair{}, fmt.Errorf("failed to store refresh token: %w", err)
	}

	s.record(ctx, types.AuditUserLogin, user.ID, meta, "")
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.issuer.AccessTTL().Seconds()),
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token is not rotated. Any failure after the user is located
// clears the stored refresh-token fields, forcing a fresh login.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	subject, _, err := s.issuer.Verify(refreshToken, auth.TokenKindRefresh)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}

	user, err := s.repo.GetByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, err
	}

	if user.RefreshTokenExpires != nil && user.RefreshTokenExpires.Before(time.Now()) {
		s.clearRefresh(ctx, user.ID)
		return TokenPair{}, ErrRefreshTokenExpired
	}
	if user.RefreshTokenHash == nil || *user.RefreshTokenHash != auth.HashToken(refreshToken) {
		s.clearRefresh(ctx, user.ID)
		return TokenPair{}, ErrInvalidRefreshToken
	}

	access, err := s.issuer.IssueAccess(user.Email)
	if err != nil {
		s.clearRefresh(ctx, user.ID)
		return TokenPair{}, fmt.Errorf("failed to issue access token: %w", err)
	}

	return TokenPair{
		AccessToken: access,
		TokenType:   "bearer",
		ExpiresIn:   int(s.issuer.AccessTTL().Seconds()),
	}, nil
}

// Logout invalidates the caller's stored refresh token.
func (s *AuthService) Logout(ctx context.Context, userID int, meta Meta) error {
	if err := s.repo.ClearRefreshToken(ctx, userID); err != nil {
		return err
	}
	s.record(ctx, types.AuditUserLogout, userID, meta, "")
	return nil
}

// GetByEmail loads a user by the token subject.
func (s *AuthService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

// VerifyEmail consumes a verification code: the user is marked verified and
// the code and its expiry clear together.
func (s *AuthService) VerifyEmail(ctx context.Context, code string, meta Meta) (types.User, error) {
	user, err := s.repo.GetByVerificationCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidVerificationCode
		}
		return types.User{}, err
	}
	if user.VerificationExpires != nil && user.VerificationExpires.Before(time.Now()) {
		return types.User{}, ErrVerificationExpired
	}

	if err := s.repo.MarkVerified(ctx, user.ID); err != nil {
		return types.User{}, err
	}
	user.IsVerified = true
	user.VerificationCode = nil
	user.VerificationExpires = nil

	s.record(ctx, types.AuditEmailVerification, user.ID, meta, "")
	return user, nil
}

// ResendVerification issues and stores a fresh code, then attempts
// delivery. The code is persisted and valid even when delivery fails.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	code, err := auth.NewCode()
	if err != nil {
		return err
	}
	if err := s.repo.SetVerificationCode(ctx, user.ID, code, time.Now().Add(auth.CodeTTL)); err != nil {
		return err
	}

	s.sendMail(ctx, mailer.VerificationMessage(user.Email, code))
	return nil
}

// ForgotPassword issues a reset code when the account exists. It succeeds
// either way so responses cannot be used to enumerate accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	code, err := auth.NewCode()
	if err != nil {
		return err
	}
	if err := s.repo.SetResetCode(ctx, user.ID, code, time.Now().Add(auth.CodeTTL)); err != nil {
		return err
	}

	s.sendMail(ctx, mailer.ResetMessage(user.Email, code))
	return nil
}

// ResetPassword consumes a reset code and replaces the password; the code
// and its expiry clear with the same statement that stores the new hash.
func (s *AuthService) ResetPassword(ctx context.Context, code, newPassword string, meta Meta) error {
	user, err := s.repo.GetByResetCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetCode
		}
		return err
	}
	if user.ResetExpires != nil && user.ResetExpires.Before(time.Now()) {
		return ErrResetCodeExpired
	}
	if !auth.ValidatePasswordStrength(newPassword) {
		return ErrWeakPassword
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.ResetPassword(ctx, user.ID, hash); err != nil {
		return err
	}

	s.record(ctx, types.AuditPasswordReset, user.ID, meta, "")
	return nil
}

// EnableTFA generates and stores a fresh shared secret and returns it with
// the provisioning URI. Enabled and confirmed are distinct states; the
// secret is confirmed by VerifyTFASetup.
func (s *AuthService) EnableTFA(ctx context.Context, userID int) (secret, provisioningURI string, err error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return "", "", err
	}

	secret, provisioningURI, err = s.tfa.Enroll(user.Email)
	if err != nil {
		return "", "", fmt.Errorf("failed to enroll two-factor: %w", err)
	}

	user.TFASecret = &secret
	user.TFAEnabled = true
	user.TFAVerified = false
	if _, err := s.repo.Update(ctx, user); err != nil {
		return "", "", err
	}
	return secret, provisioningURI, nil
}

// VerifyTFASetup confirms the enrollment with a code from the
// authenticator app.
func (s *AuthService) VerifyTFASetup(ctx context.Context, userID int, code string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TFASecret == nil {
		return ErrTFANotEnabled
	}
	if !s.tfa.Verify(*user.TFASecret, code) {
		return ErrInvalidTFACode
	}

	user.TFAVerified = true
	_, err = s.repo.Update(ctx, user)
	return err
}

// DisableTFA clears the shared secret and both two-factor flags.
func (s *AuthService) DisableTFA(ctx context.Context, userID int) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	user.TFASecret = nil
	user.TFAEnabled = false
	user.TFAVerified = false
	_, err = s.repo.Update(ctx, user)
	return err
}

// VerifyTFA checks a login-time code for the named account.
func (s *AuthService) VerifyTFA(ctx context.Context, email, code string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return types.User{}, err
	}
	if !user.TFAEnabled || user.TFASecret == nil {
		return types.User{}, ErrTFANotEnabled
	}
	if !s.tfa.Verify(*user.TFASecret, code) {
		return types.User{}, ErrInvalidTFACode
	}
	return user, nil
}

// UpdateProfile applies the caller's editable profile fields. Nothing else
// on the record is settable through this path.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int, update types.ProfileUpdate, meta Meta) (types.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}

	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.HeightCM != nil {
		user.HeightCM = update.HeightCM
	}
	if update.WeightKG != nil {
		user.WeightKG = update.WeightKG
	}
	if update.Age != nil {
		user.Age = update.Age
	}
	if update.ActivityLevel != nil {
		user.ActivityLevel = update.ActivityLevel
	}
	if update.Goal != nil {
		user.Goal = update.Goal
	}
	if update.Picture != nil {
		user.Picture = update.Picture
	}

	user, err = s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, err
	}
	s.record(ctx, types.AuditProfileUpdate, user.ID, meta, "")
	return user, nil
}

func (s *AuthService) clearRefresh(ctx context.Context, userID int) {
	if err := s.repo.ClearRefreshToken(ctx, userID); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Errorw("failed to clear refresh token", "user_id", userID, "err", err)
	}
}

func (s *AuthService) sendMail(ctx context.Context, msg mailer.Message) {
	if err := s.mail.Dispatch(ctx, msg); err != nil {
		s.logger.Errorw("failed to dispatch email", "to", msg.To, "subject", msg.Subject, "err", err)
	}
}

func (s *AuthService) record(ctx context.Context, eventType string, userID int, meta Meta, details string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, types.AuditEvent{
		EventType: eventType,
		UserID:    userID,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		Details:   details,
	})
	if err != nil {
		s.logger.Errorw("failed to record audit event", "event", eventType, "err", err)
	}
}
