package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nutriplan-app/apiserver/types"
)

const userColumns = `id, name, email, password_hash, role, is_active, is_verified,
		failed_login_attempts, locked_until, last_login,
		refresh_token_hash, refresh_token_expires,
		verification_code, verification_expires,
		reset_code, reset_expires,
		tfa_enabled, tfa_verified, tfa_secret,
		height_cm, weight_kg, age, activity_level, goal, picture,
		created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return r.queryUser(ctx, query, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1`
	return r.queryUser(ctx, query, email)
}

func (r *UserRepository) GetByVerificationCode(ctx context.Context, code string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE verification_code = $1`
	return r.queryUser(ctx, query, code)
}

func (r *UserRepository) GetByResetCode(ctx context.Context, code string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE reset_code = $1`
	return r.queryUser(ctx, query, code)
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (name, email, password_hash, role, is_active, is_verified,
			verification_code, verification_expires, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.IsVerified,
		user.VerificationCode,
		user.VerificationExpires,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// Update persists the mutable security and profile state of a user. The
// refresh-token, verification-code, and reset-code column pairs have
// dedicated methods so each pair changes in a single statement.
func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET name = $1,
			password_hash = $2,
			role = $3,
			is_active = $4,
			is_verified = $5,
			failed_login_attempts = $6,
			locked_until = $7,
			last_login = $8,
			tfa_enabled = $9,
			tfa_verified = $10,
			tfa_secret = $11,
			height_cm = $12,
			weight_kg = $13,
			age = $14,
			activity_level = $15,
			goal = $16,
			picture = $17,
			updated_at = $18
		WHERE id = $19`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Name,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.IsVerified,
		user.FailedLoginAttempts,
		user.LockedUntil,
		user.LastLogin,
		user.TFAEnabled,
		user.TFAVerified,
		user.TFASecret,
		user.HeightCM,
		user.WeightKG,
		user.Age,
		user.ActivityLevel,
		user.Goal,
		user.Picture,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, err
	}
	if err := requireAffected(result); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// SetRefreshToken stores the refresh-token digest and expiry together.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id int, digest string, expires time.Time) error {
	const query = `
		UPDATE users
		SET refresh_token_hash = $1,
			refresh_token_expires = $2,
			updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, digest, expires, time.Now(), id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// ClearRefreshToken clears the refresh-token digest and expiry together.
func (r *UserRepository) ClearRefreshToken(ctx context.Context, id int) error {
	const query = `
		UPDATE users
		SET refresh_token_hash = NULL,
			refresh_token_expires = NULL,
			updated_at = $1
		WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// SetVerificationCode stores a fresh email-verification code and expiry.
func (r *UserRepository) SetVerificationCode(ctx context.Context, id int, code string, expires time.Time) error {
	const query = `
		UPDATE users
		SET verification_code = $1,
			verification_expires = $2,
			updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, code, expires, time.Now(), id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// MarkVerified sets the verified flag and consumes the code and its expiry
// in one statement.
func (r *UserRepository) MarkVerified(ctx context.Context, id int) error {
	const query = `
		UPDATE users
		SET is_verified = TRUE,
			verification_code = NULL,
			verification_expires = NULL,
			updated_at = $1
		WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// SetResetCode stores a fresh password-reset code and expiry.
func (r *UserRepository) SetResetCode(ctx context.Context, id int, code string, expires time.Time) error {
	const query = `
		UPDATE users
		SET reset_code = $1,
			reset_expires = $2,
			updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, code, expires, time.Now(), id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// ResetPassword replaces the password hash and consumes the reset code and
// its expiry in one statement.
func (r *UserRepository) ResetPassword(ctx context.Context, id int, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $1,
			reset_code = NULL,
			reset_expires = NULL,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, passwordHash, time.Now(), id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM users`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY id
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]types.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) queryUser(ctx context.Context, query string, arg any) (types.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.IsVerified,
		&user.FailedLoginAttempts,
		&user.LockedUntil,
		&user.LastLogin,
		&user.RefreshTokenHash,
		&user.RefreshTokenExpires,
		&user.VerificationCode,
		&user.VerificationExpires,
		&user.ResetCode,
		&user.ResetExpires,
		&user.TFAEnabled,
		&user.TFAVerified,
		&user.TFASecret,
		&user.HeightCM,
		&user.WeightKG,
		&user.Age,
		&user.ActivityLevel,
		&user.Goal,
		&user.Picture,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
