package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nutriplan-app/apiserver/types"
)

var userColumnList = []string{
	"id", "name", "email", "password_hash", "role", "is_active", "is_verified",
	"failed_login_attempts", "locked_until", "last_login",
	"refresh_token_hash", "refresh_token_expires",
	"verification_code", "verification_expires",
	"reset_code", "reset_expires",
	"tfa_enabled", "tfa_verified", "tfa_secret",
	"height_cm", "weight_kg", "age", "activity_level", "goal", "picture",
	"created_at", "updated_at",
}

func userRow(id int, email string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userColumnList).AddRow(
		id, "Test User", email, "$2a$10$hash", "user", true, false,
		0, nil, nil,
		nil, nil,
		nil, nil,
		nil, nil,
		false, false, nil,
		nil, nil, nil, nil, nil, nil,
		now, now,
	)
}

func newMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewUserRepository(db), mock
}

func TestUserGetByEmail(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).
		WithArgs("a@example.com").
		WillReturnRows(userRow(7, "a@example.com"))

	user, err := repo.GetByEmail(context.Background(), "a@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if user.ID != 7 || user.Email != "a@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUserGetByEmailNotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).
		WithArgs("missing@example.com").
		WillReturnRows(sqlmock.NewRows(userColumnList))

	if _, err := repo.GetByEmail(context.Background(), "missing@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserCreate(t *testing.T) {
	repo, mock := newMock(t)

	code := "123456"
	expires := time.Now().Add(24 * time.Hour)
	mock.ExpectQuery(`INSERT INTO users (.+) RETURNING id`).
		WithArgs("Test User", "a@example.com", "hash", "user", true, false,
			&code, &expires, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	user, err := repo.Create(context.Background(), types.User{
		Name:                "Test User",
		Email:               "a@example.com",
		PasswordHash:        "hash",
		Role:                "user",
		IsActive:            true,
		VerificationCode:    &code,
		VerificationExpires: &expires,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.ID != 3 {
		t.Fatalf("id = %d", user.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMarkVerifiedClearsCodeAtomically(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(`UPDATE users SET is_verified = TRUE, verification_code = NULL, verification_expires = NULL, updated_at = \$1 WHERE id = \$2`).
		WithArgs(sqlmock.AnyArg(), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkVerified(context.Background(), 5); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestResetPasswordClearsCodeAtomically(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(`UPDATE users SET password_hash = \$1, reset_code = NULL, reset_expires = NULL, updated_at = \$2 WHERE id = \$3`).
		WithArgs("newhash", sqlmock.AnyArg(), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.ResetPassword(context.Background(), 5, "newhash"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSetAndClearRefreshToken(t *testing.T) {
	repo, mock := newMock(t)
	expires := time.Now().Add(7 * 24 * time.Hour)

	mock.ExpectExec(`UPDATE users SET refresh_token_hash = \$1, refresh_token_expires = \$2, updated_at = \$3 WHERE id = \$4`).
		WithArgs("digest", expires, sqlmock.AnyArg(), 9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET refresh_token_hash = NULL, refresh_token_expires = NULL, updated_at = \$1 WHERE id = \$2`).
		WithArgs(sqlmock.AnyArg(), 9).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	if err := repo.SetRefreshToken(ctx, 9, "digest", expires); err != nil {
		t.Fatalf("SetRefreshToken: %v", err)
	}
	if err := repo.ClearRefreshToken(ctx, 9); err != nil {
		t.Fatalf("ClearRefreshToken: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateMissingUser(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(`UPDATE users SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := repo.Update(context.Background(), types.User{ID: 404, Name: "X"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserDelete(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs(11).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs(12).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	if err := repo.Delete(ctx, 11); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, 12); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
