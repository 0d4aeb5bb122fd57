package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/auth-session-api/internal/models"
)

const accountColumns = `id, email, username, full_name, password_hash, role, is_email_verified, email_verification_otp_hash, email_verification_otp_expires_at, password_reset_otp_hash, password_reset_otp_expires_at, refresh_token_hash, refresh_token_expires_at, last_login, created_at, updated_at`

// AccountRepository is the credential store backed by the accounts table.
// Every state transition is a single UPDATE so a request commits at most once.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new instance of AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// FindByEmail returns an account by case-insensitive email.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find account by email: %w", err)
	}
	return &account, nil
}

// FindByID returns an account by identifier.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 LIMIT 1`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return &account, nil
}

// Create inserts a new account. Duplicate emails surface as a unique ConstraintViolation.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = account.CreatedAt

	const query = `INSERT INTO accounts (id, email, username, full_name, password_hash, role, is_email_verified, email_verification_otp_hash, email_verification_otp_expires_at, created_at, updated_at) VALUES (:id, :email, :username, :full_name, :password_hash, :role, :is_email_verified, :email_verification_otp_hash, :email_verification_otp_expires_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, account); err != nil {
		return fmt.Errorf("create account: %w", classify(err))
	}
	return nil
}

// SetEmailVerificationOTP replaces the live verification code of an unverified account.
func (r *AccountRepository) SetEmailVerificationOTP(ctx context.Context, id, otpHash string, expiresAt, now time.Time) error {
	const query = `UPDATE accounts SET email_verification_otp_hash = $2, email_verification_otp_expires_at = $3, updated_at = $4 WHERE id = $1 AND is_email_verified = FALSE`
	return r.expectOne(ctx, "set email verification otp", query, id, otpHash, expiresAt, now)
}

// MarkEmailVerified flips the verification flag and clears the verification code.
// It matches on the validated hash so a code consumed concurrently cannot verify twice.
func (r *AccountRepository) MarkEmailVerified(ctx context.Context, id, otpHash string, now time.Time) (bool, error) {
	const query = `UPDATE accounts SET is_email_verified = TRUE, email_verification_otp_hash = NULL, email_verification_otp_expires_at = NULL, updated_at = $3 WHERE id = $1 AND is_email_verified = FALSE AND email_verification_otp_hash = $2`
	return r.conditional(ctx, "mark email verified", query, id, otpHash, now)
}

// SetPasswordResetOTP replaces the live password reset code.
func (r *AccountRepository) SetPasswordResetOTP(ctx context.Context, id, otpHash string, expiresAt, now time.Time) error {
	const query = `UPDATE accounts SET password_reset_otp_hash = $2, password_reset_otp_expires_at = $3, updated_at = $4 WHERE id = $1`
	return r.expectOne(ctx, "set password reset otp", query, id, otpHash, expiresAt, now)
}

// ResetPassword stores the new password hash, consumes the reset code and ends the active session.
func (r *AccountRepository) ResetPassword(ctx context.Context, id, otpHash, passwordHash string, now time.Time) (bool, error) {
	const query = `UPDATE accounts SET password_hash = $3, password_reset_otp_hash = NULL, password_reset_otp_expires_at = NULL, refresh_token_hash = NULL, refresh_token_expires_at = NULL, updated_at = $4 WHERE id = $1 AND password_reset_otp_hash = $2`
	return r.conditional(ctx, "reset password", query, id, otpHash, passwordHash, now)
}

// StartSession records a freshly issued refresh token and the login time.
func (r *AccountRepository) StartSession(ctx context.Context, id, refreshHash string, expiresAt, now time.Time) error {
	const query = `UPDATE accounts SET refresh_token_hash = $2, refresh_token_expires_at = $3, last_login = $4, updated_at = $4 WHERE id = $1`
	return r.expectOne(ctx, "start session", query, id, refreshHash, expiresAt, now)
}

// RotateRefreshToken swaps the stored refresh hash only if it still equals oldHash.
// It returns false when another request already rotated or cleared it.
func (r *AccountRepository) RotateRefreshToken(ctx context.Context, id, oldHash, newHash string, expiresAt, now time.Time) (bool, error) {
	const query = `UPDATE accounts SET refresh_token_hash = $3, refresh_token_expires_at = $4, updated_at = $5 WHERE id = $1 AND refresh_token_hash = $2 AND refresh_token_expires_at > $5`
	return r.conditional(ctx, "rotate refresh token", query, id, oldHash, newHash, expiresAt, now)
}

// ClearRefreshToken removes the stored refresh hash when it still equals expectedHash.
func (r *AccountRepository) ClearRefreshToken(ctx context.Context, id, expectedHash string, now time.Time) (bool, error) {
	const query = `UPDATE accounts SET refresh_token_hash = NULL, refresh_token_expires_at = NULL, updated_at = $3 WHERE id = $1 AND refresh_token_hash = $2`
	return r.conditional(ctx, "clear refresh token", query, id, expectedHash, now)
}

// RevokeRefreshToken removes the stored refresh hash unconditionally.
func (r *AccountRepository) RevokeRefreshToken(ctx context.Context, id string, now time.Time) error {
	const query = `UPDATE accounts SET refresh_token_hash = NULL, refresh_token_expires_at = NULL, updated_at = $2 WHERE id = $1`
	return r.expectOne(ctx, "revoke refresh token", query, id, now)
}

// Ping checks database reachability for readiness probes.
func (r *AccountRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *AccountRepository) conditional(ctx context.Context, op, query string, args ...interface{}) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, classify(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return affected == 1, nil
}

func (r *AccountRepository) expectOne(ctx context.Context, op, query string, args ...interface{}) error {
	ok, err := r.conditional(ctx, op, query, args...)
	if err != nil {
		return err
	}
	if !ok {
		return sql.ErrNoRows
	}
	return nil
}
