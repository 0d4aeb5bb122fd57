package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/auth-session-api/internal/models"
)

// RevocationRepository persists revoked token identifiers.
type RevocationRepository struct {
	db *sqlx.DB
}

// NewRevocationRepository creates a new instance of RevocationRepository.
func NewRevocationRepository(db *sqlx.DB) *RevocationRepository {
	return &RevocationRepository{db: db}
}

// Insert records entry. Recording an identifier twice is a no-op.
func (r *RevocationRepository) Insert(ctx context.Context, entry *models.RevocationEntry) error {
	const query = `INSERT INTO revoked_tokens (token_id, kind, account_id, revoked_at, expires_at) VALUES (:token_id, :kind, :account_id, :revoked_at, :expires_at) ON CONFLICT (token_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert revoked token: %w", classify(err))
	}
	return nil
}

// Exists reports whether tokenID is revoked and the entry has not yet expired.
func (r *RevocationRepository) Exists(ctx context.Context, tokenID string, now time.Time) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE token_id = $1 AND expires_at > $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, tokenID, now); err != nil {
		return false, fmt.Errorf("lookup revoked token: %w", err)
	}
	return exists, nil
}

// DeleteExpired removes entries whose underlying token has expired.
func (r *RevocationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired revoked tokens: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired rows affected: %w", err)
	}
	return affected, nil
}

// CountByAccount returns the number of live revocations for accountID.
func (r *RevocationRepository) CountByAccount(ctx context.Context, accountID string, now time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM revoked_tokens WHERE account_id = $1 AND expires_at > $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, accountID, now); err != nil {
		return 0, fmt.Errorf("count revoked tokens: %w", err)
	}
	return count, nil
}
