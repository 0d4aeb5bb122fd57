package models

import "time"

// RevocationEntry records a token identifier invalidated before its natural expiry.
type RevocationEntry struct {
	TokenID   string    `db:"token_id" json:"token_id"`
	Kind      TokenKind `db:"kind" json:"kind"`
	AccountID string    `db:"account_id" json:"account_id"`
	RevokedAt time.Time `db:"revoked_at" json:"revoked_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}
