package models

import "time"

// AccountRole represents the available roles for route authorization.
type AccountRole string

const (
	RoleUser  AccountRole = "USER"
	RoleAdmin AccountRole = "ADMIN"
)

// AccountState is the session lifecycle state derived from an account record.
type AccountState string

const (
	StateUnverified            AccountState = "UNVERIFIED"
	StateVerifiedNoSession     AccountState = "VERIFIED_NO_SESSION"
	StateVerifiedActiveSession AccountState = "VERIFIED_ACTIVE_SESSION"
)

// Account represents a credential record stored in the accounts table.
type Account struct {
	ID                            string      `db:"id" json:"id"`
	Email                         string      `db:"email" json:"email"`
	Username                      *string     `db:"username" json:"username,omitempty"`
	FullName                      *string     `db:"full_name" json:"full_name,omitempty"`
	PasswordHash                  string      `db:"password_hash" json:"-"`
	Role                          AccountRole `db:"role" json:"role"`
	IsEmailVerified               bool        `db:"is_email_verified" json:"is_email_verified"`
	EmailVerificationOTPHash      *string     `db:"email_verification_otp_hash" json:"-"`
	EmailVerificationOTPExpiresAt *time.Time  `db:"email_verification_otp_expires_at" json:"-"`
	PasswordResetOTPHash          *string     `db:"password_reset_otp_hash" json:"-"`
	PasswordResetOTPExpiresAt     *time.Time  `db:"password_reset_otp_expires_at" json:"-"`
	RefreshTokenHash              *string     `db:"refresh_token_hash" json:"-"`
	RefreshTokenExpiresAt         *time.Time  `db:"refresh_token_expires_at" json:"-"`
	LastLogin                     *time.Time  `db:"last_login" json:"last_login,omitempty"`
	CreatedAt                     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt                     time.Time   `db:"updated_at" json:"updated_at"`
}

// State derives the lifecycle state at now.
func (a *Account) State(now time.Time) AccountState {
	if !a.IsEmailVerified {
		return StateUnverified
	}
	if a.RefreshTokenHash != nil && a.RefreshTokenExpiresAt != nil && now.Before(*a.RefreshTokenExpiresAt) {
		return StateVerifiedActiveSession
	}
	return StateVerifiedNoSession
}

// Info returns the public view of the account.
func (a *Account) Info() AccountInfo {
	info := AccountInfo{
		ID:              a.ID,
		Email:           a.Email,
		Role:            a.Role,
		IsEmailVerified: a.IsEmailVerified,
	}
	if a.Username != nil {
		info.Username = *a.Username
	}
	if a.FullName != nil {
		info.FullName = *a.FullName
	}
	return info
}

// AccountInfo describes an account in responses.
type AccountInfo struct {
	ID              string      `json:"id"`
	Email           string      `json:"email"`
	Username        string      `json:"username,omitempty"`
	FullName        string      `json:"full_name,omitempty"`
	Role            AccountRole `json:"role"`
	IsEmailVerified bool        `json:"is_email_verified"`
}
