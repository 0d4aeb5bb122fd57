package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind discriminates access and refresh tokens inside the signed payload.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenClaims represents the signed payload of both token kinds.
type TokenClaims struct {
	Email string      `json:"email"`
	Role  AccountRole `json:"role,omitempty"`
	Kind  TokenKind   `json:"typ"`
	jwt.RegisteredClaims
}

// AccountID returns the subject claim.
func (c *TokenClaims) AccountID() string {
	return c.Subject
}

// SignUpRequest registers a new account.
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Username string `json:"username" validate:"omitempty,max=255"`
	FullName string `json:"full_name" validate:"omitempty,max=255"`
}

// SignUpResult reports the created account and whether the verification email went out.
type SignUpResult struct {
	Message        string      `json:"message"`
	Account        AccountInfo `json:"user"`
	EmailDelivered bool        `json:"email_delivered"`
}

// SignInRequest holds credentials for authenticating an account.
type SignInRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// VerifyEmailRequest proves control of an email address.
type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,numeric"`
}

// EmailRequest carries only an email address (resend code, request reset).
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest completes the reset flow.
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// RefreshRequest exchanges a refresh token for a new pair. The token may also arrive as a cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest optionally carries tokens in the body when cookies are not used.
type LogoutRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// IssuedToken is a freshly minted token and its identifying metadata.
type IssuedToken struct {
	Value     string
	ID        string
	Kind      TokenKind
	ExpiresAt time.Time
}

// SessionTokens is returned on sign-in and refresh.
type SessionTokens struct {
	Access  IssuedToken
	Refresh IssuedToken
	Account AccountInfo
}

// SessionResponse is the JSON body of sign-in and refresh.
type SessionResponse struct {
	Message      string      `json:"message"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	User         AccountInfo `json:"user"`
}
