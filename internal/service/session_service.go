package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/auth-session-api/internal/models"
	"github.com/noah-isme/auth-session-api/internal/repository"
	appErrors "github.com/noah-isme/auth-session-api/pkg/errors"
	"github.com/noah-isme/auth-session-api/pkg/mailer"
)

type accountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	SetEmailVerificationOTP(ctx context.Context, id, otpHash string, expiresAt, now time.Time) error
	MarkEmailVerified(ctx context.Context, id, otpHash string, now time.Time) (bool, error)
	SetPasswordResetOTP(ctx context.Context, id, otpHash string, expiresAt, now time.Time) error
	ResetPassword(ctx context.Context, id, otpHash, passwordHash string, now time.Time) (bool, error)
	StartSession(ctx context.Context, id, refreshHash string, expiresAt, now time.Time) error
	RotateRefreshToken(ctx context.Context, id, oldHash, newHash string, expiresAt, now time.Time) (bool, error)
	ClearRefreshToken(ctx context.Context, id, expectedHash string, now time.Time) (bool, error)
	RevokeRefreshToken(ctx context.Context, id string, now time.Time) error
}

type revocationLedger interface {
	Revoke(ctx context.Context, entry models.RevocationEntry)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// SessionConfig holds presentation and hashing settings for SessionService.
type SessionConfig struct {
	ProductName  string
	PasswordCost int
}

const (
	msgInvalidCredentials = "invalid credentials"
	msgVerifyEmailFirst   = "verify email first"
	msgInvalidOTP         = "invalid or expired OTP"
	msgInvalidRefresh     = "invalid refresh token"
	msgTokenRevoked       = "token has been revoked"
	msgResetRequested     = "If the email is registered, a password reset code has been sent."
	msgUsernameTaken      = "username already taken"
	msgPasswordTooLong    = "password must be at most 72 bytes"
)

// bcrypt rejects passwords longer than this many bytes.
const maxPasswordBytes = 72

// SessionService drives the account lifecycle: registration, email verification,
// sign-in, refresh rotation, logout and password reset.
type SessionService struct {
	accounts  accountRepository
	otp       *OTPService
	tokens    *TokenService
	ledger    revocationLedger
	mailer    mailer.Sender
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    SessionConfig
	now       func() time.Time
}

// NewSessionService constructs a SessionService instance.
func NewSessionService(accounts accountRepository, otp *OTPService, tokens *TokenService, ledger revocationLedger, sender mailer.Sender, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config SessionConfig) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.PasswordCost < bcrypt.MinCost || config.PasswordCost > bcrypt.MaxCost {
		config.PasswordCost = bcrypt.DefaultCost
	}
	if config.ProductName == "" {
		config.ProductName = "Auth Sessions"
	}
	return &SessionService{
		accounts:  accounts,
		otp:       otp,
		tokens:    tokens,
		ledger:    ledger,
		mailer:    sender,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// SignUp creates an unverified account and emails its verification code.
// A delivery failure keeps the account and is reported in the result.
func (s *SessionService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.SignUpResult, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sign-up payload")
	}
	if len(req.Password) > maxPasswordBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, msgPasswordTooLong)
	}

	if _, err := s.accounts.FindByEmail(ctx, req.Email); err == nil {
		s.metrics.RecordAuthEvent("signup", "conflict")
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to look up account")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.PasswordCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}
	code, otpHash, otpExpiry, err := s.otp.Issue()
	if err != nil {
		return nil, appErrors.Internal(err, "failed to issue verification code")
	}

	account := &models.Account{
		Email:                         req.Email,
		Username:                      optional(req.Username),
		FullName:                      optional(req.FullName),
		PasswordHash:                  string(passwordHash),
		Role:                          models.RoleUser,
		EmailVerificationOTPHash:      &otpHash,
		EmailVerificationOTPExpiresAt: &otpExpiry,
		CreatedAt:                     s.now().UTC(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		var cv *repository.ConstraintViolation
		if errors.As(err, &cv) && cv.Kind == repository.ConstraintUnique {
			s.metrics.RecordAuthEvent("signup", "conflict")
			if cv.Constraint == repository.ConstraintAccountsUsername {
				return nil, appErrors.Clone(appErrors.ErrConflict, msgUsernameTaken)
			}
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
		return nil, appErrors.Internal(err, "failed to create account")
	}

	result := &models.SignUpResult{
		Message:        "Account created. Please check your email for the verification code.",
		Account:        account.Info(),
		EmailDelivered: true,
	}
	if err := s.sendCode(ctx, mailer.PurposeEmailVerification, account.Email, code); err != nil {
		s.logger.Warn("verification email not delivered", zap.String("account_id", account.ID), zap.Error(err))
		result.EmailDelivered = false
		result.Message = "Account created, but the verification email could not be sent. Please request a new code."
	}
	s.metrics.RecordAuthEvent("signup", "success")
	return result, nil
}

// VerifyEmail consumes the verification code and marks the account verified.
func (s *SessionService) VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) error {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verification payload")
	}

	account, err := s.findByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if account.IsEmailVerified {
		return appErrors.ErrAlreadyVerified
	}
	if !s.otp.Validate(req.OTP, deref(account.EmailVerificationOTPHash), account.EmailVerificationOTPExpiresAt) {
		s.metrics.RecordAuthEvent("verify_email", "invalid_otp")
		return appErrors.Clone(appErrors.ErrValidation, msgInvalidOTP)
	}

	ok, err := s.accounts.MarkEmailVerified(ctx, account.ID, *account.EmailVerificationOTPHash, s.now().UTC())
	if err != nil {
		return appErrors.Internal(err, "failed to verify email")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, msgInvalidOTP)
	}
	s.metrics.RecordAuthEvent("verify_email", "success")
	return nil
}

// ResendVerification replaces the live verification code and emails the new one.
func (s *SessionService) ResendVerification(ctx context.Context, req models.EmailRequest) error {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid email payload")
	}

	account, err := s.findByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if account.IsEmailVerified {
		return appErrors.ErrAlreadyVerified
	}

	code, otpHash, otpExpiry, err := s.otp.Issue()
	if err != nil {
		return appErrors.Internal(err, "failed to issue verification code")
	}
	if err := s.accounts.SetEmailVerificationOTP(ctx, account.ID, otpHash, otpExpiry, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrAlreadyVerified
		}
		return appErrors.Internal(err, "failed to store verification code")
	}
	if err := s.sendCode(ctx, mailer.PurposeEmailVerification, account.Email, code); err != nil {
		s.logger.Warn("verification email resend failed", zap.String("account_id", account.ID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to send verification email")
	}
	s.metrics.RecordAuthEvent("resend_verification", "success")
	return nil
}

// SignIn checks credentials and opens a session, replacing any previous refresh token.
func (s *SessionService) SignIn(ctx context.Context, req models.SignInRequest) (*models.SessionTokens, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sign-in payload")
	}

	account, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordAuthEvent("signin", "invalid_credentials")
			return nil, appErrors.Clone(appErrors.ErrForbidden, msgInvalidCredentials)
		}
		return nil, appErrors.Internal(err, "failed to look up account")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		s.metrics.RecordAuthEvent("signin", "invalid_credentials")
		return nil, appErrors.Clone(appErrors.ErrForbidden, msgInvalidCredentials)
	}
	if !account.IsEmailVerified {
		s.metrics.RecordAuthEvent("signin", "unverified")
		return nil, appErrors.Clone(appErrors.ErrForbidden, msgVerifyEmailFirst)
	}

	pair, err := s.issuePair(account)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.StartSession(ctx, account.ID, HashToken(pair.Refresh.Value), pair.Refresh.ExpiresAt, s.now().UTC()); err != nil {
		return nil, appErrors.Internal(err, "failed to persist session")
	}

	s.logger.Info("account signed in", zap.String("account_id", account.ID), zap.String("ip", req.IP))
	s.metrics.RecordAuthEvent("signin", "success")
	return pair, nil
}

// Refresh rotates a refresh token. The presented token stops working once this returns,
// and of two concurrent calls with the same token at most one succeeds.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*models.SessionTokens, error) {
	claims, err := s.tokens.Verify(refreshToken, models.TokenKindRefresh)
	if err != nil {
		s.metrics.RecordAuthEvent("refresh", "invalid_token")
		return nil, tokenError(err, msgInvalidRefresh)
	}

	revoked, err := s.ledger.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		s.metrics.RecordAuthEvent("refresh", "revoked")
		return nil, appErrors.Clone(appErrors.ErrForbidden, msgTokenRevoked)
	}

	account, err := s.accounts.FindByID(ctx, claims.AccountID())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, msgInvalidRefresh)
		}
		return nil, appErrors.Internal(err, "failed to load account")
	}
	if !account.IsEmailVerified {
		return nil, appErrors.Clone(appErrors.ErrForbidden, msgVerifyEmailFirst)
	}

	pair, err := s.issuePair(account)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	swapped, err := s.accounts.RotateRefreshToken(ctx, account.ID, HashToken(refreshToken), HashToken(pair.Refresh.Value), pair.Refresh.ExpiresAt, now)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to rotate refresh token")
	}
	if !swapped {
		s.metrics.RecordAuthEvent("refresh", "stale_token")
		return nil, appErrors.Clone(appErrors.ErrForbidden, msgInvalidRefresh)
	}

	s.ledger.Revoke(ctx, revocationEntry(claims, models.TokenKindRefresh, now))
	s.metrics.RecordAuthEvent("refresh", "success")
	return pair, nil
}

// Logout revokes whichever tokens are supplied and ends the stored session.
// It never fails: absent, expired or already revoked tokens are skipped.
func (s *SessionService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	now := s.now().UTC()
	if accessToken != "" {
		if claims, err := s.tokens.Verify(accessToken, models.TokenKindAccess); err == nil {
			s.ledger.Revoke(ctx, revocationEntry(claims, models.TokenKindAccess, now))
		} else {
			s.logger.Debug("logout skipped access token", zap.Error(err))
		}
	}
	if refreshToken != "" {
		if claims, err := s.tokens.Verify(refreshToken, models.TokenKindRefresh); err == nil {
			s.ledger.Revoke(ctx, revocationEntry(claims, models.TokenKindRefresh, now))
			if _, err := s.accounts.ClearRefreshToken(ctx, claims.AccountID(), HashToken(refreshToken), now); err != nil {
				s.logger.Warn("logout failed to clear stored refresh token", zap.String("account_id", claims.AccountID()), zap.Error(err))
			}
		} else {
			s.logger.Debug("logout skipped refresh token", zap.Error(err))
		}
	}
	s.metrics.RecordAuthEvent("logout", "success")
	return nil
}

// RevokeAll ends the account's session regardless of ledger state.
func (s *SessionService) RevokeAll(ctx context.Context, accountID string) error {
	if strings.TrimSpace(accountID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "account id is required")
	}
	if _, err := s.accounts.FindByID(ctx, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return appErrors.Internal(err, "failed to load account")
	}
	if err := s.accounts.RevokeRefreshToken(ctx, accountID, s.now().UTC()); err != nil {
		return appErrors.Internal(err, "failed to revoke tokens")
	}
	s.logger.Info("all tokens revoked", zap.String("account_id", accountID))
	s.metrics.RecordAuthEvent("revoke_all", "success")
	return nil
}

// RequestPasswordReset emails a reset code. The returned message does not reveal
// whether the email is registered.
func (s *SessionService) RequestPasswordReset(ctx context.Context, req models.EmailRequest) (string, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid email payload")
	}

	account, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return msgResetRequested, nil
		}
		return "", appErrors.Internal(err, "failed to look up account")
	}
	if !account.IsEmailVerified {
		s.logger.Info("password reset skipped for unverified account", zap.String("account_id", account.ID))
		s.metrics.RecordAuthEvent("request_reset", "unverified")
		return msgResetRequested, nil
	}

	code, otpHash, otpExpiry, err := s.otp.Issue()
	if err != nil {
		return "", appErrors.Internal(err, "failed to issue reset code")
	}
	if err := s.accounts.SetPasswordResetOTP(ctx, account.ID, otpHash, otpExpiry, s.now().UTC()); err != nil {
		return "", appErrors.Internal(err, "failed to store reset code")
	}
	if err := s.sendCode(ctx, mailer.PurposePasswordReset, account.Email, code); err != nil {
		s.logger.Warn("password reset email not delivered", zap.String("account_id", account.ID), zap.Error(err))
	}
	s.metrics.RecordAuthEvent("request_reset", "success")
	return msgResetRequested, nil
}

// ResetPassword sets a new password using the reset code and ends every session.
func (s *SessionService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset payload")
	}
	if len(req.NewPassword) > maxPasswordBytes {
		return appErrors.Clone(appErrors.ErrValidation, msgPasswordTooLong)
	}

	account, err := s.findByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if !s.otp.Validate(req.OTP, deref(account.PasswordResetOTPHash), account.PasswordResetOTPExpiresAt) {
		s.metrics.RecordAuthEvent("reset_password", "invalid_otp")
		return appErrors.Clone(appErrors.ErrValidation, msgInvalidOTP)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.config.PasswordCost)
	if err != nil {
		return appErrors.Internal(err, "failed to hash password")
	}
	ok, err := s.accounts.ResetPassword(ctx, account.ID, *account.PasswordResetOTPHash, string(passwordHash), s.now().UTC())
	if err != nil {
		return appErrors.Internal(err, "failed to reset password")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, msgInvalidOTP)
	}
	s.logger.Info("password reset", zap.String("account_id", account.ID))
	s.metrics.RecordAuthEvent("reset_password", "success")
	return nil
}

// Authenticate verifies an access token and checks it against the ledger.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (*models.TokenClaims, error) {
	claims, err := s.tokens.Verify(accessToken, models.TokenKindAccess)
	if err != nil {
		return nil, tokenError(err, "invalid access token")
	}
	revoked, err := s.ledger.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, appErrors.Clone(appErrors.ErrForbidden, msgTokenRevoked)
	}
	return claims, nil
}

// Me returns the public view of accountID.
func (s *SessionService) Me(ctx context.Context, accountID string) (*models.AccountInfo, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Internal(err, "failed to load account")
	}
	info := account.Info()
	return &info, nil
}

func (s *SessionService) findByEmail(ctx context.Context, email string) (*models.Account, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Internal(err, "failed to look up account")
	}
	return account, nil
}

func (s *SessionService) issuePair(account *models.Account) (*models.SessionTokens, error) {
	access, err := s.tokens.IssueAccess(account)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create access token")
	}
	refresh, err := s.tokens.IssueRefresh(account)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create refresh token")
	}
	return &models.SessionTokens{Access: access, Refresh: refresh, Account: account.Info()}, nil
}

func (s *SessionService) sendCode(ctx context.Context, purpose mailer.Purpose, to, code string) error {
	if s.mailer == nil {
		return mailer.ErrNotConfigured
	}
	subject, body, err := mailer.RenderCode(purpose, s.config.ProductName, code, s.otp.TTL())
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, to, subject, body)
}

// HashToken returns the hex SHA-256 digest stored in place of a refresh token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func tokenError(err error, message string) error {
	if errors.Is(err, ErrTokenExpired) {
		message = "token expired"
	}
	return appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, message)
}

func revocationEntry(claims *models.TokenClaims, kind models.TokenKind, now time.Time) models.RevocationEntry {
	entry := models.RevocationEntry{TokenID: claims.ID, Kind: kind, AccountID: claims.AccountID(), RevokedAt: now}
	if claims.ExpiresAt != nil {
		entry.ExpiresAt = claims.ExpiresAt.Time
	}
	return entry
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
