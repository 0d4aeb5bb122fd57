package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/auth-session-api/internal/middleware"
	"github.com/noah-isme/auth-session-api/internal/models"
	appErrors "github.com/noah-isme/auth-session-api/pkg/errors"
	"github.com/noah-isme/auth-session-api/pkg/response"
)

type sessionService interface {
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.SignUpResult, error)
	VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) error
	ResendVerification(ctx context.Context, req models.EmailRequest) error
	SignIn(ctx context.Context, req models.SignInRequest) (*models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (*models.SessionTokens, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	RevokeAll(ctx context.Context, accountID string) error
	RequestPasswordReset(ctx context.Context, req models.EmailRequest) (string, error)
	ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error
	Me(ctx context.Context, accountID string) (*models.AccountInfo, error)
}

// AuthHandler wires HTTP endpoints to the session service.
type AuthHandler struct {
	service sessionService
	cookies middleware.CookieOptions
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc sessionService, cookies middleware.CookieOptions) *AuthHandler {
	return &AuthHandler{service: svc, cookies: cookies}
}

// SignUp godoc
// @Summary Register account
// @Description Create an unverified account and email a verification code
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.SignUpRequest true "Sign-up payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/signup [post]
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sign-up payload"))
		return
	}

	res, err := h.service.SignUp(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res.Message, res)
}

// VerifyEmail godoc
// @Summary Verify email
// @Description Confirm an email address with the emailed code
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.VerifyEmailRequest true "Verification payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req models.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verification payload"))
		return
	}

	if err := h.service.VerifyEmail(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "Email verified successfully. You can now sign in.", nil)
}

// ResendVerification godoc
// @Summary Resend verification code
// @Description Issue a new verification code, invalidating the previous one
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.EmailRequest true "Email payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /auth/resend-email-verification-otp [post]
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req models.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid email payload"))
		return
	}

	if err := h.service.ResendVerification(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "Verification code sent. Please check your email.", nil)
}

// SignIn godoc
// @Summary Sign in
// @Description Authenticate by email and password; sets HTTP-only session cookies
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.SignInRequest true "Sign-in payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/signin [post]
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req models.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sign-in payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	tokens, err := h.service.SignIn(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.SetSession(c, tokens)
	response.JSON(c, http.StatusOK, sessionResponse("Signed in successfully.", tokens))
}

// Refresh godoc
// @Summary Refresh session
// @Description Rotate the refresh token from the cookie or request body
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RefreshRequest false "Refresh payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid refresh payload"))
			return
		}
	}
	token := firstNonEmpty(req.RefreshToken, middleware.Cookie(c, middleware.RefreshCookie))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "refresh token required"))
		return
	}

	tokens, err := h.service.Refresh(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.SetSession(c, tokens)
	response.JSON(c, http.StatusOK, sessionResponse("Token refreshed.", tokens))
}

// Logout godoc
// @Summary Logout
// @Description Revoke the presented tokens and clear session cookies; always succeeds
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LogoutRequest false "Tokens when cookies are not used"
// @Success 200 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req models.LogoutRequest
	if c.Request.ContentLength > 0 {
		_ = c.ShouldBindJSON(&req)
	}
	access := firstNonEmpty(req.AccessToken, bearerToken(c), middleware.Cookie(c, middleware.AccessCookie))
	refresh := firstNonEmpty(req.RefreshToken, middleware.Cookie(c, middleware.RefreshCookie))

	_ = h.service.Logout(c.Request.Context(), access, refresh)

	h.cookies.Clear(c)
	response.Message(c, http.StatusOK, "Logged out successfully.", nil)
}

// RequestPasswordReset godoc
// @Summary Request password reset
// @Description Email a reset code; the response never reveals whether the email exists
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.EmailRequest true "Email payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/request-password-reset [post]
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req models.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid email payload"))
		return
	}

	message, err := h.service.RequestPasswordReset(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, message, nil)
}

// ResetPassword godoc
// @Summary Reset password
// @Description Set a new password with the emailed reset code; ends every session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ResetPasswordRequest true "Reset payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reset payload"))
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.Clear(c)
	response.Message(c, http.StatusOK, "Password reset successfully. Please sign in with your new password.", nil)
}

// Me godoc
// @Summary Current account
// @Description Return the authenticated account
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	info, err := h.service.Me(c.Request.Context(), claims.AccountID())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, info)
}

// RevokeAll godoc
// @Summary Revoke all tokens
// @Description Administratively end every session of an account
// @Tags Authentication
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /auth/revoke-all-tokens/{id} [post]
func (h *AuthHandler) RevokeAll(c *gin.Context) {
	if err := h.service.RevokeAll(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "All tokens revoked.", nil)
}

func sessionResponse(message string, tokens *models.SessionTokens) models.SessionResponse {
	return models.SessionResponse{
		Message:      message,
		AccessToken:  tokens.Access.Value,
		RefreshToken: tokens.Refresh.Value,
		ExpiresIn:    int64(time.Until(tokens.Access.ExpiresAt).Seconds()),
		User:         tokens.Account,
	}
}
