package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/auth-session-api/internal/models"
	"github.com/noah-isme/auth-session-api/internal/service"
	appErrors "github.com/noah-isme/auth-session-api/pkg/errors"
	"github.com/noah-isme/auth-session-api/pkg/logger"
	"github.com/noah-isme/auth-session-api/pkg/response"
)

// ContextUserKey is the gin context key storing token claims.
const ContextUserKey = "currentUser"

// Authenticator verifies access tokens and rotates refresh tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.TokenClaims, error)
	Refresh(ctx context.Context, refreshToken string) (*models.SessionTokens, error)
}

// JWT protects routes by requiring a valid access token, taken from the
// Authorization header or the access cookie. For cookie sessions an expired or
// missing access token is renewed from the refresh cookie and the rotated
// cookies are written on the response.
func JWT(auth Authenticator, cookies CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
				c.Abort()
				return
			}
			claims, err := auth.Authenticate(c.Request.Context(), strings.TrimSpace(parts[1]))
			if err != nil {
				response.Error(c, err)
				c.Abort()
				return
			}
			setClaims(c, claims)
			c.Next()
			return
		}

		accessToken := Cookie(c, AccessCookie)
		refreshToken := Cookie(c, RefreshCookie)
		if accessToken == "" && refreshToken == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
			c.Abort()
			return
		}

		if accessToken != "" {
			claims, err := auth.Authenticate(c.Request.Context(), accessToken)
			if err == nil {
				setClaims(c, claims)
				c.Next()
				return
			}
			if refreshToken == "" || !errors.Is(err, service.ErrTokenExpired) {
				response.Error(c, err)
				c.Abort()
				return
			}
		}

		tokens, err := auth.Refresh(c.Request.Context(), refreshToken)
		if err != nil {
			cookies.Clear(c)
			response.Error(c, err)
			c.Abort()
			return
		}
		claims, err := auth.Authenticate(c.Request.Context(), tokens.Access.Value)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		cookies.SetSession(c, tokens)
		setClaims(c, claims)
		c.Next()
	}
}

func setClaims(c *gin.Context, claims *models.TokenClaims) {
	c.Set(ContextUserKey, claims)
	c.Set(logger.SubjectKey, claims.AccountID())
}

// ClaimsFromContext returns the claims stored by JWT, if any.
func ClaimsFromContext(c *gin.Context) *models.TokenClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}
